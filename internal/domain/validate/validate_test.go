package validate

import "testing"

func TestEmail(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"  John.Doe@Example.COM ", "john.doe@example.com", false},
		{"user@domain.org", "user@domain.org", false},
		{"", "", true},
		{"not-an-email", "", true},
		{"two@@example.com", "", true},
	}

	for _, tt := range tests {
		got, err := Email(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Email(%q): err = %v, ожидалась ошибка: %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Email(%q) = %q, ожидалось %q", tt.in, got, tt.want)
		}
	}
}

func TestFirstName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"jean", "Jean", false},
		{"  MARIE ", "Marie", false},
		{"élodie", "Élodie", false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, tt := range tests {
		got, err := FirstName(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("FirstName(%q): err = %v, ожидалась ошибка: %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("FirstName(%q) = %q, ожидалось %q", tt.in, got, tt.want)
		}
	}
}

func TestLastName(t *testing.T) {
	got, err := LastName(" dupont ")
	if err != nil {
		t.Fatalf("LastName вернул ошибку: %v", err)
	}
	if got != "DUPONT" {
		t.Errorf("LastName = %q, ожидалось %q", got, "DUPONT")
	}
	if _, err := LastName("  "); err == nil {
		t.Error("пустая фамилия должна возвращать ошибку")
	}
}

func TestPhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0612345678", "+33612345678", false},
		{"06 12 34 56 78", "+33612345678", false},
		{"+33 6 12 34 56 78", "+33612345678", false},
		{"0033612345678", "+33612345678", false},
		{"+14155552671", "+14155552671", false},
		{"12345", "", true},
		{"+1", "", true},
		{"abc", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := Phone(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Phone(%q): err = %v, ожидалась ошибка: %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Phone(%q) = %q, ожидалось %q", tt.in, got, tt.want)
		}
	}
}
