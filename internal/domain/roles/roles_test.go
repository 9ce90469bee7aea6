package roles

import "testing"

func TestFilterBusiness(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "только служебные роли",
			in:   []string{"offline_access", "uma_authorization", "default-roles-time-manager"},
			want: []string{},
		},
		{
			name: "смесь бизнес и служебных",
			in:   []string{"offline_access", "employee", "uma_authorization", "manager"},
			want: []string{"employee", "manager"},
		},
		{
			name: "все бизнес-роли",
			in:   []string{"employee", "manager", "organization"},
			want: []string{"employee", "manager", "organization"},
		},
		{
			name: "дубликаты удаляются",
			in:   []string{"employee", "employee", "manager"},
			want: []string{"employee", "manager"},
		},
		{
			name: "пустой вход",
			in:   nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterBusiness(tt.in)
			if got == nil {
				t.Fatal("FilterBusiness вернул nil, ожидался пустой слайс")
			}
			if !Equal(got, tt.want) {
				t.Errorf("FilterBusiness(%v) = %v, ожидалось %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want bool
	}{
		{"одинаковый порядок", []string{"employee", "manager"}, []string{"employee", "manager"}, true},
		{"разный порядок", []string{"manager", "employee"}, []string{"employee", "manager"}, true},
		{"разная длина", []string{"employee"}, []string{"employee", "manager"}, false},
		{"разные роли", []string{"employee"}, []string{"manager"}, false},
		{"оба пустые", nil, []string{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Errorf("Equal(%v, %v) = %v, ожидалось %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestIsBusiness(t *testing.T) {
	if !IsBusiness(Employee) || !IsBusiness(Manager) || !IsBusiness(Organization) {
		t.Error("бизнес-роли должны проходить проверку IsBusiness")
	}
	if IsBusiness("offline_access") {
		t.Error("служебная роль не должна проходить проверку IsBusiness")
	}
}
