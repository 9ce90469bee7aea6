package handlers

import (
	"testing"

	"github.com/arturkryukov/timemanager/internal/domain/model"
	"github.com/arturkryukov/timemanager/internal/domain/roles"
)

// TestIsSupervisor — доступ к чужим данным определяется бизнес-ролями.
func TestIsSupervisor(t *testing.T) {
	tests := []struct {
		name  string
		roles []string
		want  bool
	}{
		{"менеджер", []string{roles.Manager}, true},
		{"организация", []string{roles.Organization}, true},
		{"рядовой сотрудник", []string{roles.Employee}, false},
		{"без ролей", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &model.User{RealmRoles: tt.roles}
			if got := isSupervisor(u); got != tt.want {
				t.Errorf("isSupervisor(%v) = %v, хотели %v", tt.roles, got, tt.want)
			}
		})
	}
}
