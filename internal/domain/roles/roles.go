// Пакет roles — бизнес-роли Time Manager и операции над их наборами.
//
// Реалм Keycloak содержит множество служебных ролей (offline_access,
// uma_authorization, default-roles-* и т.д.). Сервис работает только
// с бизнес-ролями из фиксированного списка, остальные молча отбрасываются.
package roles

// Бизнес-роли реалма.
const (
	// Employee — рядовой сотрудник.
	Employee = "employee"
	// Manager — менеджер команды.
	Manager = "manager"
	// Organization — администратор организации.
	Organization = "organization"
)

// Business — список допустимых бизнес-ролей.
var Business = []string{Employee, Manager, Organization}

// IsBusiness проверяет, входит ли роль в список бизнес-ролей.
func IsBusiness(role string) bool {
	for _, r := range Business {
		if r == role {
			return true
		}
	}
	return false
}

// FilterBusiness возвращает пересечение ролей токена со списком
// бизнес-ролей. Порядок входного слайса сохраняется, дубликаты
// удаляются. Никогда не возвращает nil.
func FilterBusiness(tokenRoles []string) []string {
	filtered := make([]string, 0, len(Business))
	seen := make(map[string]bool, len(Business))
	for _, r := range tokenRoles {
		if IsBusiness(r) && !seen[r] {
			filtered = append(filtered, r)
			seen[r] = true
		}
	}
	return filtered
}

// Equal сравнивает два набора ролей как множества, без учёта порядка.
func Equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, r := range a {
		set[r] = true
	}
	for _, r := range b {
		if !set[r] {
			return false
		}
	}
	return true
}
