// Пакет keycloak — HTTP-клиент к Keycloak Admin REST API.
// models.go — модели данных Keycloak.
package keycloak

// TokenResponse — ответ на запрос токена.
type TokenResponse struct {
	AccessToken string `json:"access_token"` //nolint:gosec // G117: структура токена OAuth2
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// UserRepresentation — пользователь в Keycloak Admin REST API.
type UserRepresentation struct {
	ID            string                     `json:"id,omitempty"`
	Username      string                     `json:"username"`
	Email         string                     `json:"email,omitempty"`
	FirstName     string                     `json:"firstName,omitempty"`
	LastName      string                     `json:"lastName,omitempty"`
	Enabled       bool                       `json:"enabled"`
	EmailVerified bool                       `json:"emailVerified"`
	Credentials   []CredentialRepresentation `json:"credentials,omitempty"`
}

// CredentialRepresentation — учётные данные пользователя.
type CredentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// RoleRepresentation — роль realm.
type RoleRepresentation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserCreateParams — параметры создания пользователя.
type UserCreateParams struct {
	Username     string
	Email        string
	FirstName    string
	LastName     string
	TempPassword string
	RealmRoles   []string
}
