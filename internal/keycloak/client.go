// client.go — HTTP-клиент к Keycloak Admin REST API.
// Аутентификация: Password Credentials flow администратора в realm master
// (client_id admin-cli), кэширование токена с запасом 60s до expiration.
// Операции: CreateUser, DeleteUser, AssignRealmRoles, ResetPassword,
// VerifyPassword, CheckReady.
package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Ошибки клиента Keycloak.
var (
	// ErrAdminAuthFailed — не удалось получить административный токен.
	ErrAdminAuthFailed = errors.New("ошибка аутентификации администратора Keycloak")
	// ErrDuplicateIdentity — пользователь с таким username/email уже существует.
	ErrDuplicateIdentity = errors.New("пользователь уже существует в Keycloak")
	// ErrPasswordChangeFailed — Keycloak отклонил смену пароля.
	ErrPasswordChangeFailed = errors.New("ошибка смены пароля в Keycloak")
)

// adminCLIClientID — встроенный клиент Keycloak для Admin API.
const adminCLIClientID = "admin-cli"

// tokenExpiryMargin — токен считается протухшим за 60s до expiration,
// чтобы запрос не умер с токеном, истёкшим в полёте.
const tokenExpiryMargin = 60 * time.Second

// Client — HTTP-клиент к Keycloak Admin REST API.
type Client struct {
	baseURL          string // Базовый URL Keycloak (без trailing slash)
	realm            string // Целевой realm (пользователи приложения)
	adminUser        string // Логин администратора realm master
	adminPassword    string // Пароль администратора
	frontendClientID string // Client ID для проверки пароля (password grant)

	httpClient *http.Client
	logger     *slog.Logger

	// подменяется в тестах для контроля времени
	now func() time.Time

	// Кэш административного токена
	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// New создаёт клиент к Keycloak Admin REST API.
// baseURL — внутренний URL Keycloak.
// realm — целевой realm приложения.
// adminUser, adminPassword — администратор realm master.
// frontendClientID — клиент для проверки пароля пользователя.
// httpClient должен иметь таймаут (TM_IDP_TIMEOUT).
func New(baseURL, realm, adminUser, adminPassword, frontendClientID string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		realm:            realm,
		adminUser:        adminUser,
		adminPassword:    adminPassword,
		frontendClientID: frontendClientID,
		httpClient:       httpClient,
		logger:           logger.With(slog.String("component", "keycloak_client")),
		now:              time.Now,
	}
}

// --- Аутентификация ---

// masterTokenEndpoint возвращает URL получения административного токена.
func (c *Client) masterTokenEndpoint() string {
	return c.baseURL + "/realms/master/protocol/openid-connect/token"
}

// realmTokenEndpoint возвращает URL получения токена целевого realm.
func (c *Client) realmTokenEndpoint() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", c.baseURL, c.realm)
}

// adminBaseURL возвращает базовый URL Admin REST API для целевого realm.
func (c *Client) adminBaseURL() string {
	return fmt.Sprintf("%s/admin/realms/%s", c.baseURL, c.realm)
}

// AdminToken возвращает актуальный административный токен.
// Кэшированный токен переиспользуется, пока до истечения остаётся
// больше 60 секунд, иначе запрашивается новый.
func (c *Client) AdminToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Add(tokenExpiryMargin).Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	token, err := c.requestAdminToken(ctx)
	if err != nil {
		return "", err
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = c.now().Add(time.Duration(token.ExpiresIn) * time.Second)

	c.logger.Debug("Административный токен Keycloak обновлён",
		slog.Time("expires_at", c.tokenExpiry),
	)

	return c.accessToken, nil
}

// requestAdminToken выполняет Password Credentials flow в realm master.
func (c *Client) requestAdminToken(ctx context.Context) (*TokenResponse, error) {
	data := url.Values{
		"grant_type": {"password"},
		"client_id":  {adminCLIClientID},
		"username":   {c.adminUser},
		"password":   {c.adminPassword},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.masterTokenEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: создание запроса: %v", ErrAdminAuthFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAdminAuthFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: Keycloak вернул статус %d: %s", ErrAdminAuthFailed, resp.StatusCode, string(body))
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("%w: декодирование ответа: %v", ErrAdminAuthFailed, err)
	}

	return &token, nil
}

// --- HTTP helpers ---

// doAuthorized выполняет HTTP-запрос к Admin REST API с авторизацией.
func (c *Client) doAuthorized(ctx context.Context, method, path string, body any) (*http.Response, error) {
	token, err := c.AdminToken(ctx)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("сериализация тела запроса: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	reqURL := c.adminBaseURL() + path
	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("создание запроса: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

// --- Users API ---

// CreateUser создаёт пользователя в целевом realm и возвращает его Keycloak ID.
// 409 от Keycloak транслируется в ErrDuplicateIdentity.
// Назначение ролей — best-effort: при ошибке пользователь остаётся
// созданным, ошибка только логируется.
func (c *Client) CreateUser(ctx context.Context, params UserCreateParams) (string, error) {
	rep := UserRepresentation{
		Username:      params.Username,
		Email:         params.Email,
		FirstName:     params.FirstName,
		LastName:      params.LastName,
		Enabled:       true,
		EmailVerified: true,
	}
	if params.TempPassword != "" {
		rep.Credentials = []CredentialRepresentation{{
			Type:      "password",
			Value:     params.TempPassword,
			Temporary: true,
		}}
	}

	resp, err := c.doAuthorized(ctx, http.MethodPost, "/users", rep)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		return "", ErrDuplicateIdentity
	}
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("CreateUser: Keycloak вернул статус %d: %s", resp.StatusCode, string(body))
	}

	// Keycloak возвращает Location header с ID созданного ресурса
	location := resp.Header.Get("Location")
	if location == "" {
		return "", fmt.Errorf("CreateUser: отсутствует Location header в ответе")
	}
	parts := strings.Split(location, "/")
	userID := parts[len(parts)-1]
	if userID == "" {
		return "", fmt.Errorf("CreateUser: не удалось извлечь ID из Location: %s", location)
	}

	if len(params.RealmRoles) > 0 {
		if err := c.AssignRealmRoles(ctx, userID, params.RealmRoles); err != nil {
			c.logger.Warn("Не удалось назначить роли созданному пользователю",
				slog.String("keycloak_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	return userID, nil
}

// DeleteUser удаляет пользователя в Keycloak.
// 404 считается успехом: пользователь уже удалён.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	resp, err := c.doAuthorized(ctx, http.MethodDelete, "/users/"+userID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("DeleteUser: Keycloak вернул статус %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// AssignRealmRoles назначает пользователю роли realm по именам.
func (c *Client) AssignRealmRoles(ctx context.Context, userID string, roleNames []string) error {
	// сначала собираем представления ролей
	reps := make([]RoleRepresentation, 0, len(roleNames))
	for _, name := range roleNames {
		resp, err := c.doAuthorized(ctx, http.MethodGet, "/roles/"+url.PathEscape(name), nil)
		if err != nil {
			return err
		}

		var rep RoleRepresentation
		err = decodeResponse(resp, &rep)
		if err != nil {
			return fmt.Errorf("получение роли %q: %w", name, err)
		}
		reps = append(reps, rep)
	}

	resp, err := c.doAuthorized(ctx, http.MethodPost, "/users/"+userID+"/role-mappings/realm", reps)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("назначение ролей: Keycloak вернул статус %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// ResetPassword устанавливает пользователю новый пароль.
// Любой не-2xx ответ Keycloak транслируется в ErrPasswordChangeFailed
// с деталями провайдера.
func (c *Client) ResetPassword(ctx context.Context, userID, newPassword string, temporary bool) error {
	cred := CredentialRepresentation{
		Type:      "password",
		Value:     newPassword,
		Temporary: temporary,
	}

	resp, err := c.doAuthorized(ctx, http.MethodPut, "/users/"+userID+"/reset-password", cred)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: статус %d: %s", ErrPasswordChangeFailed, resp.StatusCode, string(body))
	}
	return nil
}

// VerifyPassword проверяет пароль пользователя через Password
// Credentials flow в целевом realm. Логин для grant берётся из
// Keycloak через Admin API (username, при его отсутствии email):
// username в Keycloak может отличаться от локального email.
// Возвращает true только при успешной выдаче токена; любая ошибка
// (включая недоступность Keycloak) трактуется как неверный пароль.
func (c *Client) VerifyPassword(ctx context.Context, keycloakID, password string) bool {
	login, err := c.resolveLogin(ctx, keycloakID)
	if err != nil {
		c.logger.Debug("Проверка пароля: не удалось определить логин",
			slog.String("keycloak_id", keycloakID),
			slog.String("error", err.Error()),
		)
		return false
	}

	data := url.Values{
		"grant_type": {"password"},
		"client_id":  {c.frontendClientID},
		"username":   {login},
		"password":   {password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.realmTokenEndpoint(), strings.NewReader(data.Encode()))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Проверка пароля: Keycloak недоступен",
			slog.String("error", err.Error()),
		)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// resolveLogin возвращает логин пользователя по его Keycloak ID.
func (c *Client) resolveLogin(ctx context.Context, keycloakID string) (string, error) {
	resp, err := c.doAuthorized(ctx, http.MethodGet, "/users/"+keycloakID, nil)
	if err != nil {
		return "", err
	}

	var rep UserRepresentation
	if err := decodeResponse(resp, &rep); err != nil {
		return "", fmt.Errorf("получение пользователя %s: %w", keycloakID, err)
	}

	switch {
	case rep.Username != "":
		return rep.Username, nil
	case rep.Email != "":
		return rep.Email, nil
	}
	return "", fmt.Errorf("у пользователя %s нет ни username, ни email", keycloakID)
}

// decodeResponse декодирует JSON ответ в target.
func decodeResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("Keycloak API вернул статус %d: %s", resp.StatusCode, string(body))
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("декодирование ответа Keycloak: %w", err)
		}
	}

	return nil
}

// --- Readiness checker ---

// CheckReady проверяет доступность Keycloak через OIDC discovery
// целевого realm. Реализует handlers.ReadinessChecker.
func (c *Client) CheckReady() (string, string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wellKnown := fmt.Sprintf("%s/realms/%s/.well-known/openid-configuration", c.baseURL, c.realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, http.NoBody)
	if err != nil {
		return "fail", "ошибка создания запроса: " + err.Error()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "fail", fmt.Sprintf("Keycloak недоступен: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "fail", fmt.Sprintf("Keycloak вернул статус %d", resp.StatusCode)
	}

	return "ok", fmt.Sprintf("Realm %s доступен", c.realm)
}
