// Пакет auth — валидация JWT Keycloak: кэш JWKS и верификатор токенов.
package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/MicahParks/keyfunc/v3"
)

// ErrIDPUnavailable — Keycloak недоступен (сеть, таймаут, не-200 ответ).
var ErrIDPUnavailable = errors.New("identity provider недоступен")

// JWKSCache — кэш набора публичных ключей Keycloak.
//
// Ключи живут в памяти процесса без TTL: фоновое обновление не нужно,
// поскольку при появлении неизвестного kid верификатор выполняет
// принудительный Refresh. Потерянный при рестарте кэш заново
// наполняется первым же запросом.
type JWKSCache struct {
	url    string
	client *http.Client
	logger *slog.Logger

	mu sync.Mutex
	kf keyfunc.Keyfunc
}

// NewJWKSCache создаёт кэш JWKS.
// client должен иметь таймаут (TM_IDP_TIMEOUT).
func NewJWKSCache(url string, client *http.Client, logger *slog.Logger) *JWKSCache {
	return &JWKSCache{
		url:    url,
		client: client,
		logger: logger.With(slog.String("component", "jwks_cache")),
	}
}

// Keyfunc возвращает keyfunc для проверки подписи токенов.
// Первый вызов забирает JWKS у Keycloak; при ошибке ничего не
// кэшируется и возвращается ErrIDPUnavailable.
func (c *JWKSCache) Keyfunc(ctx context.Context) (keyfunc.Keyfunc, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.kf != nil {
		return c.kf, nil
	}

	kf, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}
	c.kf = kf
	return c.kf, nil
}

// Refresh принудительно перечитывает JWKS.
// При ошибке прежний набор ключей сохраняется.
func (c *JWKSCache) Refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	kf, err := c.fetch(ctx)
	if err != nil {
		return err
	}
	c.kf = kf

	c.logger.Info("JWKS обновлён", slog.String("url", c.url))
	return nil
}

// fetch забирает JWKS по HTTP и строит keyfunc.
// Вызывается под мьютексом.
func (c *JWKSCache) fetch(ctx context.Context) (keyfunc.Keyfunc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса JWKS: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIDPUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: JWKS endpoint вернул статус %d", ErrIDPUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения ответа JWKS: %v", ErrIDPUnavailable, err)
	}

	kf, err := keyfunc.NewJWKSetJSON(body)
	if err != nil {
		return nil, fmt.Errorf("%w: невалидный JWKS: %v", ErrIDPUnavailable, err)
	}
	return kf, nil
}
