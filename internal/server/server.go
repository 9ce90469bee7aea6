// Пакет server — HTTP-сервер Time Manager с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/arturkryukov/timemanager/internal/api/handlers"
	"github.com/arturkryukov/timemanager/internal/api/middleware"
	"github.com/arturkryukov/timemanager/internal/config"
	"github.com/arturkryukov/timemanager/internal/domain/roles"
)

// Server — HTTP-сервер Time Manager.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт новый HTTP-сервер с настроенными routes и middleware.
// jwtAuth — JWT middleware (может быть nil для тестирования без auth).
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, jwtAuth *middleware.JWTAuth) *Server {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))

	// Публичные endpoints: health и metrics проверяются Kubernetes
	// напрямую, без API Gateway.
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		if jwtAuth != nil {
			r.Use(jwtAuth.Middleware())
		}

		r.Get("/auth/me", handler.AuthMe)

		r.Route("/users", func(r chi.Router) {
			r.Get("/", handler.ListUsers)
			r.Get("/me", handler.GetCurrentUser)
			r.Get("/{id}", handler.GetUser)
			r.Get("/{id}/clocks", handler.ListUserClocks)
			r.Post("/{id}/reset-password", handler.ResetPassword)

			// мутации — только manager/organization
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(roles.Manager, roles.Organization))
				r.Post("/", handler.CreateUser)
				r.Put("/{id}", handler.UpdateUser)
				r.Delete("/{id}", handler.DeleteUser)
			})
		})

		r.Route("/teams", func(r chi.Router) {
			r.Get("/", handler.ListTeams)
			r.Get("/{id}", handler.GetTeam)
			r.Get("/{id}/members", handler.ListTeamMembers)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(roles.Manager, roles.Organization))
				r.Post("/", handler.CreateTeam)
				r.Put("/{id}", handler.UpdateTeam)
				r.Delete("/{id}", handler.DeleteTeam)
				r.Put("/{id}/members/{userId}", handler.AddTeamMember)
				r.Delete("/{id}/members/{userId}", handler.RemoveTeamMember)
			})
		})

		r.Route("/clocks", func(r chi.Router) {
			r.Post("/toggle", handler.ToggleClock)
			r.Get("/current", handler.GetCurrentClock)
			r.Get("/{id}", handler.GetClock)
		})

		r.Get("/kpi/summary", handler.KPISummary)
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
