// Пакет server — HTTP-сервер PolicyHub с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/policyhub/internal/api/handlers"
	"github.com/bigkaa/policyhub/internal/api/middleware"
	"github.com/bigkaa/policyhub/internal/config"
	"github.com/bigkaa/policyhub/internal/domain/rbac"
)

// Server — HTTP-сервер PolicyHub.
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

	// JWT middleware с исключениями для публичных endpoints.
	// Health и metrics проверяются Kubernetes напрямую, без API Gateway.
	if jwtAuth != nil {
		router.Use(jwtAuthWithExclusions(jwtAuth, "/health/", "/metrics"))
	}

	// Публичные endpoints
	router.Get("/health/live", handler.HealthLive)
	router.Get("/health/ready", handler.HealthReady)
	router.Get("/metrics", handler.GetMetrics)

	// Лестница ролей: каждая следующая роль включает возможности предыдущей.
	anyRole := middleware.RequireRole(rbac.RoleReadOnly, rbac.RoleEdit, rbac.RolePublish, rbac.RoleSuperAdmin)
	editUp := middleware.RequireRole(rbac.RoleEdit, rbac.RolePublish, rbac.RoleSuperAdmin)
	publishUp := middleware.RequireRole(rbac.RolePublish, rbac.RoleSuperAdmin)
	superAdmin := middleware.RequireRole(rbac.RoleSuperAdmin)

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/policies", func(r chi.Router) {
			r.With(anyRole).Get("/", handler.ListPolicies)
			r.With(editUp).Post("/", handler.CreatePolicy)

			r.Route("/{id}", func(r chi.Router) {
				r.With(anyRole).Get("/", handler.GetPolicy)
				r.With(editUp).Put("/", handler.UpdatePolicy)
				r.With(superAdmin).Delete("/", handler.DeletePolicy)

				// Финальная проверка допустимости перехода — в сервисном слое:
				// middleware отсекает только роли без каких-либо прав на переходы.
				r.With(editUp).Post("/transition", handler.TransitionPolicy)
				r.With(publishUp).Post("/clone", handler.ClonePolicy)
				r.With(anyRole).Get("/family", handler.PolicyFamily)
				r.With(anyRole).Get("/replacement", handler.PolicyReplacement)
				r.With(anyRole).Get("/revisions", handler.ListPolicyRevisions)
			})
		})

		r.Route("/revisions", func(r chi.Router) {
			r.With(publishUp).Post("/{id}/review", handler.ReviewRevision)
		})

		r.Route("/role-overrides", func(r chi.Router) {
			r.With(superAdmin).Get("/", handler.ListRoleOverrides)
			r.With(superAdmin).Put("/{id}", handler.SetRoleOverride)
			r.With(superAdmin).Delete("/{id}", handler.DeleteRoleOverride)
		})
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

// jwtAuthWithExclusions оборачивает JWTAuth.Middleware(), пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes, проходят без JWT.
func jwtAuthWithExclusions(jwtAuth *middleware.JWTAuth, excludePrefixes ...string) func(http.Handler) http.Handler {
	jwtMiddleware := jwtAuth.Middleware()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Проверяем, начинается ли путь с исключённого префикса
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			// Применяем JWT middleware
			jwtMiddleware(next).ServeHTTP(w, r)
		})
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
