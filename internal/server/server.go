// Пакет server — HTTP-сервер Channel Store с TLS и graceful shutdown.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/chanstore/internal/api/handlers"
	"github.com/bigkaa/chanstore/internal/api/middleware"
	"github.com/bigkaa/chanstore/internal/config"
	"github.com/bigkaa/chanstore/internal/ui/static"
)

// Routes — обработчики и middleware, из которых собирается маршрутизатор.
type Routes struct {
	Files        *handlers.FilesHandler
	Maintenance  *handlers.MaintenanceHandler
	Health       *handlers.HealthHandler
	Auth         *handlers.AuthHandler
	SessionAuth  *middleware.SessionAuth
	LoginLimiter *middleware.LoginLimiter
}

// NewRouter собирает chi-маршрутизатор.
// Без сессии доступны только вход, health, metrics и статика.
func NewRouter(routes Routes, logger *slog.Logger) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	// Публичные маршруты
	router.Get("/health/live", routes.Health.HealthLive)
	router.Get("/health/ready", routes.Health.HealthReady)
	router.Handle("/metrics", promhttp.Handler())
	router.Handle("/static/*", http.StripPrefix("/static", http.FileServer(static.FileSystem())))

	router.Get("/login", routes.Auth.LoginPage)
	router.With(routes.LoginLimiter.Middleware()).Post("/login", routes.Auth.Login)
	router.Post("/logout", routes.Auth.Logout)

	// Маршруты, требующие сессии
	router.Group(func(r chi.Router) {
		r.Use(routes.SessionAuth.Middleware())

		r.Get("/", indexPage)

		r.Post("/upload", routes.Files.Upload)
		r.Get("/files", routes.Files.ListFiles)
		r.Get("/file/{message_id}", routes.Files.GetLink)
		r.Get("/file/content/{message_id}", routes.Files.FileContent)
		r.Get("/thumbnail/{message_id}", routes.Files.Thumbnail)
		r.Get("/download/proxy/{message_id}", routes.Files.DownloadProxy)
		r.Post("/rename", routes.Files.Rename)
		r.Post("/delete-multiple", routes.Files.DeleteMultiple)
		r.Post("/delete", routes.Files.DeleteOne)

		r.Route("/api/v1/maintenance/orphans", func(r chi.Router) {
			r.Get("/", routes.Maintenance.ListOrphans)
			r.Post("/{tx_id}/adopt", routes.Maintenance.AdoptOrphan)
			r.Post("/{tx_id}/discard", routes.Maintenance.DiscardOrphan)
		})
	})

	return router
}

// indexPage отдаёт главную страницу файлового менеджера.
func indexPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(static.Page("index.html"))
}

// Server — HTTP-сервер Channel Store.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с готовым обработчиком.
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Без ReadTimeout/WriteTimeout: загрузка и прокси файлов не ограничены по времени
		IdleTimeout: 120 * time.Second,
	}

	if cfg.TLSEnabled() {
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
		cfg:        cfg,
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM)
// или отмены ctx. Затем выполняется graceful shutdown с таймаутом
// CS_SHUTDOWN_TIMEOUT.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.Bool("tls", s.cfg.TLSEnabled()),
		)

		var err error
		if s.cfg.TLSEnabled() {
			err = s.httpServer.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.httpServer.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("Контекст сервера отменён")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
