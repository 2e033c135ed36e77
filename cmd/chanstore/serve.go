package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/chanstore/internal/api/handlers"
	"github.com/bigkaa/chanstore/internal/api/middleware"
	"github.com/bigkaa/chanstore/internal/auth"
	"github.com/bigkaa/chanstore/internal/config"
	"github.com/bigkaa/chanstore/internal/server"
	"github.com/bigkaa/chanstore/internal/service"
	"github.com/bigkaa/chanstore/internal/storage/recordstore"
	"github.com/bigkaa/chanstore/internal/ui/static"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP-сервер",
	Long:  `Запускает веб-интерфейс и HTTP API файлового менеджера.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := openCore(ctx)
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.cfg.ValidateServe(); err != nil {
			return fmt.Errorf("ошибка конфигурации: %w", err)
		}

		logger := c.logger
		logger.Info("Запуск Channel Store",
			slog.String("version", config.Version),
			slog.Int("port", c.cfg.Port),
			slog.String("store_backend", c.cfg.StoreBackend),
			slog.String("log_level", c.cfg.LogLevel.String()),
		)

		pending, orphaned, err := c.journal.Recover()
		if err != nil {
			return fmt.Errorf("не удалось восстановить журнал загрузок: %w", err)
		}
		logger.Info("Журнал загрузок восстановлен",
			slog.String("dir", c.journal.Dir()),
			slog.Int("interrupted", pending),
			slog.Int("orphaned", orphaned),
		)

		// Мониторинг Bot API
		var deps handlers.DependencyHealth
		if c.cfg.DephealthCheckInterval > 0 {
			dh, err := service.NewDephealthService(c.cfg.APIBaseURL, c.cfg.DephealthCheckInterval, logger)
			if err != nil {
				logger.Warn("Мониторинг зависимостей отключён", slog.String("error", err.Error()))
			} else if err := dh.Start(ctx); err != nil {
				logger.Warn("Не удалось запустить мониторинг зависимостей", slog.String("error", err.Error()))
			} else {
				defer dh.Stop()
				deps = dh
			}
		}

		sessionManager, err := auth.NewSessionManager(c.cfg.SessionSecret, c.cfg.SessionTTL, c.cfg.CookieSecure)
		if err != nil {
			return fmt.Errorf("не удалось создать менеджер сессий: %w", err)
		}
		if c.cfg.SessionSecret == "" {
			logger.Warn("CS_SESSION_SECRET не задан: сессии не переживут перезапуск")
		}
		credentials := auth.Credentials{Username: c.cfg.AdminUser, Password: c.cfg.AdminPass}

		router := server.NewRouter(server.Routes{
			Files:        handlers.NewFilesHandler(c.svc, c.client, c.cfg.MaxFileSize, c.cfg.PreviewMaxBytes, logger),
			Maintenance:  handlers.NewMaintenanceHandler(c.svc),
			Health:       handlers.NewHealthHandler(recordstore.NewReadinessChecker(c.store), deps),
			Auth:         handlers.NewAuthHandler(sessionManager, credentials, static.Page("login.html"), logger),
			SessionAuth:  middleware.NewSessionAuth(sessionManager, logger),
			LoginLimiter: middleware.NewLoginLimiter(c.cfg.LoginRatePerMinute, logger),
		}, logger)

		srv := server.New(c.cfg, logger, router)
		if err := srv.Run(ctx); err != nil {
			return err
		}

		logger.Info("Channel Store остановлен")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
