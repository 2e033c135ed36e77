package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bigkaa/chanstore/internal/channel"
	"github.com/bigkaa/chanstore/internal/config"
	"github.com/bigkaa/chanstore/internal/service"
	"github.com/bigkaa/chanstore/internal/storage/journal"
	"github.com/bigkaa/chanstore/internal/storage/recordstore"
)

var rootCmd = &cobra.Command{
	Use:   "chanstore",
	Short: "Файловый менеджер поверх Telegram-канала",
	Long: `Channel Store хранит файлы сообщениями в Telegram-канале,
а список файлов ведёт в локальном хранилище записей.

Настройка выполняется переменными окружения CS_*.`,
	SilenceUsage: true,
}

// Execute выполняет корневую команду.
func Execute() error {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, %s)", version, commit, date)
	return rootCmd.Execute()
}

// core — ядро синхронизации со всеми зависимостями.
type core struct {
	cfg     *config.Config
	logger  *slog.Logger
	client  *channel.Client
	store   recordstore.Store
	journal *journal.Journal
	svc     *service.SyncService
}

// openCore загружает конфигурацию и собирает ядро синхронизации.
// Вызывающий обязан вызвать Close.
func openCore(ctx context.Context) (*core, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("ошибка конфигурации: %w", err)
	}
	logger := config.SetupLogger(cfg)

	store, err := recordstore.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть хранилище записей: %w", err)
	}

	j, err := journal.New(cfg.JournalDir, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("не удалось открыть журнал загрузок: %w", err)
	}

	client := channel.New(channel.Config{
		BaseURL:   cfg.APIBaseURL,
		Token:     cfg.BotToken,
		ChannelID: cfg.ChannelID,
		Timeout:   cfg.APITimeout,
		RateLimit: cfg.APIRateLimit,
		RateBurst: cfg.APIRateBurst,
	}, logger)

	svc := service.NewSyncService(client, store, j, service.Options{
		MaxFileSize:       cfg.MaxFileSize,
		UploadConcurrency: cfg.UploadConcurrency,
		DeleteConcurrency: cfg.DeleteConcurrency,
		LinkCache:         service.NewLinkCache(cfg.LinkCacheSize, cfg.LinkCacheTTL),
	}, logger)

	return &core{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		store:   store,
		journal: j,
		svc:     svc,
	}, nil
}

// Close освобождает хранилище записей.
func (c *core) Close() {
	if err := c.store.Close(); err != nil {
		c.logger.Error("Ошибка закрытия хранилища записей", slog.String("error", err.Error()))
	}
}
