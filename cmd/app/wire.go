package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"audio-notes-pipeline/internal/config"
	"audio-notes-pipeline/internal/domain"
	"audio-notes-pipeline/internal/domain/ports/adapter"
	"audio-notes-pipeline/internal/domain/ports/repository"
	aiAdapters "audio-notes-pipeline/internal/infra/adapters/ai"
	"audio-notes-pipeline/internal/infra/adapters/delivery"
	"audio-notes-pipeline/internal/infra/adapters/media"
	"audio-notes-pipeline/internal/infra/cleanup"
	"audio-notes-pipeline/internal/infra/db/filestore"
	pg "audio-notes-pipeline/internal/infra/db/postgres"
	red "audio-notes-pipeline/internal/infra/redis"
	"audio-notes-pipeline/internal/infra/tokens"
	"audio-notes-pipeline/internal/usecase"
)

type app struct {
	cfg     *config.Config
	log     *zerolog.Logger
	store   *usecase.JobStore
	creds   *usecase.CredentialPool
	runner  *usecase.BatchRunner
	cleaner *cleanup.Service

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: logger}

	// ---- Storage ----
	var (
		jobRepo  repository.JobRepository
		credRepo repository.CredentialRepository
	)
	switch cfg.Storage.Backend {
	case "postgres":
		pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.MaxConns))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		jobRepo = pg.NewJobRepo(pool, pg.NewTxManager(pool))
		credRepo = pg.NewCredentialRepo(pool)
		logPool(logger, pool)
	default:
		jobRepo = filestore.NewJobRepo(cfg.Storage.JobsFile)
		credRepo = filestore.NewCredentialRepo(cfg.Storage.KeysFile)
	}

	// ---- Batch lock ----
	var locker repository.Locker
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rc.Close() })
		locker = red.NewLocker(rc)
	}

	// ---- Credentials ----
	a.creds = usecase.NewCredentialPool(credRepo, cfg.QuotaLocation(), logger)
	for _, k := range cfg.AI.Keys {
		if err := a.creds.AddKey(ctx, k); err != nil && !errors.Is(err, domain.ErrAlreadyExists) && !errors.Is(err, domain.ErrInvalidArgument) {
			return nil, fmt.Errorf("seed keys: %w", err)
		}
	}

	// ---- AI ----
	var gen adapter.Generator
	var resolver aiAdapters.ProviderResolver
	if cfg.Runtime.Dev && len(cfg.AI.Keys) == 0 {
		gen = aiAdapters.NewNoopAIAdapter(logger)
		logger.Warn().Msg("[DEV MODE] no AI keys configured, using noop generator")
	} else {
		multi := aiAdapters.NewMultiAIAdapter(cfg.AI.DefaultProvider, map[string]adapter.Generator{
			"gemini": aiAdapters.NewGeminiAdapter(cfg.AI.GeminiURL),
			"openai": aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIBaseURL),
		}, cfg.AI.ModelProviders)
		gen, resolver = multi, multi
	}
	gen = aiAdapters.NewLimitedAI(gen, resolver, 1)
	exec := usecase.NewRequestExecutor(a.creds, gen, usecase.ExecutorConfig{
		Timeout:       cfg.AI.RequestTimeout,
		MaxRetries:    cfg.AI.MaxRetries,
		RetryDelay:    cfg.AI.RetryDelay,
		OverloadDelay: cfg.AI.OverloadDelay,
	}, logger)

	// ---- Media ----
	fetcher := media.NewYtDlp(cfg.Audio.YtDlpPath, cfg.Audio.DownloadsDir, cfg.Audio.CookiesFile, cfg.Audio.UserAgent)
	planner := usecase.NewChunkPlanner(media.NewFFmpeg(cfg.Audio.FFmpegPath, cfg.Audio.FFprobePath), usecase.PlannerConfig{
		SizeCeiling:     cfg.Audio.SizeCeilingBytes,
		SegmentLength:   cfg.SegmentLength(),
		ReencodeBitrate: cfg.Audio.ReencodeBitrate,
		TempDir:         cfg.Audio.TempDir,
	}, logger)

	// ---- Delivery ----
	deliverers := []adapter.Deliverer{delivery.NewMarkdownWriter(cfg.Delivery.OutputDir)}
	if n := cfg.Delivery.Notion; n.Secret != "" {
		deliverers = append(deliverers, delivery.NewNotionPublisher(n.Secret, n.DatabaseID, n.BaseURL))
	}
	if tg := cfg.Delivery.Telegram; tg.Token != "" && tg.ChatID != 0 {
		sender, err := delivery.NewTelegramSender(tg.Token, tg.ChatID)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram delivery disabled")
		} else {
			deliverers = append(deliverers, sender)
		}
	}

	notePrompt := ""
	if cfg.AI.NotePromptPath != "" {
		b, err := os.ReadFile(cfg.AI.NotePromptPath)
		if err != nil {
			return nil, fmt.Errorf("note prompt: %w", err)
		}
		notePrompt = string(b)
	}

	a.cleaner = cleanup.NewService(cfg.Audio.TempDir, cfg.Audio.DownloadsDir, fetcher, logger)
	a.store = usecase.NewJobStore(jobRepo, logger)
	if err := a.store.Reload(ctx); err != nil {
		return nil, err
	}
	pipe := usecase.NewPipeline(a.store, fetcher, planner, exec, deliverers, a.cleaner, tokens.NewEstimator(), usecase.PipelineConfig{
		TranscriptionModel: cfg.AI.TranscriptionModel,
		NoteModel:          cfg.AI.NoteModel,
		NotePrompt:         notePrompt,
	}, logger)
	a.runner = usecase.NewBatchRunner(a.store, pipe, locker, cfg.Redis.LockTTL, logger)
	return a, nil
}

func logPool(logger *zerolog.Logger, pool *pgxpool.Pool) {
	st := pool.Stat()
	logger.Info().Int32("max_conns", st.MaxConns()).Msg("postgres connected")
}
