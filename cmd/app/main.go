// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"audio-notes-pipeline/internal/config"
	"audio-notes-pipeline/internal/domain"
	"audio-notes-pipeline/internal/domain/model"
	"audio-notes-pipeline/internal/infra/logging"
	"audio-notes-pipeline/internal/infra/metrics"
	"audio-notes-pipeline/internal/infra/report"
	"audio-notes-pipeline/internal/infra/web"
	"audio-notes-pipeline/internal/infra/worker"
	"audio-notes-pipeline/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, noop AI without keys)")
	enqueueNames := flag.String("enqueue-names", "", "lecture names separated by comma, | or newline")
	enqueueURLs := flag.String("enqueue-urls", "", "source urls matching -enqueue-names")
	cancelPending := flag.Bool("cancel-pending", false, "cancel every job that is not completed")
	process := flag.Bool("process", false, "run the pending batch once")
	watch := flag.Bool("watch", false, "re-run the pending batch every worker.interval")
	admin := flag.Bool("admin", false, "serve the admin API on admin.port")
	cleanupJobs := flag.Bool("cleanup", false, "delete intermediate files of completed and cancelled jobs")
	purgeAll := flag.Bool("purge-all", false, "delete every intermediate file in temp and downloads")
	reportPath := flag.String("report", "", "write an xlsx job report to this path")
	mintToken := flag.Bool("mint-token", false, "print an admin API bearer token")
	addKey := flag.String("add-key", "", "add an API key to the credential pool")
	removeKey := flag.String("remove-key", "", "remove an API key from the credential pool")
	listKeys := flag.Bool("list-keys", false, "print masked keys with usage")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.WithRunID(ctx, uuid.NewString())

	if *mintToken {
		tok, err := web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL).Mint("cli")
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		fmt.Println(tok)
		return
	}

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	did := false
	must := func(err error, what string) {
		if err != nil {
			logger.Error().Err(err).Msg(what)
			a.Close()
			os.Exit(1)
		}
	}

	// ---- Key management ----
	if *addKey != "" {
		did = true
		err := a.creds.AddKey(ctx, *addKey)
		if errors.Is(err, domain.ErrAlreadyExists) {
			logger.Info().Str("key", logging.Redact(*addKey, false)).Msg("key already present")
			err = nil
		}
		must(err, "add key")
	}
	if *removeKey != "" {
		did = true
		must(a.creds.RemoveKey(ctx, *removeKey), "remove key")
	}
	if *listKeys {
		did = true
		creds, err := a.creds.List(ctx)
		must(err, "list keys")
		for _, c := range creds {
			fmt.Printf("%s\tusage=%v\texhausted=%v\n", c.Masked(), c.Usage, c.Exhausted)
		}
	}

	// ---- Job management ----
	if *enqueueNames != "" || *enqueueURLs != "" {
		did = true
		jobs, err := a.store.Enqueue(ctx, usecase.ParseList(*enqueueNames), usecase.ParseList(*enqueueURLs))
		must(err, "enqueue")
		for _, j := range jobs {
			fmt.Printf("%s\t%s\n", j.ID, j.Name)
		}
	}
	if *cancelPending {
		did = true
		n, err := a.store.CancelPending(ctx)
		must(err, "cancel pending")
		fmt.Printf("cancelled %d jobs\n", n)
	}
	if *cleanupJobs {
		did = true
		var done []*model.Job
		for _, j := range a.store.List() {
			if j.IsTerminal() {
				done = append(done, j)
			}
		}
		a.cleaner.PurgeJobs(done)
	}
	if *purgeAll {
		did = true
		fmt.Printf("deleted %d files\n", a.cleaner.PurgeAll())
	}

	if *process {
		did = true
		stats, err := a.runner.RunPending(ctx)
		logger.Info().Int("total", stats.Total).Int("completed", stats.Completed).Int("failed", stats.Failed).
			Int("skipped", stats.Skipped).Int("aborted", stats.Aborted).Dur("duration", stats.Duration).Msg("batch summary")
		if err != nil && !errors.Is(err, context.Canceled) {
			must(err, "batch stopped")
		}
	}

	if *reportPath != "" {
		did = true
		must(report.WriteJobs(*reportPath, a.store.List()), "report")
		logger.Info().Str("path", *reportPath).Msg("report written")
	}

	if !*watch && !*admin {
		if !did {
			flag.Usage()
		}
		return
	}

	// ---- Long running modes ----
	var srv *web.Server
	if *admin {
		srv = web.NewServer(a.store, a.creds, web.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL), logger)
		go func() {
			if err := srv.Start(cfg.Admin.Port); err != nil {
				logger.Error().Err(err).Msg("admin server stopped")
				stop()
			}
		}()
	}
	var pool *worker.Pool
	if *watch {
		pool = worker.NewPool(1, 0, logger)
		pool.Start(ctx)
		go worker.NewBatchProcessor(a.runner, cfg.Worker.Interval, logger).Start(ctx, pool)
	}

	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	if srv != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = srv.Shutdown(sctx)
		cancel()
	}
	if pool != nil {
		pool.Stop()
	}
}
