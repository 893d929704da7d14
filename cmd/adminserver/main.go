// Command adminserver is the process entrypoint: it loads configuration,
// opens storage, restores the in-memory queue, wires the admission front,
// grader, reward claimer and engine, starts the worker pool, and serves the
// Telegram webhook alongside the admin HTTP surface until told to stop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/arcadehub/promptengine/internal/admission"
	"github.com/arcadehub/promptengine/internal/channel"
	"github.com/arcadehub/promptengine/internal/config"
	"github.com/arcadehub/promptengine/internal/content"
	"github.com/arcadehub/promptengine/internal/engine"
	"github.com/arcadehub/promptengine/internal/grader"
	httpapi "github.com/arcadehub/promptengine/internal/http"
	"github.com/arcadehub/promptengine/internal/llmclient"
	"github.com/arcadehub/promptengine/internal/observability"
	"github.com/arcadehub/promptengine/internal/queue"
	"github.com/arcadehub/promptengine/internal/repo"
	"github.com/arcadehub/promptengine/internal/reward"
	"github.com/arcadehub/promptengine/internal/store"
	"github.com/arcadehub/promptengine/internal/sysutil"
	"github.com/arcadehub/promptengine/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	dsn := cfg.DBPath
	if cfg.DBDriver == "postgres" {
		dsn = cfg.DBDsn
	}
	db, err := repo.OpenDB(repo.DBDriver(cfg.DBDriver), dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("adminserver: open db")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("adminserver: automigrate")
	}

	contentCfg, err := content.Load(cfg.Engine.ActivityConfigPath, cfg.Engine.LevelsConfigPath, cfg.Engine.RewardsConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("adminserver: load content config")
	}
	holder := content.NewHolder(contentCfg)

	st := store.New(db)

	q := queue.New(cfg.Engine.QueueMaxLength)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.RestoreFromStorage(ctx, st); err != nil {
		log.Fatal().Err(err).Msg("adminserver: restore queue from storage")
	}

	ch := channel.New(cfg.Engine.TelegramBotToken, "")
	llm := llmclient.New(cfg.Engine.LLMBaseURL, cfg.Engine.LLMAPIKey, cfg.Engine.LLMModel)
	gr := grader.New(&grader.Judge{LLM: llm})
	claimer := reward.New(db)
	templates, err := engine.NewTemplates()
	if err != nil {
		log.Fatal().Err(err).Msg("adminserver: parse message templates")
	}
	eng := engine.New(st, gr, claimer, llm, ch, templates, holder.Get)
	front := admission.New(st, q, ch, holder.Get)

	pool := worker.New(q, eng, cfg.Engine.WorkerConcurrency)
	pool.Start(ctx)

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, "adminserver")
	if err != nil {
		log.Fatal().Err(err).Msg("adminserver: setup otel")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := shutdownOTel(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("adminserver: otel shutdown")
		}
	}()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, st, holder, q, cfg)
	r.POST("/webhook/telegram", channel.Webhook(front))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	if cfg.Engine.ReloadSignalEnabled {
		reloadSignal := make(chan os.Signal, 1)
		signal.Notify(reloadSignal, syscall.SIGHUP)
		go func() {
			for range reloadSignal {
				if _, err := holder.Reload(cfg.Engine.ActivityConfigPath, cfg.Engine.LevelsConfigPath, cfg.Engine.RewardsConfigPath); err != nil {
					log.Error().Err(err).Msg("adminserver: SIGHUP reload failed")
					continue
				}
				log.Info().Msg("adminserver: content config reloaded via SIGHUP")
			}
		}()
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("adminserver: listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("adminserver: listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("adminserver: shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("adminserver: http server shutdown")
	}

	pool.Shutdown(cfg.Engine.DrainDeadline)
	cancel()
}
