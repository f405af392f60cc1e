package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/air593-booking/internal/common"
	"github.com/noah-isme/air593-booking/internal/config"
	"github.com/noah-isme/air593-booking/internal/notify"
	"github.com/noah-isme/air593-booking/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis uri")
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues:      map[string]int{cfg.ReceiptQueue: 1},
		Logger:      taskLogger{logger: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(taskCtx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(taskCtx)
			logger.Error().Err(err).Str("task", task.Type()).Int("retried", retried).Msg("task failed")
		}),
	})

	mux := asynq.NewServeMux()
	notify.ReceiptHandler{
		Mail:   common.LogEmailSender{From: cfg.NotifyEmailFrom, Logger: logger},
		Logger: logger,
	}.Register(mux)

	logger.Info().Str("queue", cfg.ReceiptQueue).Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start task server")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}

// taskLogger routes asynq's internal logs through zerolog.
type taskLogger struct {
	logger zerolog.Logger
}

func (l taskLogger) Debug(args ...any) { l.logger.Debug().Msg(sprint(args)) }
func (l taskLogger) Info(args ...any)  { l.logger.Info().Msg(sprint(args)) }
func (l taskLogger) Warn(args ...any)  { l.logger.Warn().Msg(sprint(args)) }
func (l taskLogger) Error(args ...any) { l.logger.Error().Msg(sprint(args)) }

func (l taskLogger) Fatal(args ...any) {
	l.logger.Error().Msg(sprint(args))
	os.Exit(1)
}

func sprint(args []any) string {
	return strings.TrimSpace(fmt.Sprint(args...))
}
