package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/gregai-backend/internal/app/sender"
	"github.com/magabrotheeeer/gregai-backend/internal/config"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
)

func main() {
	checkOnly := flag.Bool("check-config", false, "validate sender configuration and exit")
	flag.Parse()

	cfg := config.MustLoad()
	logger := sl.New(cfg.Env, os.Stdout)

	if err := sender.CheckConfig(cfg); err != nil {
		logger.Error("sender configuration is invalid", sl.Err(err))
		os.Exit(2)
	}
	if *checkOnly {
		logger.Info("sender configuration is valid")
		return
	}

	logger.Info("starting sender service",
		slog.String("env", cfg.Env),
		slog.String("queue", rabbitmq.EmailQueue.QueueName),
		slog.String("smtp", net.JoinHostPort(cfg.SMTP.SMTPHost, cfg.SMTP.SMTPPort)),
		slog.String("from", cfg.SMTP.FromEmail),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := sender.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect to mail queue", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("email consumer stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("email consumer drained, sender stopped")
}
