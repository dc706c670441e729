// Package sender процесс, который читает очередь писем из RabbitMQ и отправляет их по SMTP.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/gregai-backend/internal/config"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/smtp"
	"github.com/magabrotheeeer/gregai-backend/internal/services/notification"
)

// ErrNotConfigured конфигурация не подходит для отдельного процесса отправки.
var ErrNotConfigured = errors.New("sender is not configured")

// CheckConfig проверяет, что письма идут через RabbitMQ и есть куда их отправлять.
// При брокере memory письма отправляет сам API, и отдельный процесс не нужен.
func CheckConfig(cfg *config.Config) error {
	const op = "app.sender.CheckConfig"

	n := cfg.Notifications
	switch {
	case n.Broker != "rabbitmq":
		return fmt.Errorf("%s: %w: notifications broker is %q, want \"rabbitmq\"", op, ErrNotConfigured, n.Broker)
	case n.RabbitMQURL == "":
		return fmt.Errorf("%s: %w: rabbitmq url is empty", op, ErrNotConfigured)
	case cfg.SMTP.SMTPHost == "":
		return fmt.Errorf("%s: %w: smtp host is empty", op, ErrNotConfigured)
	case cfg.SMTP.FromEmail == "":
		return fmt.Errorf("%s: %w: sender address is empty", op, ErrNotConfigured)
	}
	return nil
}

type App struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	sender *notification.Sender
	logger *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.sender.New"

	if err := CheckConfig(cfg); err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(ctx, cfg.Notifications.RabbitMQURL,
		cfg.Notifications.RabbitMQMaxRetries, cfg.Notifications.RabbitMQRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)

	return &App{
		conn:   conn,
		ch:     ch,
		sender: notification.NewSender(transport, logger),
		logger: logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	queue := rabbitmq.EmailQueue.QueueName
	if err := rabbitmq.ConsumerMessage(ctx, a.logger, a.ch, queue, a.sender.HandleMessage); err != nil {
		a.logger.Error("failed to start consumer", slog.String("queue", queue), sl.Err(err))
		a.close()
		return err
	}
	a.logger.Info("consuming emails", slog.String("queue", queue))

	<-ctx.Done()
	a.logger.Info("Sender service shutting down gracefully")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
}
