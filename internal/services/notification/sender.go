// Package notification отправляет транзакционные письма: очередь в памяти
// или через RabbitMQ и доставку по SMTP.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/smtp"
	"github.com/magabrotheeeer/gregai-backend/internal/metrics"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
)

// Sender доставляет письма через SMTP.
type Sender struct {
	transport smtp.TransportInterface
	log       *slog.Logger
}

// NewSender создает новый экземпляр Sender.
func NewSender(transport smtp.TransportInterface, log *slog.Logger) *Sender {
	return &Sender{
		transport: transport,
		log:       log,
	}
}

// HandleMessage обработчик сообщения из очереди писем.
func (s *Sender) HandleMessage(ctx context.Context, body []byte) error {
	const op = "notification.Sender.HandleMessage"

	var email models.Email
	if err := json.Unmarshal(body, &email); err != nil {
		s.log.Error("Failed to unmarshal message body", sl.Err(err))
		return fmt.Errorf("%s: error unmarshalling message: %w", op, err)
	}
	err := s.Send(ctx, email)
	metrics.EmailsTotal.WithLabelValues(email.Kind, metrics.Outcome(err)).Inc()
	return err
}

// Send отправляет одно письмо.
func (s *Sender) Send(ctx context.Context, email models.Email) error {
	const op = "notification.Sender.Send"

	log := s.log.With(slog.String("op", op), slog.String("kind", email.Kind))

	msg, err := smtp.Message{
		From:    s.transport.FromHeader(),
		To:      []string{email.To},
		Subject: email.Subject,
		Text:    email.Text,
		HTML:    email.HTML,
	}.Bytes()
	if err != nil {
		log.Error("Failed to build message", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	client, err := s.transport.Connect(ctx)
	if err != nil {
		log.Error("Failed to connect to SMTP server", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	defer client.Close()

	from := s.transport.From()
	if err := client.Mail(from); err != nil {
		log.Error("Failed to set MAIL FROM", slog.String("from", from), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := client.Rcpt(email.To); err != nil {
		log.Error("Failed to set RCPT TO", slog.String("recipient", email.To), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	wc, err := client.Data()
	if err != nil {
		log.Error("Failed to get Data writer", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err = wc.Write(msg); err != nil {
		log.Error("Failed to write email body", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = wc.Close(); err != nil {
		log.Error("Failed to close Data writer", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = client.Quit(); err != nil {
		log.Error("Failed to quit SMTP client", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("email sent successfully", slog.String("to", email.To))
	return nil
}
