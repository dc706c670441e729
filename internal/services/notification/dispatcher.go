package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/gregai-backend/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
	"github.com/magabrotheeeer/gregai-backend/internal/metrics"
	"github.com/magabrotheeeer/gregai-backend/internal/models"
	"github.com/magabrotheeeer/gregai-backend/internal/worker"
)

// sendTimeout ограничение на доставку одного письма воркером.
const sendTimeout = 30 * time.Second

// Dispatcher ставит письма в очередь. Enqueue не ждёт доставки и не
// возвращает ошибок: сбои пишутся в лог и в метрики.
type Dispatcher interface {
	Enqueue(ctx context.Context, email models.Email)
}

// EmailSender доставка одного письма.
type EmailSender interface {
	Send(ctx context.Context, email models.Email) error
}

// Submitter очередь фоновых задач.
type Submitter interface {
	Submit(task worker.Task) error
}

// MemoryDispatcher отправляет письма из пула воркеров процесса.
type MemoryDispatcher struct {
	pool   Submitter
	sender EmailSender
	log    *slog.Logger
}

// NewMemoryDispatcher создаёт диспетчер поверх пула воркеров.
func NewMemoryDispatcher(pool Submitter, sender EmailSender, log *slog.Logger) *MemoryDispatcher {
	return &MemoryDispatcher{pool: pool, sender: sender, log: log}
}

// Enqueue ставит письмо в очередь. Переполненная очередь отбрасывает письмо.
func (d *MemoryDispatcher) Enqueue(_ context.Context, email models.Email) {
	const op = "notification.MemoryDispatcher.Enqueue"
	log := d.log.With(slog.String("op", op), slog.String("kind", email.Kind))

	err := d.pool.Submit(func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()

		err := d.sender.Send(ctx, email)
		metrics.EmailsTotal.WithLabelValues(email.Kind, metrics.Outcome(err)).Inc()
		if err != nil {
			log.Error("failed to send email", slog.String("to", email.To), sl.Err(err))
		}
	})
	if err != nil {
		metrics.EmailsTotal.WithLabelValues(email.Kind, metrics.OutcomeDropped).Inc()
		log.Error("email dropped", slog.String("to", email.To), sl.Err(err))
	}
}

// Publisher публикация сообщения в брокер.
type Publisher interface {
	Publish(routingKey string, message any) error
}

// BrokerDispatcher публикует письма в RabbitMQ, доставку выполняет процесс sender.
type BrokerDispatcher struct {
	publisher Publisher
	log       *slog.Logger
}

// NewBrokerDispatcher создаёт диспетчер поверх издателя RabbitMQ.
func NewBrokerDispatcher(publisher Publisher, log *slog.Logger) *BrokerDispatcher {
	return &BrokerDispatcher{publisher: publisher, log: log}
}

// Enqueue публикует письмо с ключом маршрутизации email.
func (d *BrokerDispatcher) Enqueue(_ context.Context, email models.Email) {
	const op = "notification.BrokerDispatcher.Enqueue"

	if err := d.publisher.Publish(rabbitmq.EmailQueue.RoutingKey, email); err != nil {
		metrics.EmailsTotal.WithLabelValues(email.Kind, metrics.OutcomeDropped).Inc()
		d.log.Error("failed to publish email",
			slog.String("op", op),
			slog.String("kind", email.Kind),
			slog.String("to", email.To),
			sl.Err(err),
		)
	}
}
