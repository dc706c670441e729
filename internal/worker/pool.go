// Package worker пул горутин для фоновых задач, отвязанных от запроса.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
)

var (
	// ErrQueueFull очередь задач заполнена.
	ErrQueueFull = errors.New("worker queue is full")
	// ErrStopped пул остановлен.
	ErrStopped = errors.New("worker pool is stopped")
)

// Task фоновая задача. Контекст отменяется при остановке пула.
type Task func(ctx context.Context)

// Pool фиксированное число воркеров, читающих из ограниченной очереди.
type Pool struct {
	log     *slog.Logger
	tasks   chan Task
	workers int

	mu      sync.RWMutex
	stopped bool
	started bool

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New создаёт пул. Воркеры запускаются методом Start.
func New(log *slog.Logger, workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Pool{
		log:     log,
		tasks:   make(chan Task, queueSize),
		workers: workers,
	}
}

// Start запускает воркеры. Повторный вызов ничего не делает.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for task := range p.tasks {
		p.exec(ctx, task)
	}
}

func (p *Pool) exec(ctx context.Context, task Task) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("background task panicked", sl.Panic(rec))
		}
	}()
	task(ctx)
}

// Submit ставит задачу в очередь без блокировки.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop закрывает очередь и ждёт, пока воркеры доработают оставшиеся задачи.
// Если ctx истекает раньше, контекст задач отменяется.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.tasks)
	started := p.started
	p.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
