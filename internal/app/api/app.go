// Package api собирает HTTP-приложение: хранилища, внешние клиенты,
// сервисы, маршруты и необязательный gRPC-сервер состояния.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/gregai-backend/internal/cache"
	"github.com/magabrotheeeer/gregai-backend/internal/completion"
	"github.com/magabrotheeeer/gregai-backend/internal/config"
	grpcserver "github.com/magabrotheeeer/gregai-backend/internal/grpc/server"
	"github.com/magabrotheeeer/gregai-backend/internal/http/authcookie"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/jwt"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/sl"
	"github.com/magabrotheeeer/gregai-backend/internal/lib/smtp"
	"github.com/magabrotheeeer/gregai-backend/internal/migrations"
	"github.com/magabrotheeeer/gregai-backend/internal/oauth"
	authservice "github.com/magabrotheeeer/gregai-backend/internal/services/auth"
	conversationservice "github.com/magabrotheeeer/gregai-backend/internal/services/conversation"
	documentservice "github.com/magabrotheeeer/gregai-backend/internal/services/document"
	"github.com/magabrotheeeer/gregai-backend/internal/services/notification"
	userservice "github.com/magabrotheeeer/gregai-backend/internal/services/user"
	waitlistservice "github.com/magabrotheeeer/gregai-backend/internal/services/waitlist"
	"github.com/magabrotheeeer/gregai-backend/internal/storage/objstore"
	"github.com/magabrotheeeer/gregai-backend/internal/storage/repository"
	"github.com/magabrotheeeer/gregai-backend/internal/worker"
)

const (
	shutdownTimeout     = 15 * time.Second
	healthCheckInterval = 15 * time.Second
	oauthClientTimeout  = 10 * time.Second
)

// Services сервисы, которые обслуживают маршруты.
type Services struct {
	Auth         *authservice.Service
	Users        *userservice.Service
	WaitList     *waitlistservice.Service
	Conversation *conversationservice.Service
	Documents    *documentservice.Service
	OAuth        *oauth.Bridge
}

// App основное приложение.
type App struct {
	server   *http.Server
	health   *grpcserver.HealthServer
	grpcAddr string
	logger   *slog.Logger

	db        *repository.Storage
	cache     *cache.Cache
	mailPool  *worker.Pool
	docPool   *worker.Pool
	publisher *rabbitmq.Publisher
	amqpConn  *amqp.Connection
}

// New инициализирует зависимости. При ошибке уже открытые ресурсы закрываются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	const op = "app.api.New"
	a := &App{logger: logger, grpcAddr: cfg.GRPCAddress}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.db, err = repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(a.db.DB, cfg.MigrationsPath); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if cfg.Redis.AddressRedis != "" {
		a.cache, err = cache.InitServer(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	store, err := objstore.NewClient(cfg.MinIO, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.mailPool = worker.New(logger.With(slog.String("pool", "mail")), cfg.Notifications.Workers, cfg.Notifications.QueueSize)
	a.docPool = worker.New(logger.With(slog.String("pool", "documents")), cfg.Documents.Workers, cfg.Documents.QueueSize)

	dispatcher, err := a.newDispatcher(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	states, err := a.newStateStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tokens := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	llm := completion.New(cfg.Completion)

	services := Services{
		Auth: authservice.New(a.db, authservice.StorageTx(a.db), tokens, dispatcher, logger, authservice.Options{
			FrontendURL:     cfg.OAuth.FrontendURL,
			VerificationTTL: cfg.VerificationTokenTTL,
			ResetCodeTTL:    cfg.ResetCodeTTL,
		}),
		Users:        userservice.New(a.db),
		WaitList:     waitlistservice.New(a.db, dispatcher, logger),
		Conversation: conversationservice.New(a.db, llm, cfg.Conversation.HistoryLimit, logger),
		Documents:    documentservice.New(a.db, store, llm, a.docPool, cfg.MinIO.MaxUpload, logger),
		OAuth: oauth.NewBridge(oauth.NewProviders(cfg.OAuth), states, &http.Client{
			Timeout: oauthClientTimeout,
		}),
	}

	checks := map[string]Pinger{"database": a.db, "objects": store}
	if a.cache != nil {
		checks["redis"] = a.cache
	}

	router := chi.NewRouter()
	RegisterRoutes(router, RouteDeps{
		Logger:   logger,
		Config:   cfg,
		Services: services,
		Cookie:   authcookie.New(cfg.Cookie, cfg.TokenTTL),
		Checks:   checks,
	})

	a.server = &http.Server{
		Addr:              cfg.AddressHTTP,
		Handler:           router,
		ReadHeaderTimeout: cfg.TimeoutHTTP,
		ReadTimeout:       cfg.TimeoutHTTP,
		IdleTimeout:       cfg.IdleTimeout,
	}

	if cfg.GRPCAddress != "" {
		grpcChecks := make(map[string]grpcserver.Pinger, len(checks))
		for name, p := range checks {
			grpcChecks[name] = p
		}
		a.health = grpcserver.NewHealthServer(grpcChecks, healthCheckInterval, logger)
	}

	return a, nil
}

// newDispatcher очередь писем в памяти процесса или через RabbitMQ.
func (a *App) newDispatcher(ctx context.Context, cfg *config.Config) (notification.Dispatcher, error) {
	switch cfg.Notifications.Broker {
	case "", "memory":
		sender := notification.NewSender(smtp.NewTransport(cfg.SMTP, a.logger), a.logger)
		return notification.NewMemoryDispatcher(a.mailPool, sender, a.logger), nil
	case "rabbitmq":
		conn, err := rabbitmq.Connect(ctx, cfg.Notifications.RabbitMQURL,
			cfg.Notifications.RabbitMQMaxRetries, cfg.Notifications.RabbitMQRetryDelay)
		if err != nil {
			return nil, err
		}
		a.amqpConn = conn
		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
		if err != nil {
			return nil, err
		}
		a.publisher = rabbitmq.NewPublisher(ch)
		return notification.NewBrokerDispatcher(a.publisher, a.logger), nil
	default:
		return nil, fmt.Errorf("unknown notifications broker %q", cfg.Notifications.Broker)
	}
}

// newStateStore хранилище OAuth state: подписанная cookie или Redis.
func (a *App) newStateStore(cfg *config.Config) (oauth.StateStore, error) {
	switch cfg.OAuth.StateStore {
	case "", "cookie":
		secret := cfg.OAuth.SessionSecret
		if secret == "" {
			secret = cfg.JWTSecretKey
		}
		return oauth.NewCookieStateStore(secret, cfg.OAuth.StateTTL, cfg.Cookie.Secure)
	case "redis":
		if a.cache == nil {
			return nil, errors.New("redis state store requires redis_connection.addressredis")
		}
		return oauth.NewRedisStateStore(a.cache, cfg.OAuth.StateTTL, cfg.Cookie.Secure), nil
	default:
		return nil, fmt.Errorf("unknown oauth state store %q", cfg.OAuth.StateStore)
	}
}

// Run запускает серверы и блокируется до отмены ctx или ошибки сервера.
func (a *App) Run(ctx context.Context) error {
	a.mailPool.Start(ctx)
	a.docPool.Start(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	if a.health != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			a.shutdown()
			return fmt.Errorf("grpc listen: %w", err)
		}
		go func() {
			if err := a.health.Serve(ctx, lis); err != nil {
				errCh <- fmt.Errorf("grpc serve: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case runErr = <-errCh:
	case <-ctx.Done():
	}
	cancel()
	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

func (a *App) shutdown() error {
	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down HTTP server gracefully")
	err := a.server.Shutdown(timeoutCtx)

	if perr := a.docPool.Stop(timeoutCtx); perr != nil {
		a.logger.Warn("document workers did not finish", sl.Err(perr))
	}
	if perr := a.mailPool.Stop(timeoutCtx); perr != nil {
		a.logger.Warn("mail workers did not finish", sl.Err(perr))
	}
	a.close()
	return err
}

// close освобождает соединения с внешними системами.
func (a *App) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error("failed to close amqp channel", sl.Err(err))
		}
	}
	if a.amqpConn != nil {
		if err := a.amqpConn.Close(); err != nil {
			a.logger.Error("failed to close amqp connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close database", sl.Err(err))
		}
	}
}
