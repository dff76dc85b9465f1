package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"gozon/storefront/internal/config"
	"gozon/storefront/internal/console"
	"gozon/storefront/internal/knownusers"
	"gozon/storefront/internal/notify"
	"gozon/storefront/internal/orders"
	"gozon/storefront/internal/payments"
	"gozon/storefront/internal/rest"
	"gozon/storefront/internal/subscription"

	"github.com/redis/go-redis/v9"
)

// session is one coordinator plus everything it owns.
type session struct {
	cfg    config.Console
	coord  *console.Coordinator
	orders *orders.Client
	users  *knownusers.Cache
	logger *slog.Logger
	closer func()
}

func openSession(ctx context.Context, cfg config.Console, userID int64, out, errOut io.Writer, verbose bool) (*session, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	backend, closeBackend, err := usersBackend(ctx, cfg.Users)
	if err != nil {
		return nil, err
	}
	users := knownusers.New(backend, logger)

	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	accountsClient := payments.NewClient(rest.New(cfg.APIBase+"/payments", httpClient))
	ordersClient := orders.NewClient(rest.New(cfg.APIBase+"/orders", httpClient))

	var notifier notify.Notifier = notify.NewPrinter(out)
	if verbose {
		notifier = notify.Multi{notifier, notify.NewLogNotifier(logger)}
	}

	coord := console.New(ctx, console.Options{
		Accounts: accountsClient,
		Orders:   ordersClient,
		Users:    users,
		Dialer:   subscription.NewWSDialer(cfg.WSBase, cfg.RequestTimeout),
		Notifier: notifier,
		Logger:   logger,
		UserID:   userID,
	})

	return &session{
		cfg:    cfg,
		coord:  coord,
		orders: ordersClient,
		users:  users,
		logger: logger,
		closer: func() {
			coord.Close()
			closeBackend()
		},
	}, nil
}

func (s *session) Close() {
	if s.closer != nil {
		s.closer()
	}
}

func usersBackend(ctx context.Context, cfg config.Users) (knownusers.Backend, func(), error) {
	switch cfg.Backend {
	case "file":
		return knownusers.NewFileBackend(cfg.Path), func() {}, nil
	case "memory":
		return knownusers.NewMemoryBackend(nil), func() {}, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return knownusers.NewRedisBackend(client, cfg.Key), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown users backend %q", cfg.Backend)
	}
}
