package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"gozon/storefront/internal/config"
	"gozon/storefront/internal/httpapi"
	"gozon/storefront/internal/messaging"
	"gozon/storefront/internal/websocket"
	"gozon/storefront/pkg/contracts"

	"github.com/rabbitmq/amqp091-go"
	"golang.org/x/sync/errgroup"
)

type broadcaster interface {
	Broadcast(contracts.OrderStatusChanged)
}

type App struct {
	cfg      config.Gateway
	logger   *slog.Logger
	wsHub    *websocket.Hub
	updates  broadcaster
	consumer *messaging.Consumer
	httpSrv  *http.Server
}

func New(ctx context.Context, cfg config.Gateway, logger *slog.Logger) (*App, error) {
	ordersURL, err := url.Parse(cfg.OrdersURL)
	if err != nil {
		return nil, fmt.Errorf("orders url: %w", err)
	}
	paymentsURL, err := url.Parse(cfg.PaymentsURL)
	if err != nil {
		return nil, fmt.Errorf("payments url: %w", err)
	}

	consumer, err := messaging.NewRabbitConsumer(ctx, cfg.RabbitURL, messaging.Binding{
		Exchange:   cfg.Exchange,
		Queue:      cfg.Queue,
		RoutingKey: cfg.RoutingKey,
		Prefetch:   cfg.Prefetch,
	}, logger)
	if err != nil {
		return nil, err
	}

	wsHub := websocket.NewHub()

	api := httpapi.NewServer(ordersURL, paymentsURL, cfg.AllowedOrigins, logger)
	wsHandler := websocket.NewHandler(wsHub, api.AllowOrigin, logger)
	api.HandleFunc("GET /ws/orders/{orderID}", wsHandler.ServeWS)
	httpSrv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api,
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		wsHub:    wsHub,
		updates:  wsHub,
		consumer: consumer,
		httpSrv:  httpSrv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.wsHub.Run(ctx)
		return nil
	})

	g.Go(func() error {
		return a.consumer.Start(ctx, a.handleStatusMessage)
	})

	g.Go(func() error {
		a.logger.Info("gateway http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGracePeriod)
		defer cancel()
		return a.httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Close() {
	_ = a.consumer.Close()
}

// handleStatusMessage forwards a well-formed status event to the order's
// subscribers. Anything else is dropped without requeue.
func (a *App) handleStatusMessage(_ context.Context, msg amqp091.Delivery) {
	var evt contracts.OrderStatusChanged
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		a.logger.Error("invalid status event", "err", err)
		_ = msg.Nack(false, false)
		return
	}
	if evt.OrderID <= 0 || evt.Status == "" {
		a.logger.Error("incomplete status event", "order_id", evt.OrderID, "status", evt.Status)
		_ = msg.Nack(false, false)
		return
	}

	a.updates.Broadcast(evt)
	a.logger.Debug("status event forwarded", "order_id", evt.OrderID, "status", evt.Status)
	_ = msg.Ack(false)
}

func Run() error {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := config.LoadGateway()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close()

	return app.Run(ctx)
}
