// internal/bot/service.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/mirror-bot/internal/blockchain"
	"github.com/rovshanmuradov/mirror-bot/internal/blockchain/solbc"
	"github.com/rovshanmuradov/mirror-bot/internal/config"
	"github.com/rovshanmuradov/mirror-bot/internal/dex"
	"github.com/rovshanmuradov/mirror-bot/internal/dex/pumpfun"
	"github.com/rovshanmuradov/mirror-bot/internal/dex/pumpswap"
	"github.com/rovshanmuradov/mirror-bot/internal/dex/raydium"
	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/events"
	"github.com/rovshanmuradov/mirror-bot/internal/executor"
	"github.com/rovshanmuradov/mirror-bot/internal/ledger"
	"github.com/rovshanmuradov/mirror-bot/internal/monitor"
	"github.com/rovshanmuradov/mirror-bot/internal/notify"
	"github.com/rovshanmuradov/mirror-bot/internal/storage"
	"github.com/rovshanmuradov/mirror-bot/internal/storage/models"
	"github.com/rovshanmuradov/mirror-bot/internal/storage/postgres"
	"github.com/rovshanmuradov/mirror-bot/internal/strategy"
	"github.com/rovshanmuradov/mirror-bot/internal/stream"
	"github.com/rovshanmuradov/mirror-bot/internal/wallet"
)

// concurrent order executions; further observed trades queue behind these
const executeConcurrency = 4

// Service wires the full mirroring pipeline: stream ingest, wallet filter,
// swap decoding, strategy, execution and reconciliation.
type Service struct {
	cfg    *config.Config
	logger *zap.Logger

	wallet   *wallet.Wallet
	client   blockchain.Client
	bus      *events.Bus
	book     *ledger.Ledger
	registry *dex.Registry
	strat    *strategy.Strategy
	exec     *executor.Executor
	mon      *monitor.Monitor
	stream   *stream.Client
	filter   *stream.WalletFilter
	store    storage.Storage
	webhook  *notify.Webhook

	shutdown *ShutdownHandler
}

// NewService builds the service from configuration. External connections are
// not opened here except the database; the stream connects in Run.
func NewService(cfg *config.Config, logger *zap.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	w, err := wallet.New(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}

	client := solbc.NewClient(cfg.RPCURL,
		time.Duration(cfg.ConfirmTimeout)*time.Second, logger)

	bus := events.NewBus(logger, cfg.QueueSize)

	book, err := ledger.New(logger, bus, cfg.DustThreshold)
	if err != nil {
		return nil, err
	}

	registry, err := dex.NewRegistry(logger,
		pumpfun.New(logger),
		pumpswap.New(logger),
		raydium.New(logger),
	)
	if err != nil {
		return nil, err
	}

	protocol := domain.Protocol(cfg.Protocol)
	if cfg.Protocol == "auto" {
		protocol = ""
	}
	strat, err := strategy.New(logger, book,
		strategy.ProportionalSizer{
			Ratio:       cfg.ExposureRatio,
			MaxLamports: uint64(cfg.MaxTradeSOL * domain.LamportsPerSOL),
		},
		strategy.Options{
			Protocol:    protocol,
			MinLamports: uint64(cfg.MinTradeSOL * domain.LamportsPerSOL),
			MaxTrades:   cfg.MaxTrades,
			SlippageBps: cfg.SlippageBps,
		})
	if err != nil {
		return nil, err
	}

	exec, err := executor.New(logger, client, w, registry, book, bus,
		executor.Options{
			Retries:      cfg.Retries,
			PriorityFee:  cfg.PriorityFee,
			ComputeUnits: cfg.ComputeUnits,
		})
	if err != nil {
		return nil, err
	}

	mon, err := monitor.New(logger, client, w, book,
		time.Duration(cfg.MonitorInterval)*time.Second)
	if err != nil {
		return nil, err
	}

	streamClient, err := stream.NewClient(stream.Config{
		Endpoint:  cfg.WebSocketURL,
		Wallets:   cfg.Wallets,
		QueueSize: cfg.QueueSize,
	}, bus, logger)
	if err != nil {
		return nil, err
	}

	filter, err := stream.NewWalletFilter(cfg.MonitoredWallets())
	if err != nil {
		return nil, err
	}

	svc := &Service{
		cfg:      cfg,
		logger:   logger.Named("bot"),
		wallet:   w,
		client:   client,
		bus:      bus,
		book:     book,
		registry: registry,
		strat:    strat,
		exec:     exec,
		mon:      mon,
		stream:   streamClient,
		filter:   filter,
		shutdown: NewShutdownHandler(logger, 30*time.Second),
	}

	if cfg.WebhookURL != "" {
		svc.webhook, err = notify.NewWebhook(logger, cfg.WebhookURL)
		if err != nil {
			return nil, err
		}
		svc.webhook.Register(bus)
	}

	if cfg.PostgresURL != "" {
		store, err := postgres.NewStorage(cfg.PostgresURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open trade history storage: %w", err)
		}
		if err := store.RunMigrations(); err != nil {
			_ = store.Close()
			return nil, err
		}
		svc.store = store
		svc.subscribeStorage()
	}

	svc.registerShutdown()

	svc.logger.Info("Service initialized",
		zap.String("wallet", w.PublicKey.String()),
		zap.Int("monitored_wallets", len(cfg.Wallets)),
		zap.String("protocol", cfg.Protocol),
		zap.Bool("webhook", svc.webhook != nil),
		zap.Bool("storage", svc.store != nil))
	return svc, nil
}

// subscribeStorage persists every terminal execution result.
func (s *Service) subscribeStorage() {
	persist := func(ctx context.Context, ev events.Event) error {
		var result *domain.ExecutionResult
		switch e := ev.(type) {
		case *events.TradeExecutedEvent:
			result = e.Result
		case *events.TradeFailedEvent:
			result = e.Result
		default:
			return nil
		}
		if err := s.store.SaveTrade(ctx, models.TradeFromResult(result)); err != nil {
			s.logger.Error("Failed to persist trade",
				zap.String("order_id", result.Order.ID),
				zap.Error(err))
			return err
		}
		return nil
	}
	s.bus.SubscribeFunc(events.TradeExecuted, persist)
	s.bus.SubscribeFunc(events.TradeFailed, persist)
}

func (s *Service) registerShutdown() {
	s.shutdown.Add("stream", s.stream)
	s.shutdown.AddFunc("event_bus", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.bus.Shutdown(ctx)
	})
	if s.store != nil {
		s.shutdown.AddFunc("storage", s.store.Close)
	}
}

// Run connects the stream and processes observed trades until the context is
// canceled or the pipeline fails.
func (s *Service) Run(ctx context.Context) error {
	if err := s.stream.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.mon.Run(ctx)
	})
	g.Go(func() error {
		return s.consume(ctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// consume drains the stream queue through filter, decoder and strategy, and
// hands resulting orders to a bounded pool of executions.
func (s *Service) consume(ctx context.Context) error {
	exec, ctx := errgroup.WithContext(ctx)
	exec.SetLimit(executeConcurrency)
	defer func() {
		_ = exec.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.stream.Events().C():
			s.handleEvent(ctx, exec, ev)
		}
	}
}

func (s *Service) handleEvent(ctx context.Context, exec *errgroup.Group, ev *domain.TransactionEvent) {
	matched, ok := s.filter.Match(ev)
	if !ok {
		return
	}

	intent, err := s.registry.DecodeEvent(ev, matched)
	if err != nil {
		if errors.Is(err, dex.ErrUnrecognized) {
			return
		}
		s.logger.Warn("Failed to decode observed transaction",
			zap.String("signature", ev.Signature.String()),
			zap.Error(err))
		return
	}

	_ = s.bus.Publish(&events.TradeDetectedEvent{
		BaseEvent: events.NewBase(events.TradeDetected),
		Intent:    intent,
	})

	order, err := s.strat.Decide(intent)
	if err != nil {
		s.logger.Debug("Trade skipped",
			zap.String("mint", intent.Mint.String()),
			zap.String("side", string(intent.Side)),
			zap.String("reason", err.Error()))
		_ = s.bus.Publish(&events.TradeSkippedEvent{
			BaseEvent: events.NewBase(events.TradeSkipped),
			Intent:    intent,
			Reason:    err.Error(),
		})
		return
	}

	exec.Go(func() error {
		result := s.exec.Execute(ctx, order)
		if result.Confirmed() {
			s.logger.Info("Mirrored trade confirmed",
				zap.String("order_id", order.ID),
				zap.String("mint", order.Mint.String()),
				zap.String("side", string(order.Side)),
				zap.String("signature", result.Signature.String()),
				zap.Int("attempts", result.Attempts),
				zap.Duration("duration", result.Duration))
		} else {
			s.logger.Warn("Mirrored trade did not confirm",
				zap.String("order_id", order.ID),
				zap.String("mint", order.Mint.String()),
				zap.String("state", result.State.String()),
				zap.Error(result.Err))
		}
		// Execution failures are per-order; the pipeline keeps running.
		return nil
	})
}

// Ledger exposes the position book for status reporting.
func (s *Service) Ledger() *ledger.Ledger {
	return s.book
}

// Client exposes the RPC client for status reporting.
func (s *Service) Client() blockchain.Client {
	return s.client
}

// Wallet exposes the trading wallet.
func (s *Service) Wallet() *wallet.Wallet {
	return s.wallet
}

// Close shuts all components down in reverse start order.
func (s *Service) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.shutdown.Shutdown(ctx)
	return nil
}
