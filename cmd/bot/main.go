// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/mirror-bot/internal/blockchain/solbc"
	"github.com/rovshanmuradov/mirror-bot/internal/bot"
	"github.com/rovshanmuradov/mirror-bot/internal/config"
	"github.com/rovshanmuradov/mirror-bot/internal/domain"
	"github.com/rovshanmuradov/mirror-bot/internal/export"
	"github.com/rovshanmuradov/mirror-bot/internal/logger"
	"github.com/rovshanmuradov/mirror-bot/internal/storage/postgres"
	"github.com/rovshanmuradov/mirror-bot/internal/status"
	"github.com/rovshanmuradov/mirror-bot/internal/token"
	"github.com/rovshanmuradov/mirror-bot/internal/wallet"
)

const usage = `Usage: mirror-bot [flags] <command>

Commands:
  run             start the mirroring pipeline (default)
  status          show wallet balances and token accounts
  wrap <sol>      wrap SOL into the WSOL token account
  unwrap          close the WSOL account, returning its balance as SOL
  close-accounts  close all empty token accounts and reclaim rent
  export [fmt]    export trade history to ./exports as csv (default) or json

Flags:
  -config <path>  configuration file (default configs/config.json)
`

func main() {
	configPath := flag.String("config", "configs/config.json", "configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "run"
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := logger.DefaultConfig()
	if cfg.LogFile != "" {
		logCfg.LogFile = cfg.LogFile
	}
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	switch command {
	case "run":
		err = runBot(cfg, log.Logger)
	case "status":
		err = showStatus(cfg, log.Logger)
	case "wrap":
		err = wrapSOL(cfg, log.Logger, flag.Arg(1))
	case "unwrap":
		err = unwrapSOL(cfg, log.Logger)
	case "close-accounts":
		err = closeAccounts(cfg, log.Logger)
	case "export":
		err = exportTrades(cfg, log.Logger, flag.Arg(1))
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error("Command failed", zap.String("command", command), zap.Error(err))
		os.Exit(1)
	}
}

func runBot(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := bot.NewService(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	log.Info("Starting mirror bot")
	return svc.Run(ctx)
}

// tokenManager builds the wallet, RPC client and maintenance manager used by
// the one-shot commands.
func tokenManager(cfg *config.Config, log *zap.Logger) (*token.Manager, error) {
	w, err := wallet.New(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	client := solbc.NewClient(cfg.RPCURL,
		time.Duration(cfg.ConfirmTimeout)*time.Second, log)
	return token.NewManager(log, client, w)
}

func showStatus(cfg *config.Config, log *zap.Logger) error {
	w, err := wallet.New(cfg.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to load wallet: %w", err)
	}
	client := solbc.NewClient(cfg.RPCURL,
		time.Duration(cfg.ConfirmTimeout)*time.Second, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	report, err := status.Collect(ctx, client, w)
	if err != nil {
		return err
	}
	fmt.Println(status.Render(report))
	return nil
}

func wrapSOL(cfg *config.Config, log *zap.Logger, arg string) error {
	if arg == "" {
		return fmt.Errorf("wrap requires a SOL amount")
	}
	amount, err := strconv.ParseFloat(arg, 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("invalid SOL amount %q", arg)
	}

	mgr, err := tokenManager(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	sig, err := mgr.Wrap(ctx, uint64(amount*domain.LamportsPerSOL))
	if err != nil {
		return err
	}
	fmt.Printf("wrapped %s SOL: %s\n", arg, sig)
	return nil
}

func unwrapSOL(cfg *config.Config, log *zap.Logger) error {
	mgr, err := tokenManager(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	sig, err := mgr.Unwrap(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("unwrapped WSOL: %s\n", sig)
	return nil
}

func exportTrades(cfg *config.Config, log *zap.Logger, format string) error {
	if cfg.PostgresURL == "" {
		return fmt.Errorf("export requires postgres_url in configuration")
	}
	if format == "" {
		format = string(export.FormatCSV)
	}

	store, err := postgres.NewStorage(cfg.PostgresURL, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	trades, err := store.ListTrades(ctx, "", 10_000, 0)
	if err != nil {
		return err
	}

	path, err := export.NewTradeExporter(log).Export(trades, export.Options{
		Format:    export.Format(format),
		OutputDir: "exports",
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported %d trades to %s\n", len(trades), path)
	return nil
}

func closeAccounts(cfg *config.Config, log *zap.Logger) error {
	mgr, err := tokenManager(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	closed, err := mgr.CloseEmptyAccounts(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("closed %d empty token accounts\n", closed)
	return nil
}
