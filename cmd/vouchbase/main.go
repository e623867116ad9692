package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/vouchbase/internal/adapters/http/api"
	"github.com/okian/vouchbase/internal/adapters/http/swagger"
	"github.com/okian/vouchbase/internal/adapters/ledger"
	"github.com/okian/vouchbase/internal/adapters/ledger/memledger"
	service "github.com/okian/vouchbase/internal/app"
	"github.com/okian/vouchbase/internal/config"
	"github.com/okian/vouchbase/internal/domain/model"
	"github.com/okian/vouchbase/pkg/logger"
	"github.com/okian/vouchbase/pkg/metrics"
)

// HTTP server timeout constants. Writes wait for confirmation, so the write
// timeout has to cover the confirm timeout.
const (
	readTimeout           = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	writeTimeoutSlack     = 10 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> .env -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	gw, wallet, err := buildGateway(ctx, cfg, log)
	if err != nil {
		return err
	}

	svc := service.New(gw, serviceOptions(cfg, log, wallet)...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, svc, cfg),
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.ConfirmTimeout() + writeTimeoutSlack,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("ledger_mode", cfg.LedgerMode),
			logger.Uint64("chain_id", cfg.ChainID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// buildGateway selects the ledger for cfg.LedgerMode. The returned wallet is
// the configured signer, or the zero address when there is none.
func buildGateway(ctx context.Context, cfg *config.Config, log logger.Logger) (ledger.Gateway, model.Address, error) {
	if cfg.LedgerMode == config.LedgerModeSimulated {
		lo, hi := cfg.SimLatency()
		return memledger.New(memledger.WithChainID(cfg.ChainID), memledger.WithLatencyRange(lo, hi)), model.Address{}, nil
	}

	client, err := ledger.Dial(ctx, cfg.RPCURL)
	if err != nil {
		return nil, model.Address{}, err
	}
	opts := []ledger.Option{ledger.WithLogger(log.Named("ledger"))}
	if cfg.PrivateKey != "" {
		key, err := ledger.ParsePrivateKey(cfg.PrivateKey)
		if err != nil {
			return nil, model.Address{}, err
		}
		opts = append(opts, ledger.WithSigner(key, cfg.ChainID))
	}
	gw, err := ledger.NewEthGateway(client, common.HexToAddress(cfg.ContractAddress), opts...)
	if err != nil {
		return nil, model.Address{}, err
	}
	wallet, _ := gw.Signer()
	return gw, wallet, nil
}

// serviceOptions maps configuration onto service options. Chain polling
// only makes sense against a node: in simulated mode the chain is whatever
// POST /session reports.
func serviceOptions(cfg *config.Config, log logger.Logger, wallet model.Address) []service.Option {
	opts := []service.Option{
		service.WithLogger(log),
		service.WithRequiredChainID(cfg.ChainID),
		service.WithPageSize(cfg.PageSize),
		service.WithLeaderboardLimit(cfg.MaxLeaderboardLimit),
		service.WithSyncInterval(cfg.SyncInterval()),
		service.WithConfirmTimeout(cfg.ConfirmTimeout()),
		service.WithQueueSize(cfg.RefreshQueueSize),
		service.WithWorkerCount(cfg.RefreshWorkers),
		service.WithDedupeSize(cfg.DedupeSize),
	}
	if cfg.LedgerMode == config.LedgerModeRPC {
		opts = append(opts, service.WithChainPollInterval(cfg.ChainPollInterval()))
	}
	if wallet != (model.Address{}) {
		opts = append(opts, service.WithWallet(wallet))
	}
	return opts
}

// newMux registers the API and documentation routes.
func newMux(ctx context.Context, svc *service.Service, cfg *config.Config) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc, cfg.MaxLeaderboardLimit).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
