package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/wtfrecharge/internal/controllers/restserver"
	"github.com/chrissnell/wtfrecharge/internal/log"
	"github.com/chrissnell/wtfrecharge/internal/recharge"
	"github.com/chrissnell/wtfrecharge/pkg/config"
	"go.uber.org/zap"
)

// App wires configuration into recharge runs and the REST front-end.
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Estimate runs the recharge pipeline for ts under data. When data sets a relative
// specific-yield uncertainty the report also carries deterministic bounds.
func (a *App) Estimate(ctx context.Context, data *config.ConfigData, ts *recharge.TimeSeries) (*recharge.Report, error) {
	cfg, err := data.RechargeConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	sy, err := data.SpecificYield.Yield()
	if err != nil {
		return nil, fmt.Errorf("invalid specific yield: %w", err)
	}

	model, err := recharge.NewModel(data.Name, ts, cfg, a.logger)
	if err != nil {
		return nil, err
	}
	report, err := model.Run(ctx, sy)
	if err != nil {
		return nil, err
	}

	if rel := data.Estimate.RelativeUncertainty; rel > 0 {
		report.Bounds, err = model.EstimateBounds(sy.Central(), rel)
		if err != nil {
			return nil, fmt.Errorf("estimate bounds: %w", err)
		}
	}
	return report, nil
}

// Run starts the REST server and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rs, err := restserver.NewController(ctx, &wg, a.configProvider, a, a.logger)
	if err != nil {
		return err
	}
	if err := rs.StartController(); err != nil {
		return err
	}

	log.Infof("REST server listening on %s", rs.Server.Addr)

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Infof("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Infof("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for the server to drain
	wg.Wait()
	log.Infof("shutdown complete")
	return nil
}
