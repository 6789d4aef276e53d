// Package restserver serves recharge estimates over HTTP.
package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/wtfrecharge/internal/log"
	"github.com/chrissnell/wtfrecharge/internal/recharge"
	"github.com/chrissnell/wtfrecharge/pkg/config"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Estimator runs the recharge pipeline for one request.
type Estimator interface {
	Estimate(ctx context.Context, data *config.ConfigData, ts *recharge.TimeSeries) (*recharge.Report, error)
}

// Controller represents the REST server controller
type Controller struct {
	ctx          context.Context
	wg           *sync.WaitGroup
	serverConfig config.ServerData
	defaults     *config.ConfigData
	estimator    Estimator
	Server       http.Server
	logger       *zap.SugaredLogger
	handlers     *Handlers
	metrics      *metrics
}

// NewController creates a new REST server controller. The provider's configuration is
// used for requests that carry no configuration of their own.
func NewController(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, estimator Estimator, logger *zap.SugaredLogger) (*Controller, error) {
	cfgData, err := configProvider.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %v", err)
	}

	// Reject a broken default configuration at startup rather than on every request.
	if _, err := cfgData.RechargeConfig(); err != nil {
		return nil, fmt.Errorf("invalid default configuration: %w", err)
	}

	ctrl := &Controller{
		ctx:          ctx,
		wg:           wg,
		serverConfig: cfgData.Server,
		defaults:     cfgData,
		estimator:    estimator,
		logger:       logger,
	}

	sc := &ctrl.serverConfig
	// If a ListenAddr was not provided, listen on all interfaces
	if sc.ListenAddr == "" {
		logger.Info("server.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		sc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if sc.Port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
		sc.Port = 8080
	}
	if sc.MaxBodyMB == 0 {
		sc.MaxBodyMB = 32
	}

	ctrl.handlers = NewHandlers(ctrl)
	ctrl.metrics = newMetrics()

	// Access and panic logs go through zap at info and error level.
	accessLog := zap.NewStdLog(logger.Desugar())
	panicLog, err := zap.NewStdLogAt(logger.Desugar(), zap.ErrorLevel)
	if err != nil {
		return nil, fmt.Errorf("error creating panic logger: %v", err)
	}

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", sc.ListenAddr, sc.Port)
	ctrl.Server.Handler = handlers.RecoveryHandler(handlers.RecoveryLogger(panicLog))(
		handlers.CombinedLoggingHandler(accessLog.Writer(), ctrl.setupRouter()),
	)
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Infof("Starting REST server controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
			log.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Infof("Shutting down the REST server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(c.metrics.middleware, c.bodyLimitMiddleware)

	router.HandleFunc("/healthz", c.handlers.GetHealth).Methods(http.MethodGet)
	router.HandleFunc("/config/defaults", c.handlers.GetDefaults).Methods(http.MethodGet)
	router.HandleFunc("/estimate", c.handlers.PostEstimate).Methods(http.MethodPost)
	router.HandleFunc("/segments", c.handlers.PostSegments).Methods(http.MethodPost)
	router.Handle("/metrics", c.metrics.handler()).Methods(http.MethodGet)

	return router
}

// bodyLimitMiddleware caps request bodies at the configured size
func (c *Controller) bodyLimitMiddleware(next http.Handler) http.Handler {
	limit := int64(c.serverConfig.MaxBodyMB) << 20
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}
