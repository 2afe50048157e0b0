package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netdoc/config"
	"netdoc/internal/api"
	"netdoc/internal/db"
	"netdoc/internal/health"
	"netdoc/internal/inventory"
	"netdoc/internal/logs"
	"netdoc/internal/metrics"
	"netdoc/internal/middleware"
	"netdoc/internal/store"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type App struct {
	cfg        *config.Config
	Router     *mux.Router
	httpServer *http.Server

	db    *gorm.DB
	store store.Repository
	Inv   *inventory.Service

	ctx    context.Context
	cancel context.CancelFunc
}

func (a *App) Initialize(cfg *config.Config) error {
	a.cfg = cfg

	// 1) logging
	logs.Init(logs.Options{
		Level:  a.cfg.Logging.Level,
		Format: a.cfg.Logging.Format,
		File:   a.cfg.Logging.File,
	})

	// 2) database (optional)
	if drv := a.cfg.Database.Driver; drv != "" {
		d, err := db.Open(drv, a.cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("db open failed: %w", err)
		}
		a.db = d
		if err := db.Migrate(a.db); err != nil {
			return fmt.Errorf("db migrate failed: %w", err)
		}
		a.store = store.NewGormStore(a.db)
	} else {
		logs.Logger.Warn("no database configured, inventory is kept in memory only")
		a.store = store.NewMemStore()
	}

	// 3) inventory
	a.Inv = inventory.NewService(a.store, logs.Logger, inventory.Options{StrictConnect: a.cfg.Inventory.StrictConnect})
	if err := a.Inv.Refresh(context.Background()); err != nil {
		return fmt.Errorf("inventory load failed: %w", err)
	}

	// 4) router + middleware
	a.Router = mux.NewRouter()
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.LoggerMW)

	if a.db != nil {
		health.RegisterRoutesWithDB(a.Router, a.db) // /healthz and /readyz
	} else {
		health.RegisterRoutes(a.Router)
	}
	a.Router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	api.NewHTTP(a.Inv).RegisterRoutes(a.Router)

	_ = a.Router.Walk(func(rt *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		path, _ := rt.GetPathTemplate()
		methods, _ := rt.GetMethods()
		logs.Logger.Debugf("route: %-6v %s", methods, path)
		return nil
	})
	return nil
}

func (a *App) Run() error {
	if a.Router == nil || a.cfg == nil {
		return ErrNotInitialized
	}
	bind := net.JoinHostPort(a.cfg.Server.Address, a.cfg.Server.HTTPPort)

	a.ctx, a.cancel = context.WithCancel(context.Background())
	defer a.cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigs; a.cancel() }()

	go func() {
		if err := a.Inv.Run(a.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logs.Logger.Errorf("inventory loop stopped: %v", err)
			a.cancel()
		}
	}()

	a.httpServer = &http.Server{
		Addr:         bind,
		Handler:      a.Router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logs.Logger.Infof("HTTP listening on %s", bind)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var runErr error
	select {
	case <-a.ctx.Done():
	case runErr = <-errc:
		logs.Logger.Errorf("http server error: %v", runErr)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.httpServer.Shutdown(ctx)
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return runErr
}

var ErrNotInitialized = &initError{"server not initialized (call Initialize(cfg) first)"}

type initError struct{ s string }

func (e *initError) Error() string { return e.s }
