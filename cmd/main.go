package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "monotub_dashboard/docs"
	"monotub_dashboard/internal/config"
	"monotub_dashboard/internal/device"
	"monotub_dashboard/internal/handlers"
	"monotub_dashboard/internal/logger"
	"monotub_dashboard/internal/mqtt"
	"monotub_dashboard/internal/repository"
	"monotub_dashboard/internal/repository/db"
	"monotub_dashboard/internal/server"
	"monotub_dashboard/internal/service"
	"monotub_dashboard/internal/simulator"

	"github.com/gin-gonic/gin"
)

const (
	defaultSimTick  = 1 * time.Second
	shutdownTimeout = 10 * time.Second
)

// @title                       Monotub Dashboard API
// @version                     1.0
// @description                 Grow chamber dashboard: live status, history charts and device controls.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
// @description                 Type "Bearer" followed by a space and the token.
func main() {
	cfg, err := config.Load("configs")
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	log := logger.Get(cfg.LogLevel, cfg.LogFormat)
	defer func() { _ = log.Sync() }()
	if cfg.LogLevel != logger.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	loc, err := time.LoadLocation(cfg.Dashboard.ClockTimezone)
	if err != nil {
		log.Fatalw("invalid dashboard.clock_timezone", "tz", cfg.Dashboard.ClockTimezone, "err", err)
	}

	sqlDB, err := openDB(cfg, log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	baseURL := cfg.Device.BaseURL
	var simSrv *server.Server
	if cfg.Device.Simulate {
		simSrv, baseURL = startSimulator(ctx, cfg, loc, log)
	}

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	client := device.NewClient(baseURL, cfg.Device.Timeout)
	services := service.NewService(repos, client, service.Config{
		Dashboard: service.DashboardConfig{
			DefaultRange: cfg.Dashboard.DefaultRange,
			ClockLayout:  cfg.Dashboard.ClockLayout,
			Location:     loc,
		},
		Intervals: service.Intervals{
			Status:  cfg.Dashboard.StatusInterval,
			History: cfg.Dashboard.HistoryInterval,
			Clock:   cfg.Dashboard.ClockInterval,
		},
		JWTKey:   cfg.JWTKey,
		TokenTTL: cfg.TokenTTL,
	}, log)

	if err := services.Restore(ctx); err != nil {
		log.Warnw("status_restore_failed", "err", err)
	}
	startMirror(ctx, cfg.MQTT, services.Dashboard, log)

	go services.Poller.Run(ctx)
	log.Infow("dashboard_started", "device", client.BaseURL(), "simulate", cfg.Device.Simulate, "port", cfg.Port)

	apiHandler := handlers.NewHandler(services, log)
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler.InitRoutes(), log)

	waitForShutdown(cancel, log, srv, simSrv)
}

// openDB initializes the SQLite database using configuration.
func openDB(cfg *config.Config, log *logger.Logger) (*sql.DB, error) {
	path := cfg.DBPath
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "dashboard.db")
		path = "dashboard.db"
	}
	return db.InitDB(path)
}

// startSimulator runs an in-process device and returns its server and base URL.
func startSimulator(ctx context.Context, cfg *config.Config, loc *time.Location, log *logger.Logger) (*server.Server, string) {
	dev := simulator.NewDevice(simulator.WithLocation(loc))
	go dev.Run(ctx, defaultSimTick)

	srv := &server.Server{}
	runHTTPServer(srv, cfg.Device.SimPort, simulator.NewHandler(dev, log).InitRoutes(), log)
	url := "http://127.0.0.1:" + cfg.Device.SimPort
	log.Infow("simulator_started", "url", url)
	return srv, url
}

// startMirror publishes polls and notifications to MQTT when a broker is configured.
// A broker that cannot be reached disables the mirror rather than the dashboard.
func startMirror(ctx context.Context, cfg config.MQTTConfig, dash service.Dashboard, log *logger.Logger) {
	if cfg.Broker == "" {
		return
	}
	pub, err := mqtt.NewRealPublisher(cfg.Broker, cfg.ClientID, cfg.TopicPrefix)
	if err != nil {
		log.Errorw("mqtt_connect_failed", "broker", cfg.Broker, "err", err)
		return
	}
	mirror := mqtt.NewMirror(pub, log)
	unsubscribe := dash.Subscribe(mirror.Forward)
	go func() {
		mirror.Run(ctx)
		unsubscribe()
	}()
	log.Infow("mqtt_mirror_started", "broker", cfg.Broker, "prefix", cfg.TopicPrefix)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler http.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler); err != nil {
			log.Fatalw("error starting server", "port", port, "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, log *logger.Logger, servers ...*server.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	for _, srv := range servers {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorw("server forced to shutdown", "err", err)
		}
	}
}
