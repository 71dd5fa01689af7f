package service

import (
	"context"
	"time"

	"monotub_dashboard/internal/logger"
	"monotub_dashboard/internal/models"
	"monotub_dashboard/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Dashboard exposes the view model and the operator actions.
type Dashboard interface {
	View() View
	Restore(ctx context.Context) error
	UpdateStatus(ctx context.Context) error
	UpdateCharts(ctx context.Context) error
	ChangeTimeRange(ctx context.Context, chartID, rng string) error
	UpdateFan(ctx context.Context, action string) error
	ConfigureFan(ctx context.Context, fs FanSettings) error
	SetSetpoint(ctx context.Context, setpoint float64) error
	SetStorageInterval(ctx context.Context, minutes int) error
	ConfirmDelete(ctx context.Context, confirm ConfirmFunc) error
	Subscribe(fn func(Update)) func()
}

// EventLog exposes the journal with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.DashboardEvent, error)
}

// Poller runs the background refresh loop. Stop via context cancellation.
type Poller interface {
	Run(ctx context.Context)
}

type Service struct {
	Dashboard
	EventLog
	Poller
	Authorization
}

// Config carries the settings the services need from the application config.
type Config struct {
	Dashboard DashboardConfig
	Intervals Intervals
	JWTKey    string
	TokenTTL  time.Duration
}

// NewService wires the repositories and the device client into the services.
// Dashboard refreshes go through the scheduler that Poller runs.
func NewService(repos *repository.Repository, dev DeviceAPI, cfg Config, log *logger.Logger) *Service {
	events := NewEventLogService(repos.EventRepo)
	dashboard := NewDashboardService(dev, events, repos.StateRepo, cfg.Dashboard, log)
	scheduler := NewScheduler(dashboard, dashboard, cfg.Intervals, log)
	dashboard.UseRefresher(scheduler)

	return &Service{
		Dashboard:     dashboard,
		EventLog:      events,
		Poller:        scheduler,
		Authorization: NewAuthService(repos.Auth, cfg.JWTKey, cfg.TokenTTL),
	}
}
