package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"monotub_dashboard/internal/models"
	"monotub_dashboard/internal/repository"
)

// Journal event types written by the dashboard.
const (
	EventRangeChange       = "RANGE_CHANGE"
	EventFanControl        = "FAN_CONTROL"
	EventFanSettings       = "FAN_SETTINGS"
	EventSetpoint          = "SETPOINT"
	EventStorageInterval   = "STORAGE_INTERVAL"
	EventDeleteData        = "DELETE_DATA"
	EventDeleteDataFailed  = "DELETE_DATA_FAILED"
	EventRefreshFailed     = "REFRESH_FAILED"
	EventRefreshRecovered  = "REFRESH_RECOVERED"
	EventDeviceCommandFail = "DEVICE_COMMAND_FAILED"
)

// LogFilter narrows a journal listing. Zero values mean unbounded.
type LogFilter struct {
	From time.Time
	To   time.Time
	Type string
}

type EventLogService struct {
	eventRepo repository.EventRepo
	now       func() time.Time
}

func NewEventLogService(eventRepo repository.EventRepo) *EventLogService {
	return &EventLogService{eventRepo: eventRepo, now: time.Now}
}

var (
	errInvalidTimeRange = errors.New("invalid time range: From must be <= To")
)

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

func normalizeEventType(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f LogFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	return from, to, normalizeEventType(f.Type), nil
}

func (s *EventLogService) List(ctx context.Context, f LogFilter) ([]models.DashboardEvent, error) {
	from, to, typ, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.eventRepo.List(ctx, from, to, typ)
}

// Record appends one journal entry stamped with the current time.
func (s *EventLogService) Record(ctx context.Context, typ, description string, meta map[string]any) error {
	e := models.DashboardEvent{
		OccurredAt:  s.now().UTC(),
		Type:        normalizeEventType(typ),
		Description: description,
	}
	if len(meta) > 0 {
		e.Metadata = meta
	}
	return s.eventRepo.Append(ctx, e)
}
