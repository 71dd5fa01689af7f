package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"monotub_dashboard/internal/models"
	"monotub_dashboard/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpID      int
	signUpErr     error
	genTokenToken string
	genTokenErr   error
	parseID       int
	parseErr      error

	lastSignUpUsername string
	lastSignUpPassword string
	lastGenUsername    string
	lastGenPassword    string
	lastParseToken     string
}

func (m *mockAuth) SignUp(ctx context.Context, username, password string) (int, error) {
	m.lastSignUpUsername = username
	m.lastSignUpPassword = password
	return m.signUpID, m.signUpErr
}
func (m *mockAuth) GenerateToken(ctx context.Context, username, password string) (string, error) {
	m.lastGenUsername = username
	m.lastGenPassword = password
	return m.genTokenToken, m.genTokenErr
}
func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

// mockDashboard returns err for every action and records the arguments it got.
type mockDashboard struct {
	mu sync.Mutex

	view service.View
	err  error

	calls        []string
	lastChart    string
	lastRange    string
	lastAction   string
	lastFan      service.FanSettings
	lastSetpoint float64
	lastInterval int
	confirmed    *bool

	subs map[int]func(service.Update)
	next int
}

func (m *mockDashboard) called(name string) {
	m.mu.Lock()
	m.calls = append(m.calls, name)
	m.mu.Unlock()
}

func (m *mockDashboard) View() service.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}
func (m *mockDashboard) Restore(ctx context.Context) error {
	m.called("Restore")
	return m.err
}
func (m *mockDashboard) UpdateStatus(ctx context.Context) error {
	m.called("UpdateStatus")
	return m.err
}
func (m *mockDashboard) UpdateCharts(ctx context.Context) error {
	m.called("UpdateCharts")
	return m.err
}
func (m *mockDashboard) ChangeTimeRange(ctx context.Context, chartID, rng string) error {
	m.called("ChangeTimeRange")
	m.lastChart, m.lastRange = chartID, rng
	return m.err
}
func (m *mockDashboard) UpdateFan(ctx context.Context, action string) error {
	m.called("UpdateFan")
	m.lastAction = action
	return m.err
}
func (m *mockDashboard) ConfigureFan(ctx context.Context, fs service.FanSettings) error {
	m.called("ConfigureFan")
	m.lastFan = fs
	return m.err
}
func (m *mockDashboard) SetSetpoint(ctx context.Context, setpoint float64) error {
	m.called("SetSetpoint")
	m.lastSetpoint = setpoint
	return m.err
}
func (m *mockDashboard) SetStorageInterval(ctx context.Context, minutes int) error {
	m.called("SetStorageInterval")
	m.lastInterval = minutes
	return m.err
}
func (m *mockDashboard) ConfirmDelete(ctx context.Context, confirm service.ConfirmFunc) error {
	m.called("ConfirmDelete")
	ok := confirm(service.DeletePrompt)
	m.confirmed = &ok
	if !ok {
		return service.ErrDeleteNotConfirmed
	}
	return m.err
}
func (m *mockDashboard) Subscribe(fn func(service.Update)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subs == nil {
		m.subs = make(map[int]func(service.Update))
	}
	id := m.next
	m.next++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// publish delivers u to every subscriber, like the real service does.
func (m *mockDashboard) publish(u service.Update) {
	m.mu.Lock()
	fns := make([]func(service.Update), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}

func (m *mockDashboard) subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

type mockEventLog struct {
	resp     []models.DashboardEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.DashboardEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
