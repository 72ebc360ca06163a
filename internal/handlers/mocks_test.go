package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Oussamaghaouti/irrig/internal/models"
	"github.com/Oussamaghaouti/irrig/internal/service"
)

// ---- Service Mocks ----

type mockPumpSync struct {
	status     models.ControllerStatus
	refreshErr error
	setModeErr error
	toggleErr  error

	refreshCalls int
	setModeCalls int
	toggleCalls  int
	lastMode     string
}

func (m *mockPumpSync) Status() models.ControllerStatus { return m.status }

func (m *mockPumpSync) Refresh(ctx context.Context) error {
	m.refreshCalls++
	return m.refreshErr
}

func (m *mockPumpSync) SetMode(mode string) error {
	m.setModeCalls++
	m.lastMode = mode
	return m.setModeErr
}

func (m *mockPumpSync) TogglePump() error {
	m.toggleCalls++
	return m.toggleErr
}

type mockEventLog struct {
	resp     []models.PumpEvent
	err      error
	lastFrom time.Time
	lastTo   time.Time
	lastType string
}

func (m *mockEventLog) List(ctx context.Context, f service.LogFilter) ([]models.PumpEvent, error) {
	m.lastFrom = f.From
	m.lastTo = f.To
	m.lastType = f.Type
	return m.resp, m.err
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(s, nil, nil)
	return h.InitRoutes()
}
