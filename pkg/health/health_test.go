package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error { return nil }

func down(context.Context) error { return errors.New("connection refused") }

func TestRun_AllUp(t *testing.T) {
	c := NewChecker()
	c.RegisterPing("redis", false, up)
	c.RegisterPing("postgres", true, up)

	report := c.Run(context.Background())
	assert.Equal(t, StatusUp, report.Status)
	assert.Len(t, report.Components, 2)
	assert.NotEmpty(t, report.Components["redis"].Latency)
}

func TestRun_NonCriticalFailureDegrades(t *testing.T) {
	c := NewChecker()
	c.RegisterPing("redis", false, down)
	c.RegisterPing("postgres", true, up)

	report := c.Run(context.Background())
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "connection refused", report.Components["redis"].Message)
}

func TestRun_CriticalFailureIsDown(t *testing.T) {
	c := NewChecker()
	c.RegisterPing("redis", false, down)
	c.RegisterPing("postgres", true, down)

	assert.Equal(t, StatusDown, c.Run(context.Background()).Status)
}

func TestRun_Timeout(t *testing.T) {
	c := NewChecker()
	c.SetTimeout(10 * time.Millisecond)
	c.SetTimeout(-1)
	release := make(chan struct{})
	defer close(release)
	c.Register("stuck", func(ctx context.Context) ComponentHealth {
		<-release
		return ComponentHealth{Status: StatusUp}
	})

	report := c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "check timed out", report.Components["stuck"].Message)
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name string
		ping func(context.Context) error
		crit bool
		code int
	}{
		{"up", up, true, http.StatusOK},
		{"degraded is ready", down, false, http.StatusOK},
		{"down", down, true, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker()
			c.RegisterPing("dep", tt.crit, tt.ping)
			rec := httptest.NewRecorder()
			c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
			assert.Equal(t, tt.code, rec.Code)

			var report Report
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
			assert.Contains(t, report.Components, "dep")
		})
	}
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	NewChecker().LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
