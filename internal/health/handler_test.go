// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okProbe(ctx context.Context) error { return nil }

func failProbe(ctx context.Context) error { return errors.New("down") }

func TestLiveness_ReportsOK(t *testing.T) {
	h := NewHandler()

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestReadiness_AllChecksHealthy(t *testing.T) {
	h := NewHandler(
		Check{Name: "database", Probe: okProbe},
		Check{Name: "redis", Probe: okProbe},
	)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Checks, 2)
	assert.True(t, resp.Checks[0].Healthy)
	assert.True(t, resp.Checks[1].Healthy)
}

func TestReadiness_OneCheckFailingDegrades(t *testing.T) {
	h := NewHandler(
		Check{Name: "database", Probe: okProbe},
		Check{Name: "redis", Probe: failProbe},
	)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
}

func TestReadiness_ShutdownWinsOverHealthyChecks(t *testing.T) {
	h := NewHandler(Check{Name: "database", Probe: okProbe})
	h.SetShutdown(true)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadiness_NotReady(t *testing.T) {
	h := NewHandler(Check{Name: "database", Probe: okProbe})
	h.SetReady(false)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
