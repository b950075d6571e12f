package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upCheck(ctx context.Context) ComponentHealth {
	return ComponentHealth{Status: StatusUp}
}

func downCheck(ctx context.Context) ComponentHealth {
	return ComponentHealth{Status: StatusDown, Message: "connection refused"}
}

func TestRunAggregatesWorstStatus(t *testing.T) {
	c := NewChecker()
	c.Register("object-store", upCheck)
	c.Register("partitions", upCheck)

	report := c.Run(context.Background())
	assert.Equal(t, StatusUp, report.Status)
	assert.Len(t, report.Components, 2)

	c.Register("redis", downCheck)
	report = c.Run(context.Background())
	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, "connection refused", report.Components["redis"].Message)
}

func TestRunWithNoChecks(t *testing.T) {
	report := NewChecker().Run(context.Background())
	assert.Equal(t, StatusUp, report.Status)
	assert.Empty(t, report.Components)
}

func TestReadyHandlerReportsServiceUnavailable(t *testing.T) {
	c := NewChecker()
	c.Register("object-store", downCheck)

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDown, report.Status)
}

func TestLiveHandlerAlwaysOK(t *testing.T) {
	c := NewChecker()
	c.Register("object-store", downCheck)

	rec := httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
