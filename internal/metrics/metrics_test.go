package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		IncHTTP("/api/v1/reservations", "201")
		ObserveAdmission("admitted")
		IncAdmissionRetry()
		ObserveTransition("cancelled", "ok")
		ObserveAvailability(15 * time.Millisecond)
		AddCompleted(2)
		AddCompleted(0)
	})

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `courtbook_admissions_total{outcome="admitted"}`)
	assert.Contains(t, string(body), "courtbook_reservations_completed_total 2")
}
