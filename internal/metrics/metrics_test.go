package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersAndServes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CacheRequests.WithLabelValues("1h", "fresh").Inc()
	m.SymbolsValid.Set(7)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("1h", "fresh")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "pairscanner_symbols_valid 7")
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
