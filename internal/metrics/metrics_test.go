package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/configstore/internal/events"
	"github.com/roach88/configstore/internal/model"
)

func TestListener_ScanCompleted(t *testing.T) {
	l := NewListener()
	start := time.Date(2024, 3, 1, 2, 0, 0, 0, time.UTC)

	l.ScanCompleted(events.ScanCompleted{
		Request:   model.NewScanRequest(start, start, model.ScanPoll),
		EndActual: start.Add(1500 * time.Millisecond),
		Entities:  12,
		Changes:   map[model.ChangeType]int{model.ChangeAdd: 2, model.ChangeDelete: 1},
	})
	l.ScanCompleted(events.ScanCompleted{
		Request:   model.NewScanRequest(start, start, model.ScanManual),
		EndActual: start.Add(time.Minute),
		Entities:  11,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(l.scansTotal.WithLabelValues("POLL")))
	assert.Equal(t, 1.0, testutil.ToFloat64(l.scansTotal.WithLabelValues("MANUAL")))
	assert.Equal(t, 2.0, testutil.ToFloat64(l.deltasTotal.WithLabelValues("ADD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(l.deltasTotal.WithLabelValues("DELETE")))
	assert.Equal(t, 11.0, testutil.ToFloat64(l.entities))
	assert.Equal(t, float64(start.Add(time.Minute).Unix()), testutil.ToFloat64(l.lastScan))
	assert.Equal(t, 2, testutil.CollectAndCount(l.scanDuration))
}

func TestListener_PollingConfigurations(t *testing.T) {
	l := NewListener()
	cfg := model.PollingConfiguration{Interval: time.Hour, TimeOfDay: model.MustTimeOfDay(2, 0, 0)}

	l.PollingConfigurationApplied(events.PollingConfigurationApplied{Configuration: cfg})
	assert.Equal(t, 3600.0, testutil.ToFloat64(l.pollingInterval))

	l.PollingConfigurationErrorOccurred(events.PollingConfigurationErrorOccurred{Configuration: cfg, Err: errors.New("bad")})
	assert.Equal(t, 1.0, testutil.ToFloat64(l.pollingConfigs.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(l.pollingConfigs.WithLabelValues("rejected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(l.pollingInterval))
}

func TestListener_Handler(t *testing.T) {
	l := NewListener()
	l.PollingConfigurationApplied(events.PollingConfigurationApplied{
		Configuration: model.PollingConfiguration{Interval: time.Minute, TimeOfDay: model.MustTimeOfDay(0, 0, 0)},
	})

	rec := httptest.NewRecorder()
	l.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "configstore_polling_interval_seconds 60"), body)
	assert.Contains(t, body, `configstore_polling_configurations_total{result="applied"} 1`)
}
