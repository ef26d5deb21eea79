package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func TestSetUnitStatus(t *testing.T) {
	all := []string{"waiting", "active", "blocked", "maintenance"}

	SetUnitStatus("vantage-agent", "blocked", all)
	assert.Equal(t, 1.0, gaugeValue(t, UnitStatus.WithLabelValues("vantage-agent", "blocked")))
	assert.Equal(t, 0.0, gaugeValue(t, UnitStatus.WithLabelValues("vantage-agent", "active")))

	SetUnitStatus("vantage-agent", "active", all)
	assert.Equal(t, 0.0, gaugeValue(t, UnitStatus.WithLabelValues("vantage-agent", "blocked")))
	assert.Equal(t, 1.0, gaugeValue(t, UnitStatus.WithLabelValues("vantage-agent", "active")))
}

func TestSetLeader(t *testing.T) {
	SetLeader("jobbergate-agent", true)
	assert.Equal(t, 1.0, gaugeValue(t, UnitLeader.WithLabelValues("jobbergate-agent")))

	SetLeader("jobbergate-agent", false)
	assert.Equal(t, 0.0, gaugeValue(t, UnitLeader.WithLabelValues("jobbergate-agent")))
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}
