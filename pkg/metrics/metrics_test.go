package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "pwpolicy")

	m.Validations.WithLabelValues("valid").Inc()
	m.Violations.WithLabelValues("digits").Add(2)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Validations.WithLabelValues("valid")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Violations.WithLabelValues("digits")))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "pwpolicy_validations_total")
	assert.Contains(t, names, "pwpolicy_violations_total")
}

func TestNewUsesPrivateRegistry(t *testing.T) {
	assert.NotPanics(t, func() {
		New("pwpolicy")
		New("pwpolicy")
	})
}
