package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/hookgate/internal/domain"
)

func TestMetricsCountDecisionsAndValidators(t *testing.T) {
	m := New()
	m.ObserveDecision(domain.OutcomeBlock, 2*time.Millisecond)
	m.ObserveDecision(domain.OutcomeBlock, time.Millisecond)
	m.ObserveDecision(domain.OutcomeAllow, time.Millisecond)
	m.ObserveRuleMatch("block-force-push")
	m.ObserveValidator(domain.ValidatorTimedOut)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Decisions.WithLabelValues("block")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("allow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RuleMatches.WithLabelValues("block-force-push")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ValidatorRuns.WithLabelValues("timed_out")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveDecision(domain.OutcomeInject, time.Millisecond)

	path := filepath.Join(t.TempDir(), "nested", "hookgate.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `hookgate_decisions_total{outcome="inject"} 1`)
	assert.NoError(t, m.WriteTextfile(""))
}
