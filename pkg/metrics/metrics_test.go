package metrics

import (
	"bytes"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePrometheus_ContainsRegisteredFamilies(t *testing.T) {
	StreamStopTotal.WithLabelValues("question").Inc()
	TurnTotal.WithLabelValues("chat", "ok").Inc()

	var buf bytes.Buffer
	require.NoError(t, WritePrometheus(&buf))
	out := buf.String()
	assert.Contains(t, out, "love_agent_stream_stop_total")
	assert.Contains(t, out, `rule="question"`)
	assert.Contains(t, out, "love_agent_turn_total")
}

func TestHistoryTruncationCounter(t *testing.T) {
	before := testutil.ToFloat64(HistoryTruncationTotal)
	HistoryTruncationTotal.Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(HistoryTruncationTotal))
}
