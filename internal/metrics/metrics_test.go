package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDecision(t *testing.T) {
	before := testutil.ToFloat64(AuthzDecisions.WithLabelValues("task.update", "denied"))

	RecordDecision("task.update", false)
	RecordDecision("task.update", true)

	assert.Equal(t, before+1, testutil.ToFloat64(AuthzDecisions.WithLabelValues("task.update", "denied")))
}
