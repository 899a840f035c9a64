package metricsvc

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/approvals/core/workflow"
)

func TestMetrics(t *testing.T) {
	m := New()
	reg := prometheus.NewRegistry()
	m.RegisterCollectors(reg)

	m.TransitionApplied(workflow.VariantExam, workflow.ActionSubmit, workflow.StatusSubmitted)
	m.TransitionApplied(workflow.VariantExam, workflow.ActionSubmit, workflow.StatusSubmitted)
	m.TransitionApplied(workflow.VariantCurriculum, workflow.ActionSubmit, workflow.StatusApproved)
	m.TransitionRefused(workflow.VariantExam, workflow.ActionReject, string(workflow.CommentRequired))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransitionsApplied.WithLabelValues("exam", "submit", "submitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionsApplied.WithLabelValues("curriculum", "submit", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionsRefused.WithLabelValues("exam", "reject", "comment_required")))

	n, err := testutil.GatherAndCount(reg, "approvals_transitions_applied_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Panics(t, func() { m.RegisterCollectors(reg) }, "duplicate registration")
}
