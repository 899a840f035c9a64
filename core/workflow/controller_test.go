package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/approvals/core/user"
	"github.com/trezcool/approvals/core/workflow"
	"github.com/trezcool/approvals/storage/database/dummy"
	"github.com/trezcool/approvals/tests"
)

func setupController(t *testing.T, variant workflow.Variant) (*workflow.Controller, workflow.Repository) {
	t.Helper()
	repo := dummydb.NewRecordRepository(dummydb.Open())
	eng := workflow.NewEngine(workflow.DefaultRolePolicy())
	return workflow.NewController(eng, workflow.NewStore(repo), variant), repo
}

func transitionReq(id string, action workflow.Action, actorID, role, comment string) workflow.TransitionRequest {
	return workflow.TransitionRequest{RecordID: id, Action: action, ActorID: actorID, ActorRole: role, Comment: comment}
}

func TestController_LoadPending(t *testing.T) {
	ctrl, repo := setupController(t, workflow.VariantLessonPlan)
	ctx := context.Background()

	recs, err := ctrl.LoadPending(ctx, workflow.StatusSubmitted)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)

	t0 := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	late := testutil.CreateRecord(t, repo, workflow.Record{Variant: workflow.VariantLessonPlan, Status: workflow.StatusSubmitted, OwnerID: "t1", SubmittedAt: t0.Add(2 * time.Hour)})
	early := testutil.CreateRecord(t, repo, workflow.Record{Variant: workflow.VariantLessonPlan, Status: workflow.StatusSubmitted, OwnerID: "t2", SubmittedAt: t0})
	draft := testutil.CreateRecord(t, repo, workflow.Record{Variant: workflow.VariantLessonPlan, Status: workflow.StatusDraft, OwnerID: "t1"})
	revision := testutil.CreateRecord(t, repo, workflow.Record{Variant: workflow.VariantLessonPlan, Status: workflow.StatusRevisionRequired, OwnerID: "t1", SubmittedAt: t0.Add(time.Hour)})
	testutil.CreateRecord(t, repo, workflow.Record{Variant: workflow.VariantExam, Status: workflow.StatusSubmitted, OwnerID: "t1", SubmittedAt: t0})

	tests := []struct {
		name     string
		statuses []workflow.Status
		want     []workflow.Record
	}{
		{name: "submitted", statuses: []workflow.Status{workflow.StatusSubmitted}, want: []workflow.Record{early, late}},
		{
			name:     "submitted & revision required",
			statuses: []workflow.Status{workflow.StatusSubmitted, workflow.StatusRevisionRequired},
			want:     []workflow.Record{early, revision, late},
		},
		{name: "never submitted last", statuses: []workflow.Status{workflow.StatusDraft, workflow.StatusSubmitted}, want: []workflow.Record{early, late, draft}},
		{name: "no match", statuses: []workflow.Status{workflow.StatusApproved}, want: []workflow.Record{}},
		{name: "reload submitted", statuses: []workflow.Status{workflow.StatusSubmitted}, want: []workflow.Record{early, late}},
		{name: "empty status set", want: []workflow.Record{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ctrl.LoadPending(ctx, tt.statuses...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want, ctrl.Snapshot(), "loaded set replaced")
		})
	}
}

func TestController_Transition_scenario(t *testing.T) {
	ctrl, repo := setupController(t, workflow.VariantExam)
	ctx := context.Background()
	rec := testutil.CreateRecord(t, repo, workflow.Record{Variant: workflow.VariantExam, Status: workflow.StatusDraft, OwnerID: "t1"})

	_, err := ctrl.LoadPending(ctx, workflow.StatusDraft)
	require.NoError(t, err)

	got, err := ctrl.Transition(ctx, transitionReq(rec.ID, workflow.ActionSubmit, "t1", user.RoleTeacher, ""))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSubmitted, got.Status)
	assert.False(t, got.SubmittedAt.IsZero())

	_, err = ctrl.Transition(ctx, transitionReq(rec.ID, workflow.ActionRequestRevision, "r1", user.RoleAdminCoordinator, ""))
	assert.True(t, workflow.IsValidationKind(err, workflow.CommentRequired))
	cached, ok := ctrl.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, workflow.StatusSubmitted, cached.Status)
	stored, err := repo.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSubmitted, stored.Status)

	got, err = ctrl.Transition(ctx, transitionReq(rec.ID, workflow.ActionRequestRevision, "r1", user.RoleAdminCoordinator, "add more detail"))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusRevisionRequired, got.Status)
	assert.Equal(t, "add more detail", got.ReviewComments)

	got, err = ctrl.Transition(ctx, transitionReq(rec.ID, workflow.ActionResubmit, "t1", user.RoleTeacher, ""))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSubmitted, got.Status)

	got, err = ctrl.Transition(ctx, transitionReq(rec.ID, workflow.ActionApprove, "r1", user.RoleAdminCoordinator, ""))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, got.Status)
	assert.Equal(t, "r1", got.ReviewerID)
	assert.False(t, got.ReviewedAt.IsZero())
	assert.False(t, got.ReviewedAt.Before(got.SubmittedAt))

	logs, err := repo.QueryTransitions(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, logs, 4)
	assert.Equal(t, workflow.ActionSubmit, logs[0].Action)
	assert.Equal(t, workflow.ActionApprove, logs[3].Action)
}

func TestController_Transition_roundTrip(t *testing.T) {
	ctrl, repo := setupController(t, "")
	ctx := context.Background()
	rec := testutil.CreateRecord(t, repo, workflow.Record{Variant: workflow.VariantLessonPlan, Status: workflow.StatusSubmitted, OwnerID: "t1", SubmittedAt: time.Now().UTC()})

	_, err := ctrl.LoadPending(ctx, workflow.StatusSubmitted)
	require.NoError(t, err)

	got, err := ctrl.Transition(ctx, transitionReq(rec.ID, workflow.ActionReject, "r1", user.RoleAdmin, "wrong class"))
	require.NoError(t, err)

	cached, ok := ctrl.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, got, cached)

	reloaded, err := ctrl.LoadPending(ctx, workflow.StatusSubmitted, workflow.StatusRejected)
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.Equal(t, got, reloaded[0])
}

func TestController_Transition_topApproverCurriculum(t *testing.T) {
	ctrl, repo := setupController(t, workflow.VariantCurriculum)
	ctx := context.Background()
	rec := testutil.CreateRecord(t, repo, workflow.Record{Variant: workflow.VariantCurriculum, Status: workflow.StatusDraft, OwnerID: "p1"})

	_, err := ctrl.Refresh(ctx, rec.ID)
	require.NoError(t, err)

	got, err := ctrl.Transition(ctx, transitionReq(rec.ID, workflow.ActionSubmit, "p1", user.RoleAdminPrincipal, ""))
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusApproved, got.Status)

	logs, err := repo.QueryTransitions(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1, "single write, no intermediate submitted state")
	assert.Equal(t, workflow.StatusDraft, logs[0].From)
	assert.Equal(t, workflow.StatusApproved, logs[0].To)
}

func TestController_Transition_notLoaded(t *testing.T) {
	ctrl, repo := setupController(t, "")
	rec := testutil.CreateRecord(t, repo, workflow.Record{Variant: workflow.VariantExam, Status: workflow.StatusDraft, OwnerID: "t1"})

	_, err := ctrl.Transition(context.Background(), transitionReq(rec.ID, workflow.ActionSubmit, "t1", user.RoleTeacher, ""))
	assert.Equal(t, workflow.ErrNotFound, err)
}

func TestController_Transition_storeError(t *testing.T) {
	boom := errors.New("permission denied for relation workflow_record")
	repo := &flakyRepo{Repository: dummydb.NewRecordRepository(dummydb.Open()), err: boom}
	ctrl := workflow.NewController(workflow.NewEngine(workflow.DefaultRolePolicy()), workflow.NewStore(repo), "")
	ctx := context.Background()
	rec := testutil.CreateRecord(t, repo, workflow.Record{Variant: workflow.VariantExam, Status: workflow.StatusDraft, OwnerID: "t1"})

	_, err := ctrl.Refresh(ctx, rec.ID)
	require.NoError(t, err)

	repo.failUpdate = true
	_, err = ctrl.Transition(ctx, transitionReq(rec.ID, workflow.ActionSubmit, "t1", user.RoleTeacher, ""))
	var sErr *workflow.StoreError
	require.True(t, errors.As(err, &sErr), "got %v", err)
	assert.True(t, errors.Is(err, boom))

	cached, ok := ctrl.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, workflow.StatusDraft, cached.Status, "cache untouched on failure")

	repo.failGet = true
	_, err = ctrl.Refresh(ctx, rec.ID)
	require.True(t, errors.As(err, &sErr))
	_, ok = ctrl.Get(rec.ID)
	assert.True(t, ok, "store failures keep the cached row")
}

func TestController_Refresh(t *testing.T) {
	ctrl, repo := setupController(t, workflow.VariantExam)
	ctx := context.Background()
	exam := testutil.CreateRecord(t, repo, workflow.Record{Variant: workflow.VariantExam, Status: workflow.StatusSubmitted, OwnerID: "t1", SubmittedAt: time.Now().UTC()})
	plan := testutil.CreateRecord(t, repo, workflow.Record{Variant: workflow.VariantLessonPlan, Status: workflow.StatusDraft, OwnerID: "t1"})

	_, err := ctrl.LoadPending(ctx, workflow.StatusSubmitted)
	require.NoError(t, err)

	// another reviewer moved the record meanwhile
	other := workflow.NewController(workflow.NewEngine(workflow.DefaultRolePolicy()), workflow.NewStore(repo), "")
	_, err = other.Refresh(ctx, exam.ID)
	require.NoError(t, err)
	moved, err := other.Transition(ctx, transitionReq(exam.ID, workflow.ActionApprove, "r2", user.RoleAdmin, ""))
	require.NoError(t, err)

	got, err := ctrl.Refresh(ctx, exam.ID)
	require.NoError(t, err)
	assert.Equal(t, moved, got)
	assert.Equal(t, []workflow.Record{moved}, ctrl.Snapshot())

	_, err = ctrl.Refresh(ctx, plan.ID)
	assert.Equal(t, workflow.ErrNotFound, err, "other variant")

	_, err = ctrl.Refresh(ctx, "missing")
	assert.Equal(t, workflow.ErrNotFound, err)
	assert.Len(t, ctrl.Snapshot(), 1)
}
