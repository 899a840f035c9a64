package workflow

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/approvals/core"
)

func Test_checkSubmittable(t *testing.T) {
	tests := []struct {
		name      string
		payload   Payload
		wantField string
	}{
		{name: "curriculum without chapters", payload: &CurriculumPayload{LearningOutcomes: []string{"read"}}, wantField: "chapters"},
		{name: "curriculum without outcomes", payload: &CurriculumPayload{Chapters: []Chapter{{Title: "Poetry"}}}, wantField: "learning_outcomes"},
		{name: "complete curriculum", payload: &CurriculumPayload{Chapters: []Chapter{{Title: "Poetry"}}, LearningOutcomes: []string{"read"}}},
		{name: "lesson plan without objectives", payload: &LessonPlanPayload{Topic: "Rivers"}, wantField: "objectives"},
		{name: "complete lesson plan", payload: &LessonPlanPayload{Objectives: []string{"name three rivers"}}},
		{name: "exam without marks", payload: &ExamPayload{Name: "Final"}, wantField: "marks"},
		{name: "complete exam", payload: &ExamPayload{Marks: []StudentMark{{StudentID: "s1"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkSubmittable(tt.payload)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
		})
	}
}

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload(VariantExam, json.RawMessage(`{"name": "Final", "max_marks": 50, "marks": [{"student_id": "s9", "marks": 42.5}]}`))
	require.NoError(t, err)
	exam, ok := p.(*ExamPayload)
	require.True(t, ok)
	assert.Equal(t, "Final", exam.Title())
	assert.Equal(t, 42.5, exam.Marks[0].Marks)

	p, err = DecodePayload(VariantCurriculum, nil)
	require.NoError(t, err)
	assert.Equal(t, &CurriculumPayload{}, p)

	_, err = DecodePayload(VariantLessonPlan, json.RawMessage(`{"topic": "Rivers", "homework": true}`))
	assert.Error(t, err)

	_, err = DecodePayload("homework", json.RawMessage(`{}`))
	assert.Error(t, err)
}

func TestRecord_UnmarshalJSON(t *testing.T) {
	rec := Record{
		ID:          "42",
		Variant:     VariantLessonPlan,
		Status:      StatusSubmitted,
		OwnerID:     "t1",
		SubmittedAt: time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
		Payload:     &LessonPlanPayload{Topic: "Volcanoes", Objectives: []string{"explain eruptions"}, DurationMinutes: 40},
	}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var got Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, rec, got)
	assert.Equal(t, "Pending", got.StatusLabel())
	assert.Equal(t, "Volcanoes", got.Title())
}

func TestRecord_Editable(t *testing.T) {
	tests := []struct {
		variant Variant
		status  Status
		want    bool
	}{
		{VariantCurriculum, StatusDraft, true},
		{VariantCurriculum, StatusSubmitted, false},
		{VariantCurriculum, StatusApproved, false},
		{VariantCurriculum, StatusRejected, false},
		{VariantCurriculum, StatusRevisionRequired, true},
		{VariantLessonPlan, StatusRejected, true},
		{VariantExam, StatusRejected, false},
		{VariantExam, StatusRevisionRequired, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.variant)+"/"+string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, Record{Variant: tt.variant, Status: tt.status}.Editable())
		})
	}
}

func TestStatus_Label(t *testing.T) {
	assert.Equal(t, "Pending Approval", StatusSubmitted.Label(VariantCurriculum))
	assert.Equal(t, "Pending Moderation", StatusSubmitted.Label(VariantExam))
	assert.Equal(t, "Published", StatusApproved.Label(VariantExam))
	assert.Equal(t, "archived", Status("archived").Label(VariantExam))
}
