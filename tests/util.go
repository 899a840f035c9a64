package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/approvals/core/user"
	"github.com/trezcool/approvals/core/workflow"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateRecord stores `rec` as is, with a submittable payload unless one is given.
func CreateRecord(t *testing.T, repo workflow.Repository, rec workflow.Record) workflow.Record {
	if rec.Payload == nil {
		rec.Payload = CompletePayload(rec.Variant)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
		rec.UpdatedAt = rec.CreatedAt
	}
	rec, err := repo.CreateRecord(context.Background(), rec)
	if err != nil {
		t.Fatalf("CreateRecord() failed: %v", err)
	}
	return rec
}

// CompletePayload returns a valid payload of variant `v`, ready for submission.
func CompletePayload(v workflow.Variant) workflow.Payload {
	switch v {
	case workflow.VariantCurriculum:
		return &workflow.CurriculumPayload{
			Subject:          "Mathematics",
			ClassName:        "Grade 7",
			AcademicYear:     "2024-2025",
			Chapters:         []workflow.Chapter{{Title: "Fractions", DurationWeeks: 3}},
			LearningOutcomes: []string{"add & subtract fractions"},
		}
	case workflow.VariantLessonPlan:
		return &workflow.LessonPlanPayload{
			Topic:           "Photosynthesis",
			Subject:         "Biology",
			ClassName:       "Grade 9",
			Date:            time.Date(2024, 9, 2, 0, 0, 0, 0, time.UTC),
			DurationMinutes: 45,
			Objectives:      []string{"describe the light reactions"},
		}
	case workflow.VariantExam:
		return &workflow.ExamPayload{
			Name:      "Mid-term",
			Subject:   "Physics",
			ClassName: "Grade 10",
			ExamDate:  time.Date(2024, 10, 14, 0, 0, 0, 0, time.UTC),
			MaxMarks:  100,
			Marks:     []workflow.StudentMark{{StudentID: "s1", StudentName: "Amani", Marks: 78}},
		}
	}
	return nil
}
