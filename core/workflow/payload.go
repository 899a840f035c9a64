package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/approvals/core"
)

// Payload is the domain content of a record: one concrete type per Variant.
type Payload interface {
	Variant() Variant
	Title() string
	// Validate checks the content shape. Called at the boundary, never by the Engine.
	Validate(validate *validator.Validate) error

	isPayload()
}

type (
	Chapter struct {
		Title         string   `json:"title" validate:"notblank,max=256"`
		Description   string   `json:"description,omitempty" validate:"max=4096"`
		DurationWeeks int      `json:"duration_weeks,omitempty" validate:"gte=0,lte=52"`
		Topics        []string `json:"topics,omitempty" validate:"dive,notblank"`
	}

	CurriculumPayload struct {
		Subject          string    `json:"subject" validate:"notblank,max=128"`
		ClassName        string    `json:"class_name" validate:"notblank,max=64"`
		AcademicYear     string    `json:"academic_year" validate:"notblank,max=16"`
		Description      string    `json:"description,omitempty" validate:"max=4096"`
		Chapters         []Chapter `json:"chapters" validate:"dive"`
		LearningOutcomes []string  `json:"learning_outcomes" validate:"dive,notblank"`
	}

	Activity struct {
		Name            string `json:"name" validate:"notblank,max=256"`
		DurationMinutes int    `json:"duration_minutes,omitempty" validate:"gte=0,lte=600"`
		Description     string `json:"description,omitempty" validate:"max=4096"`
	}

	LessonPlanPayload struct {
		Topic           string     `json:"topic" validate:"notblank,max=256"`
		Subject         string     `json:"subject" validate:"notblank,max=128"`
		ClassName       string     `json:"class_name" validate:"notblank,max=64"`
		Date            time.Time  `json:"date" validate:"required"`
		DurationMinutes int        `json:"duration_minutes" validate:"gt=0,lte=600"`
		Objectives      []string   `json:"objectives" validate:"dive,notblank"`
		Activities      []Activity `json:"activities" validate:"dive"`
		Resources       []string   `json:"resources,omitempty" validate:"dive,notblank"`
	}

	StudentMark struct {
		StudentID   string  `json:"student_id" validate:"notblank"`
		StudentName string  `json:"student_name,omitempty"`
		Marks       float64 `json:"marks" validate:"gte=0"`
	}

	ExamPayload struct {
		Name      string        `json:"name" validate:"notblank,max=256"`
		Subject   string        `json:"subject" validate:"notblank,max=128"`
		ClassName string        `json:"class_name" validate:"notblank,max=64"`
		ExamDate  time.Time     `json:"exam_date" validate:"required"`
		MaxMarks  float64       `json:"max_marks" validate:"gt=0"`
		Marks     []StudentMark `json:"marks" validate:"dive"`
	}
)

var (
	_ Payload = (*CurriculumPayload)(nil)
	_ Payload = (*LessonPlanPayload)(nil)
	_ Payload = (*ExamPayload)(nil)

	errMarksAboveMax    = "marks cannot exceed the exam maximum"
	errDuplicateStudent = "marks were entered twice for the same student"
	errNoChapters       = "curriculum must have at least one chapter before submission"
	errNoOutcomes       = "curriculum must have at least one learning outcome before submission"
	errNoObjectives     = "lesson plan must have at least one objective before submission"
	errNoMarks          = "exam results must contain at least one mark before submission"
	errUnknownVariant   = "unknown variant"
)

func (*CurriculumPayload) Variant() Variant { return VariantCurriculum }
func (*LessonPlanPayload) Variant() Variant { return VariantLessonPlan }
func (*ExamPayload) Variant() Variant       { return VariantExam }

func (p *CurriculumPayload) Title() string {
	return fmt.Sprintf("%s - %s (%s)", p.Subject, p.ClassName, p.AcademicYear)
}
func (p *LessonPlanPayload) Title() string { return p.Topic }
func (p *ExamPayload) Title() string       { return p.Name }

func (*CurriculumPayload) isPayload() {}
func (*LessonPlanPayload) isPayload() {}
func (*ExamPayload) isPayload()       {}

func (p *CurriculumPayload) Validate(validate *validator.Validate) error {
	p.Subject = core.CleanString(p.Subject)
	p.ClassName = core.CleanString(p.ClassName)
	p.AcademicYear = core.CleanString(p.AcademicYear)
	return validate.Struct(p)
}

func (p *LessonPlanPayload) Validate(validate *validator.Validate) error {
	p.Topic = core.CleanString(p.Topic)
	p.Subject = core.CleanString(p.Subject)
	p.ClassName = core.CleanString(p.ClassName)
	return validate.Struct(p)
}

func (p *ExamPayload) Validate(validate *validator.Validate) error {
	p.Name = core.CleanString(p.Name)
	p.Subject = core.CleanString(p.Subject)
	p.ClassName = core.CleanString(p.ClassName)
	if err := validate.Struct(p); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(p.Marks))
	for _, m := range p.Marks {
		if m.Marks > p.MaxMarks {
			return core.NewValidationError(nil, core.FieldError{Field: "marks", Error: errMarksAboveMax})
		}
		if _, dup := seen[m.StudentID]; dup {
			return core.NewValidationError(nil, core.FieldError{Field: "marks", Error: errDuplicateStudent})
		}
		seen[m.StudentID] = struct{}{}
	}
	return nil
}

// checkSubmittable verifies the payload is complete enough to be sent for review.
func checkSubmittable(p Payload) error {
	switch pl := p.(type) {
	case *CurriculumPayload:
		if len(pl.Chapters) == 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "chapters", Error: errNoChapters})
		}
		if len(pl.LearningOutcomes) == 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "learning_outcomes", Error: errNoOutcomes})
		}
	case *LessonPlanPayload:
		if len(pl.Objectives) == 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "objectives", Error: errNoObjectives})
		}
	case *ExamPayload:
		if len(pl.Marks) == 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "marks", Error: errNoMarks})
		}
	}
	return nil
}

// NewPayload returns an empty payload of the given variant.
func NewPayload(v Variant) (Payload, error) {
	switch v {
	case VariantCurriculum:
		return new(CurriculumPayload), nil
	case VariantLessonPlan:
		return new(LessonPlanPayload), nil
	case VariantExam:
		return new(ExamPayload), nil
	}
	return nil, core.NewValidationError(nil, core.FieldError{Field: "variant", Error: errUnknownVariant})
}

// DecodePayload decodes raw JSON content into the payload type of variant `v`. Unknown fields are refused.
func DecodePayload(v Variant, raw json.RawMessage) (Payload, error) {
	p, err := NewPayload(v)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return p, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err = dec.Decode(p); err != nil {
		return nil, core.NewValidationError(
			errors.Wrap(err, "decoding payload"),
			core.FieldError{Field: "payload", Error: err.Error()},
		)
	}
	return p, nil
}
