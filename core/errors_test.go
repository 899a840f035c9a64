package core

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	tests := []struct {
		name      string
		err       ValidationError
		wantMsg   string
		wantField map[string]string
	}{
		{name: "empty"},
		{name: "cause only", err: ValidationError{Err: errors.New("cannot modify approved curriculum")}, wantMsg: "cannot modify approved curriculum"},
		{
			name:      "fields",
			err:       ValidationError{Fields: []FieldError{{Field: "chapters", Error: "add at least one chapter"}, {Field: "action", Error: "unknown action"}}},
			wantMsg:   "chapters: add at least one chapter",
			wantField: map[string]string{"chapters": "add at least one chapter", "action": "unknown action"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			assert.Equal(t, tt.wantField, tt.err.FieldMap())
		})
	}
}

func TestIsShutdown(t *testing.T) {
	err := NewShutdownError("record store lost a write")
	assert.Equal(t, "shutdown: record store lost a write", err.Error())
	assert.True(t, IsShutdown(err))
	assert.True(t, IsShutdown(errors.Wrap(err, "applying approve")))
	assert.False(t, IsShutdown(errors.New("record store lost a write")))
	assert.False(t, IsShutdown(nil))
}
