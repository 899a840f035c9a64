package sqlxrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_build(t *testing.T) {
	tests := []struct {
		name     string
		preds    [][]interface{}
		wantSQL  string
		wantArgs []interface{}
	}{
		{name: "no predicate", wantSQL: "SELECT id FROM workflow_record", wantArgs: []interface{}{}},
		{
			name:     "equality",
			preds:    [][]interface{}{{"variant = ?", "exam"}},
			wantSQL:  "SELECT id FROM workflow_record WHERE variant = $1",
			wantArgs: []interface{}{"exam"},
		},
		{
			name:     "inclusion is expanded",
			preds:    [][]interface{}{{"variant = ?", "exam"}, {"status IN (?)", []string{"draft", "submitted"}}},
			wantSQL:  "SELECT id FROM workflow_record WHERE variant = $1 AND status IN ($2, $3)",
			wantArgs: []interface{}{"exam", "draft", "submitted"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := new(where)
			for _, p := range tt.preds {
				w.add(p[0].(string), p[1:]...)
			}
			q, args, err := build("SELECT id FROM workflow_record"+w.String(), w.args)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, q)
			assert.ElementsMatch(t, tt.wantArgs, args)
		})
	}
}

func Test_validID(t *testing.T) {
	assert.True(t, validID("3f2b8c1e-8a0e-4c8e-9d52-5f3c2b7a9e10"))
	assert.False(t, validID("42"))
	assert.False(t, validID(""))
}
