package logsvc

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/user"
)

func TestRollbarLogger(t *testing.T) {
	var out bytes.Buffer
	conf := core.NewTestConfig()
	logger := NewRollbarLogger(&out, conf)

	var exitCode int
	logger.exit = func(code int) { exitCode = code }

	usr := user.User{ID: "3f2b8c1e", Username: "neema"}

	tests := []struct {
		name     string
		log      func(msg string, args ...interface{})
		msg      string
		args     []interface{}
		contains []string
	}{
		{name: "debug", log: logger.Debug, msg: "loading records", contains: []string{"DBG", "loading records"}},
		{name: "info with extras", log: logger.Info, msg: "record approved", args: []interface{}{map[string]interface{}{"record_id": "42"}}, contains: []string{"INF", "record_id=42"}},
		{name: "warn with error", log: logger.Warn, msg: "caching stats", args: []interface{}{errors.New("redis down")}, contains: []string{"WRN", "redis down"}},
		{name: "error with user", log: logger.Error, msg: "sending email", args: []interface{}{usr}, contains: []string{"ERR", "user_id=3f2b8c1e"}},
		{name: "fatal", log: logger.Fatal, msg: "server stopped", contains: []string{"FTL", "server stopped"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			tt.log(tt.msg, tt.args...)
			for _, s := range tt.contains {
				assert.Contains(t, out.String(), s)
			}
		})
	}
	assert.Equal(t, 1, exitCode)
}
