package logsvc

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/rs/zerolog"

	"github.com/trezcool/approvals/core"
	"github.com/trezcool/approvals/core/user"
)

// RollbarLogger reports events to Rollbar and mirrors them on a zerolog console.
type RollbarLogger struct {
	console zerolog.Logger
	exit    func(code int)
}

var _ core.Logger = (*RollbarLogger)(nil) // interface compliance check

func NewRollbarLogger(out io.Writer, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)

	level := zerolog.InfoLevel
	if conf.Debug {
		level = zerolog.DebugLevel
	}
	if out == nil {
		out = os.Stdout
	}
	console := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: conf.TestMode}).
		Level(level).
		With().
		Timestamp().
		Str("app", conf.AppName).
		Str("build", conf.Build).
		Logger()

	return &RollbarLogger{console: console, exit: os.Exit}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare splits `args` into rollbar arguments & console fields.
// expected fmt: msg | error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, func(*zerolog.Event)) {
	var usr *user.User
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	for _, arg := range args {
		if u, ok := arg.(user.User); ok {
			if usr == nil { // only set one User
				usr = &u
			}
			continue
		}
		rbArgs = append(rbArgs, arg)
	}

	if usr != nil {
		rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
	} else {
		rollbar.ClearPerson()
	}

	fields := func(e *zerolog.Event) {
		for _, arg := range args {
			switch a := arg.(type) {
			case error:
				e.Err(a)
			case map[string]interface{}:
				e.Fields(a)
			case user.User:
			default:
				e.Str("extra", fmt.Sprintf("%+v", a))
			}
		}
		if usr != nil {
			e.Str("user_id", usr.ID)
		}
	}
	return rbArgs, fields
}

func (l *RollbarLogger) log(e *zerolog.Event, report func(...interface{}), msg string, args []interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	report(rbArgs...)
	fields(e)
	e.Msg(msg)
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	l.log(l.console.Debug(), rollbar.Debug, msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(l.console.Info(), rollbar.Info, msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(l.console.Warn(), rollbar.Warning, msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(l.console.Error(), rollbar.Error, msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(l.console.WithLevel(zerolog.FatalLevel), rollbar.Critical, msg, args)
	rollbar.Wait()
	l.exit(1)
}
