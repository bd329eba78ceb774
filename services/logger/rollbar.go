package logsvc

import (
	"log"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/trezcool/halaqat/core"
)

// RollbarLogger reports API and storage events to Rollbar and mirrors them on a local logger.
// Reporting is off in debug mode and when no token is configured; the local copy is always written.
type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnabled(conf.RollbarToken != "" && !conf.Debug)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{std: std}
}

// Enable toggles reporting, e.g. to silence the storage logger during tests.
func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// event splits the args of a log call into what Rollbar receives and the staff member, if any.
// The member's organization and role travel as custom fields so that reports can be filtered per center.
type event struct {
	args   []interface{}
	person *core.Person
}

func newEvent(msg string, args []interface{}) event {
	ev := event{args: []interface{}{msg}}
	var extras map[string]interface{}
	for _, arg := range args {
		switch a := arg.(type) {
		case core.Person:
			if ev.person == nil {
				p := a
				ev.person = &p
			}
		case map[string]interface{}:
			if extras == nil {
				extras = make(map[string]interface{}, len(a)+2)
			}
			for k, v := range a {
				extras[k] = v
			}
		default:
			ev.args = append(ev.args, arg)
		}
	}
	if p := ev.person; p != nil && (p.OrgID != "" || p.Role != "") {
		if extras == nil {
			extras = make(map[string]interface{}, 2)
		}
		if p.OrgID != "" {
			extras["org_id"] = p.OrgID
		}
		if p.Role != "" {
			extras["role"] = p.Role
		}
	}
	if extras != nil {
		ev.args = append(ev.args, extras)
	}
	return ev
}

func (l RollbarLogger) report(level, msg string, args []interface{}) {
	ev := newEvent(msg, args)
	if ev.person != nil {
		rollbar.SetPerson(ev.person.ID, ev.person.Name, ev.person.Email)
	} else {
		rollbar.ClearPerson()
	}
	rollbar.Log(level, ev.args...)

	l.std.Printf("[%s] %s\n", level, msg)
	for _, arg := range ev.args[1:] {
		l.std.Printf("%+v\n", arg)
	}
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) { l.report(rollbar.DEBUG, msg, args) }
func (l RollbarLogger) Info(msg string, args ...interface{})  { l.report(rollbar.INFO, msg, args) }
func (l RollbarLogger) Warn(msg string, args ...interface{})  { l.report(rollbar.WARN, msg, args) }
func (l RollbarLogger) Error(msg string, args ...interface{}) { l.report(rollbar.ERR, msg, args) }

// Fatal reports a critical event, waits for pending reports then exits.
func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.report(rollbar.CRIT, msg, args)
	rollbar.Wait()
	l.std.Fatal(msg)
}
