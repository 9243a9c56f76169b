package media

import (
	"github.com/pion/logging"
	"github.com/relayworks/screencast-relay/logx"
)

// relayLoggerFactory bridges pion's internal logging.LoggerFactory
// interface into this module's logx severity format, grounded on
// pion-bwe-test/sender/sender.go's use of
// logging.NewDefaultLoggerFactory() and on the settingEngine.LoggerFactory
// wiring shown in the goutils wrtc_peer.go file from the example pack.
type relayLoggerFactory struct {
	log *logx.Logger
}

func (f relayLoggerFactory) NewLogger(scope string) logging.LeveledLogger {
	return relayLeveledLogger{scope: scope, log: f.log}
}

type relayLeveledLogger struct {
	scope string
	log   *logx.Logger
}

func (l relayLeveledLogger) Trace(msg string)                          {}
func (l relayLeveledLogger) Tracef(format string, args ...interface{}) {}
func (l relayLeveledLogger) Debug(msg string)                          {}
func (l relayLeveledLogger) Debugf(format string, args ...interface{}) {}

func (l relayLeveledLogger) Info(msg string) {
	l.log.Infof("%s: %s", l.scope, msg)
}

func (l relayLeveledLogger) Infof(format string, args ...interface{}) {
	l.log.Infof("%s: "+format, append([]interface{}{l.scope}, args...)...)
}

func (l relayLeveledLogger) Warn(msg string) {
	l.log.Warnf("%s: %s", l.scope, msg)
}

func (l relayLeveledLogger) Warnf(format string, args ...interface{}) {
	l.log.Warnf("%s: "+format, append([]interface{}{l.scope}, args...)...)
}

func (l relayLeveledLogger) Error(msg string) {
	l.log.Errorf("%s: %s", l.scope, msg)
}

func (l relayLeveledLogger) Errorf(format string, args ...interface{}) {
	l.log.Errorf("%s: "+format, append([]interface{}{l.scope}, args...)...)
}
