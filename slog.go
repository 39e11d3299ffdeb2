package standupscot

import (
	"go.uber.org/zap"
)

// SLogger is the standupscot internal logging interface. A *zap.SugaredLogger implements this interface
type SLogger interface {
	Printf(format string, v ...interface{})

	Debugf(format string, v ...interface{})
}

type sLogger struct {
	logger *zap.SugaredLogger
	debug  bool
}

// NewSLogger creates a new standupscot logger provided with a zap logger and a debug flag
func NewSLogger(log *zap.Logger, debug bool) (l *sLogger) {
	sl := new(sLogger)
	sl.debug = debug
	sl.logger = log.WithOptions(zap.AddCallerSkip(1)).Sugar()
	return sl
}

// Debugf logs a debug line after checking if the configuration is in debug mode
func (sl *sLogger) Debugf(format string, v ...interface{}) {
	if sl.debug {
		sl.logger.Debugf(format, v...)
	}
}

// Printf logs an info line
func (sl *sLogger) Printf(format string, v ...interface{}) {
	sl.logger.Infof(format, v...)
}
