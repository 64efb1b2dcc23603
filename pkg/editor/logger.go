package editor

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/justyntemme/vst3gui/pkg/framework/debug"
)

var logger atomic.Pointer[zap.Logger]

// Logger returns the editor's logger. It defaults to the framework's debug
// logger.
func Logger() *zap.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return debug.Default().Zap().Named("editor")
}

// SetLogger replaces the editor's logger; nil restores the default.
func SetLogger(l *zap.Logger) {
	logger.Store(l)
}

func (c Config) logger() *zap.Logger {
	l := Logger()
	if c.LogLevel == "" {
		return l
	}
	lvl, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil || !l.Core().Enabled(lvl) {
		return l
	}
	return l.WithOptions(zap.IncreaseLevel(lvl))
}
