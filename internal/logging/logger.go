package logging

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.Logger
	InvocationID string
}

// NewLogger builds a production (JSON, stderr) logger at the given level.
func NewLogger(level string) (*Logger, error) {
	config := zap.NewProductionConfig()

	// Parse log level
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.DisableStacktrace = true

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{Logger: logger}, nil
}

// ForInvocation tags every entry with a fresh id so the lines of one CLI run
// can be told apart from a concurrent one.
func (l *Logger) ForInvocation() *Logger {
	id := uuid.New().String()
	return &Logger{
		Logger:       l.With(zap.String("invocation_id", id)),
		InvocationID: id,
	}
}

func Nop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}
