package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zerolog.Logger with service and component context.
type Logger struct {
	logger  zerolog.Logger
	service string
}

// New creates a logger from configuration. A nil config uses defaults.
func New(cfg *Config, serviceName string) *Logger {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	c.ApplyDefaults()

	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	out := writerFor(&c)
	var zl zerolog.Logger
	if strings.EqualFold(c.Format, "console") {
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
			NoColor:    c.NoColor || isFile(c.Output),
		})
	} else {
		zl = zerolog.New(out)
	}
	zl = zl.Level(level)

	zctx := zl.With()
	if c.Timestamp {
		zctx = zctx.Timestamp()
	}
	if c.Caller {
		zctx = zctx.Caller()
	}
	if serviceName != "" {
		zctx = zctx.Str("service", serviceName)
	}
	return &Logger{logger: zctx.Logger(), service: serviceName}
}

// NewDefault creates a console logger at info level.
func NewDefault(serviceName string) *Logger {
	return New(&Config{Level: "info", Format: "console", Output: "stdout"}, serviceName)
}

// NewWriter creates a JSON logger writing to w. Used by tests to capture output.
func NewWriter(w io.Writer, level string) *Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.DebugLevel
	}
	return &Logger{logger: zerolog.New(w).Level(lvl)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// Service returns the service name the logger was created with.
func (l *Logger) Service() string { return l.service }

// WithComponent returns a logger tagged with a component name.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{logger: l.logger.With().Str(FieldComponent, name).Logger(), service: l.service}
}

// WithFields returns a logger with additional fields.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	zc := l.logger.With()
	for k, v := range fields {
		zc = zc.Interface(k, v)
	}
	return &Logger{logger: zc.Logger(), service: l.service}
}

// WithError returns a logger with an error field.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger(), service: l.service}
}

// Zerolog returns the underlying zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.logger }

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	emit(l.logger.Debug(), msg, fields)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	emit(l.logger.Info(), msg, fields)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	emit(l.logger.Warn(), msg, fields)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	emit(l.logger.Error(), msg, fields)
}

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(msg string, fields ...map[string]interface{}) {
	emit(l.logger.Fatal(), msg, fields)
}

// --- Global logger ---

var globalLogger *Logger

// Init builds the global logger from config.
func Init(cfg Config, serviceName string) *Logger {
	globalLogger = New(&cfg, serviceName)
	return globalLogger
}

// SetGlobalLogger sets the global logger instance.
func SetGlobalLogger(l *Logger) { globalLogger = l }

// GetGlobalLogger returns the global logger, creating a default one if needed.
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		globalLogger = NewDefault("glowbook")
	}
	return globalLogger
}

func Debug(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Debug(msg, fields...) }

func Info(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Info(msg, fields...) }

func Warn(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Warn(msg, fields...) }

func Error(msg string, fields ...map[string]interface{}) { GetGlobalLogger().Error(msg, fields...) }

// WithComponent returns a component-tagged logger from the global logger.
func WithComponent(name string) *Logger {
	return GetGlobalLogger().WithComponent(name)
}

func emit(event *zerolog.Event, msg string, fields []map[string]interface{}) {
	for _, fm := range fields {
		for k, v := range fm {
			if err, ok := v.(error); ok {
				event.Str(k, err.Error())
				continue
			}
			event.Interface(k, v)
		}
	}
	event.Msg(msg)
}

func isFile(output string) bool {
	switch strings.ToLower(output) {
	case "stdout", "stderr", "":
		return false
	}
	return true
}

func writerFor(cfg *Config) io.Writer {
	switch strings.ToLower(cfg.Output) {
	case "stdout", "":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
		LocalTime:  cfg.LocalTime,
	}
}

// String implements fmt.Stringer for debugging.
func (l *Logger) String() string {
	return fmt.Sprintf("logger(%s)", l.service)
}
