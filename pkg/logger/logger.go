package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// Level представляет уровень логирования.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String возвращает строковое представление уровня.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case INFO:
		return zerolog.InfoLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel парсит уровень логирования из строки.
func ParseLevel(level string) Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Logger wraps a zerolog.Logger behind the call shape the rest of the
// codebase is written against (Info(msg, key, val, ...), WithField, etc.),
// so call sites read the same no matter which structured-logging backend
// sits underneath.
type Logger struct {
	zl     zerolog.Logger
	level  Level
	file   *os.File
	fields map[string]interface{}
}

// New создает новый логгер.
func New(level Level, format string, output string) (*Logger, error) {
	var writer io.Writer
	var file *os.File

	switch output {
	case "", "stdout":
		writer = os.Stdout
	case "stderr":
		writer = os.Stderr
	default:
		dir := filepath.Dir(output)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writer = f
	}

	if format != "json" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "2006-01-02 15:04:05"}
	}

	zl := zerolog.New(writer).With().Timestamp().Caller().Logger().Level(level.zerolog())

	return &Logger{
		zl:     zl,
		level:  level,
		file:   file,
		fields: make(map[string]interface{}),
	}, nil
}

// Close закрывает логгер.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// WithFields создает новый логгер с дополнительными полями.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	ctx := l.zl.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}

	return &Logger{
		zl:     ctx.Logger(),
		level:  l.level,
		file:   l.file,
		fields: merged,
	}
}

// WithField создает новый логгер с одним дополнительным полем.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// SetLevel устанавливает уровень логирования.
func (l *Logger) SetLevel(level Level) {
	l.level = level
	l.zl = l.zl.Level(level.zerolog())
}

// SetCaller включает/выключает вывод информации о вызывающем коде. Kept for
// call-site compatibility; zerolog's caller hook is fixed at construction.
func (l *Logger) SetCaller(enable bool) {}

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	event := l.zl.WithLevel(level.zerolog())
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		event = event.Interface(key, fields[i+1])
	}
	event.Msg(msg)
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.log(DEBUG, msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.log(INFO, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.log(WARN, msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }
func (l *Logger) Fatal(msg string, fields ...interface{}) { l.log(FATAL, msg, fields...) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(DEBUG, fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(INFO, fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(WARN, fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(ERROR, fmt.Sprintf(format, args...)) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.log(FATAL, fmt.Sprintf(format, args...)) }

// DefaultLogger глобальный логгер по умолчанию.
var DefaultLogger *Logger

// InitDefaultLogger инициализирует логгер по умолчанию.
func InitDefaultLogger(level Level, format string, output string) error {
	l, err := New(level, format, output)
	if err != nil {
		return err
	}
	DefaultLogger = l
	return nil
}

func Debug(msg string, fields ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Debug(msg, fields...)
	}
}

func Info(msg string, fields ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Info(msg, fields...)
	}
}

func Warn(msg string, fields ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Warn(msg, fields...)
	}
}

func Error(msg string, fields ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Error(msg, fields...)
	}
}

func Fatal(msg string, fields ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Fatal(msg, fields...)
	}
}

func Debugf(format string, args ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Debugf(format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Infof(format, args...)
	}
}

func Warnf(format string, args ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Warnf(format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Errorf(format, args...)
	}
}

func Fatalf(format string, args ...interface{}) {
	if DefaultLogger != nil {
		DefaultLogger.Fatalf(format, args...)
	}
}
