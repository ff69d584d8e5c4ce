package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel определяет уровни логирования
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel разбирает имя уровня из конфигурации. Неизвестное имя даёт INFO.
func ParseLevel(name string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TRACE":
		return TRACE
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Options параметры файлового вывода и уровней
type Options struct {
	Dir          string
	ConsoleLevel LogLevel
	FileLevel    LogLevel
	MaxSizeMB    int
	MaxBackups   int
	MaxAgeDays   int
	Console      io.Writer // nil = os.Stdout
	DisableFile  bool
}

// DefaultOptions возвращает настройки по умолчанию: консоль INFO+, файл всё
func DefaultOptions() Options {
	return Options{
		Dir:          "logs",
		ConsoleLevel: INFO,
		FileLevel:    TRACE,
		MaxSizeMB:    20,
		MaxBackups:   5,
		MaxAgeDays:   14,
	}
}

// Logger представляет логгер компонента
type Logger struct {
	component       string
	prefix          string
	consoleLogger   *log.Logger
	fileLogger      *log.Logger
	file            io.Closer
	minConsoleLevel LogLevel
	minFileLevel    LogLevel
	owner           bool
}

var (
	optsMu      sync.RWMutex
	currentOpts = DefaultOptions()

	defaultMu     sync.RWMutex
	defaultLogger = &Logger{
		component:       "default",
		consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
		minConsoleLevel: INFO,
		minFileLevel:    ERROR,
	}
)

// Configure задаёт параметры для логгеров, созданных после вызова
func Configure(opts Options) {
	optsMu.Lock()
	defer optsMu.Unlock()
	currentOpts = opts
}

func options() Options {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return currentOpts
}

// NewLogger создаёт логгер компонента с ротацией файла logs/<component>.log
func NewLogger(component string) (*Logger, error) {
	opts := options()

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	l := &Logger{
		component:       component,
		consoleLogger:   log.New(console, "", log.LstdFlags),
		minConsoleLevel: opts.ConsoleLevel,
		minFileLevel:    opts.FileLevel,
		owner:           true,
	}

	if opts.DisableFile {
		return l, nil
	}

	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории %s: %w", opts.Dir, err)
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, component+".log"),
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	l.fileLogger = log.New(rotator, "", log.LstdFlags|log.Lmicroseconds)
	l.file = rotator

	return l, nil
}

// With возвращает логгер с дополнительным префиксом, разделяющий вывод родителя
func (l *Logger) With(prefix string) *Logger {
	child := *l
	child.prefix = l.prefix + "[" + prefix + "] "
	child.owner = false
	return &child
}

// Close закрывает файловый вывод логгера
func (l *Logger) Close() error {
	if l == nil || l.file == nil || !l.owner {
		return nil
	}
	return l.file.Close()
}

// Trace логирует сообщение уровня TRACE
func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO
func (l *Logger) Info(format string, args ...interface{}) { l.log(INFO, format, args...) }

// Warn логирует сообщение уровня WARN
func (l *Logger) Warn(format string, args ...interface{}) { l.log(WARN, format, args...) }

// Error логирует сообщение уровня ERROR
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if l == nil {
		return
	}

	message := fmt.Sprintf("[%s] [%s] %s%s", level.String(), l.component, l.prefix, fmt.Sprintf(format, args...))

	if l.fileLogger != nil && level >= l.minFileLevel {
		l.fileLogger.Println(message)
	}
	if l.consoleLogger != nil && level >= l.minConsoleLevel {
		l.consoleLogger.Println(message)
	}
}

// InitDefaultLogger инициализирует глобальный логгер процесса
func InitDefaultLogger(component string) error {
	logger, err := NewLogger(component)
	if err != nil {
		return err
	}

	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
	return nil
}

// CloseDefaultLogger закрывает глобальный логгер и все логгеры компонентов
func CloseDefaultLogger() {
	defaultMu.RLock()
	logger := defaultLogger
	defaultMu.RUnlock()

	_ = logger.Close()
	_ = GetLoggerManager().CloseAll()
}

func current() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// Trace логирует сообщение уровня TRACE в глобальный логгер
func Trace(format string, args ...interface{}) { current().log(TRACE, format, args...) }

// Debug логирует сообщение уровня DEBUG в глобальный логгер
func Debug(format string, args ...interface{}) { current().log(DEBUG, format, args...) }

// Info логирует сообщение уровня INFO в глобальный логгер
func Info(format string, args ...interface{}) { current().log(INFO, format, args...) }

// Warn логирует сообщение уровня WARN в глобальный логгер
func Warn(format string, args ...interface{}) { current().log(WARN, format, args...) }

// Error логирует сообщение уровня ERROR в глобальный логгер
func Error(format string, args ...interface{}) { current().log(ERROR, format, args...) }
