package logging

import (
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
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

// Logger is one component's logger: a console sink and an optional
// file sink, each independently gated by a minimum level so a noisy
// component can be quieted on the console without losing its file
// history (and vice versa).
type Logger struct {
	component string

	consoleLogger *log.Logger
	fileLogger    *log.Logger
	file          *os.File

	minConsoleLevel LogLevel
	minFileLevel    LogLevel
}

// defaultLogger backs MustGetLogger's fallback path when a component
// logger fails to open its log file; it only ever writes to stdout.
var defaultLogger = &Logger{
	consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
	minConsoleLevel: INFO,
	minFileLevel:    ERROR,
}

// Глобальный экземпляр логгера, used by the package-level LogXxx
// helpers below.
var globalLogger *Logger

// NewLogger creates a component logger writing to both stdout and a
// per-run timestamped file under logs/<component>_<timestamp>.log.
func NewLogger(component string) (*Logger, error) {
	if err := os.MkdirAll("logs", 0755); err != nil {
		return nil, fmt.Errorf("creating logs directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join("logs", fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("creating log file: %w", err)
	}

	return &Logger{
		component:       component,
		consoleLogger:   log.New(os.Stdout, "", log.LstdFlags),
		fileLogger:      log.New(file, "", log.LstdFlags),
		file:            file,
		minConsoleLevel: INFO,
		minFileLevel:    TRACE,
	}, nil
}

// Close releases the logger's file handle, if it has one.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.minConsoleLevel && level < l.minFileLevel {
		return
	}
	message := fmt.Sprintf("[%s] %s: %s", level, l.component, fmt.Sprintf(format, args...))
	if l.fileLogger != nil && level >= l.minFileLevel {
		l.fileLogger.Println(message)
	}
	if l.consoleLogger != nil && level >= l.minConsoleLevel {
		l.consoleLogger.Println(message)
	}
}

func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// InitLogger initializes the package-level global logger used by the
// LogXxx free functions below.
func InitLogger() error {
	logger, err := NewLogger("server")
	if err != nil {
		return err
	}
	globalLogger = logger
	return nil
}

// CloseLogger закрывает систему логирования
func CloseLogger() {
	if globalLogger != nil {
		globalLogger.Close()
	}
}

// LogTrace логирует сообщение уровня TRACE
func LogTrace(format string, args ...interface{}) {
	logMessage(TRACE, format, args...)
}

// LogDebug логирует сообщение уровня DEBUG
func LogDebug(format string, args ...interface{}) {
	logMessage(DEBUG, format, args...)
}

// LogInfo логирует сообщение уровня INFO
func LogInfo(format string, args ...interface{}) {
	logMessage(INFO, format, args...)
}

// LogWarn логирует сообщение уровня WARN
func LogWarn(format string, args ...interface{}) {
	logMessage(WARN, format, args...)
}

// LogError логирует сообщение уровня ERROR
func LogError(format string, args ...interface{}) {
	logMessage(ERROR, format, args...)
}

// Debug, Info, Warn и Error — короткие синонимы LogDebug, LogInfo, LogWarn и LogError
func Debug(format string, args ...interface{}) { logMessage(DEBUG, format, args...) }
func Info(format string, args ...interface{})  { logMessage(INFO, format, args...) }
func Warn(format string, args ...interface{})  { logMessage(WARN, format, args...) }
func Error(format string, args ...interface{}) { logMessage(ERROR, format, args...) }

// logMessage внутренняя функция для логирования
func logMessage(level LogLevel, format string, args ...interface{}) {
	if globalLogger == nil {
		return
	}

	message := fmt.Sprintf("[%s] %s", level.String(), fmt.Sprintf(format, args...))

	// Логируем в файл все уровни
	globalLogger.fileLogger.Println(message)

	// Логируем в консоль только INFO и выше
	if level >= INFO {
		globalLogger.consoleLogger.Println(message)
	}
}

// LogMessage логирует детали protobuf сообщения с hex дампом
func LogMessage(connID string, direction string, msgType interface{}, payload []byte) {
	LogDebug("=== %s MESSAGE %s ===", direction, connID)
	LogDebug("Type: %v", msgType)
	LogDebug("Size: %d bytes", len(payload))

	if len(payload) > 0 {
		LogDebug("Hex dump:")
		LogDebug("%s", HexDump(payload))
	}
}

// HexDump создает hex дамп данных
func HexDump(data []byte) string {
	if len(data) == 0 {
		return "No data"
	}

	// Ограничиваем размер дампа до 256 байт
	size := len(data)
	if size > 256 {
		size = 256
	}

	return hex.Dump(data[:size])
}

// LogProtocolError логирует ошибки десериализации протокола
func LogProtocolError(connID string, err error, data []byte) {
	LogError("Protocol error from %s: %v", connID, err)
	if len(data) > 0 {
		LogError("Raw data (%d bytes):", len(data))
		LogError("%s", HexDump(data))
	}
}

// LogEntityMovement логирует движение сущности
func LogEntityMovement(entityID uint64, fromX, fromY, toX, toY float64, direction int) {
	LogTrace("Entity %d movement: (%.2f,%.2f) -> (%.2f,%.2f) dir:%d",
		entityID, fromX, fromY, toX, toY, direction)
}

// LogChunkRequest логирует запрос чанка
func LogChunkRequest(connID string, chunkX, chunkY int) {
	LogDebug("Chunk request from %s: chunk(%d,%d)", connID, chunkX, chunkY)
}

// LogChunkData логирует отправку данных чанка
func LogChunkData(connID string, chunkX, chunkY int, blockCount int) {
	LogDebug("Chunk data sent to %s: chunk(%d,%d) with %d blocks",
		connID, chunkX, chunkY, blockCount)
}
