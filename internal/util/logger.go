package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// LogLevel 日志级别
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
	LogLevelOff
)

// String 返回日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	case LogLevelOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel 解析日志级别字符串
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LogLevelDebug, nil
	case "INFO", "":
		return LogLevelInfo, nil
	case "WARN", "WARNING":
		return LogLevelWarn, nil
	case "ERROR":
		return LogLevelError, nil
	case "OFF":
		return LogLevelOff, nil
	default:
		return LogLevelInfo, fmt.Errorf("未知的日志级别: %s", s)
	}
}

func (l LogLevel) zerologLevel() zerolog.Level {
	switch l {
	case LogLevelDebug:
		return zerolog.DebugLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	case LogLevelWarn:
		return zerolog.WarnLevel
	case LogLevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.Disabled
	}
}

// UILogHook 界面激活时接收日志
type UILogHook func(level LogLevel, message string)

// LogManager 日志管理器
type LogManager struct {
	Level       LogLevel
	IsWriteFile bool
	LogFilePath string
	NoColor     bool

	logMutex   sync.Mutex
	console    zerolog.Logger
	file       io.WriteCloser
	fileLogger zerolog.Logger
	isUIActive atomic.Bool
	uiHook     atomic.Pointer[UILogHook]
}

// Logger 全局日志实例
var Logger *LogManager

func init() {
	Logger = NewLogManager(os.Stderr)
}

// NewLogManager 创建输出到 w 的日志管理器
func NewLogManager(w io.Writer) *LogManager {
	l := &LogManager{
		Level:       LogLevelInfo,
		IsWriteFile: true,
		fileLogger:  zerolog.Nop(),
	}
	l.SetConsoleOutput(w)
	return l
}

// SetConsoleOutput 设置控制台输出
func (l *LogManager) SetConsoleOutput(w io.Writer) {
	l.logMutex.Lock()
	defer l.logMutex.Unlock()
	l.console = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    l.NoColor,
		TimeFormat: "15:04:05.000",
	}).With().Timestamp().Logger()
}

// SetUIActive 界面激活后控制台不再输出，日志转给界面
func (l *LogManager) SetUIActive(active bool) {
	l.isUIActive.Store(active)
}

// SetUIHook 设置界面日志回调
func (l *LogManager) SetUIHook(hook UILogHook) {
	if hook == nil {
		l.uiHook.Store(nil)
		return
	}
	l.uiHook.Store(&hook)
}

// SetLogLevel 设置日志级别
func SetLogLevel(level LogLevel) {
	Logger.Level = level
}

// InitLogFile 初始化日志文件
func (l *LogManager) InitLogFile() error {
	if !l.IsWriteFile {
		return nil
	}

	var logDir string
	if l.LogFilePath != "" {
		logDir = filepath.Dir(l.LogFilePath)
	} else {
		exePath, err := os.Executable()
		if err != nil {
			logDir = "Logs"
		} else {
			logDir = filepath.Join(filepath.Dir(exePath), "Logs")
		}
	}

	if err := CreateDir(logDir); err != nil {
		return fmt.Errorf("创建日志目录失败: %w", err)
	}

	if l.LogFilePath == "" {
		now := time.Now()
		l.LogFilePath = filepath.Join(logDir, now.Format("2006-01-02_15-04-05-000")+".log")
		index := 1
		baseFileName := strings.TrimSuffix(l.LogFilePath, ".log")
		for FileExists(l.LogFilePath) {
			l.LogFilePath = fmt.Sprintf("%s-%d.log", baseFileName, index)
			index++
		}
	}

	file, err := os.OpenFile(l.LogFilePath, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("打开日志文件失败: %w", err)
	}

	now := time.Now()
	fmt.Fprintf(file, "LOG %s\n", now.Format("2006/01/02"))
	fmt.Fprintf(file, "Save Path: %s\n", filepath.Dir(l.LogFilePath))
	fmt.Fprintf(file, "Task Start: %s\n", now.Format("2006/01/02 15:04:05"))
	fmt.Fprintf(file, "Task CommandLine: %s\n\n", strings.Join(os.Args, " "))

	l.logMutex.Lock()
	defer l.logMutex.Unlock()
	l.file = file
	l.fileLogger = zerolog.New(zerolog.ConsoleWriter{
		Out:        file,
		NoColor:    true,
		TimeFormat: "15:04:05.000",
	}).With().Timestamp().Logger()
	return nil
}

// Close 关闭日志文件
func (l *LogManager) Close() error {
	l.logMutex.Lock()
	defer l.logMutex.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.fileLogger = zerolog.Nop()
	return err
}

func replaceVars(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func (l *LogManager) handleLog(level LogLevel, message string) {
	if level < l.Level {
		return
	}

	l.logMutex.Lock()
	console, fileLogger := l.console, l.fileLogger
	l.logMutex.Unlock()

	if l.isUIActive.Load() {
		if hook := l.uiHook.Load(); hook != nil {
			(*hook)(level, message)
		}
	} else {
		console.WithLevel(level.zerologLevel()).Msg(message)
	}

	if l.IsWriteFile {
		fileLogger.WithLevel(level.zerologLevel()).Msg(message)
	}
}

// Debug 输出调试日志
func (l *LogManager) Debug(format string, args ...interface{}) {
	l.handleLog(LogLevelDebug, replaceVars(format, args...))
}

// Info 输出信息日志
func (l *LogManager) Info(format string, args ...interface{}) {
	l.handleLog(LogLevelInfo, replaceVars(format, args...))
}

// Warn 输出警告日志
func (l *LogManager) Warn(format string, args ...interface{}) {
	l.handleLog(LogLevelWarn, replaceVars(format, args...))
}

// Error 输出错误日志
func (l *LogManager) Error(format string, args ...interface{}) {
	l.handleLog(LogLevelError, replaceVars(format, args...))
}

// Extra 仅写入文件的额外日志
func (l *LogManager) Extra(format string, args ...interface{}) {
	if !l.IsWriteFile {
		return
	}
	l.logMutex.Lock()
	fileLogger := l.fileLogger
	l.logMutex.Unlock()
	fileLogger.Debug().Str("tag", "EXTRA").Msg(replaceVars(format, args...))
}
