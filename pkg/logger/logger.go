// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()

	// 添加请求ID
	if reqID, ok := ctx.Value("request_id").(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// EngineLogger 排班引擎专用日志器
type EngineLogger struct {
	base *zerolog.Logger
}

// NewEngineLogger 创建排班引擎日志器
func NewEngineLogger(component string) *EngineLogger {
	l := Get().With().Str("component", component).Logger()
	return &EngineLogger{base: &l}
}

// StartGeneration 记录排班生成开始
func (l *EngineLogger) StartGeneration(locationID string, staff, days int) {
	l.base.Info().
		Str("location_id", locationID).
		Int("staff", staff).
		Int("days", days).
		Msg("开始生成排班")
}

// GenerationComplete 记录排班生成完成
func (l *EngineLogger) GenerationComplete(locationID string, duration time.Duration, filled, conflicts int) {
	l.base.Info().
		Str("location_id", locationID).
		Dur("duration", duration).
		Int("filled", filled).
		Int("conflicts", conflicts).
		Msg("排班生成完成")
}

// SlotsResolved 记录班型展开结果
func (l *EngineLogger) SlotsResolved(locationID, startDate, endDate string, count int) {
	l.base.Debug().
		Str("location_id", locationID).
		Str("start_date", startDate).
		Str("end_date", endDate).
		Int("slots", count).
		Msg("班型展开完成")
}

// ReserveRejected 记录工作量预占被拒
func (l *EngineLogger) ReserveRejected(staffID, date, reason string) {
	l.base.Debug().
		Str("staff_id", staffID).
		Str("date", date).
		Str("reason", reason).
		Msg("工作量预占被拒")
}

// SwapCommitted 记录换班提交
func (l *EngineLogger) SwapCommitted(slotID, fromStaff, toStaff string) {
	l.base.Info().
		Str("slot_id", slotID).
		Str("from", fromStaff).
		Str("to", toStaff).
		Msg("换班已提交")
}

// OverworkDecided 记录加班申请审批
func (l *EngineLogger) OverworkDecided(requestID, status string) {
	l.base.Info().
		Str("request_id", requestID).
		Str("status", status).
		Msg("加班申请已审批")
}
