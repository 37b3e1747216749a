package diag

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 级别定义
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warn:
		return "warn"
	case Error:
		return "error"
	default:
		return "info"
	}
}

func (l Level) zap() zapcore.Level {
	switch l {
	case Debug:
		return zapcore.DebugLevel
	case Warn:
		return zapcore.WarnLevel
	case Error:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func parseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return Debug
	case "warn":
		return Warn
	case "error":
		return Error
	default:
		return Info
	}
}

// DefaultLogDir: 默认日志目录（相对工作目录）。
const DefaultLogDir = "logs"

// Logger 为结构化事件日志器：zap JSON 编码，写入轮转文件（失败时回落 stderr）。
// 事件字段：corr_id, comp, stage(start|finish|error|event), code, dur_ms, count, split, shard, kv。
// nil *Logger 为合法 no-op。
type Logger struct {
	z    *zap.Logger
	sink *RotatingFile
}

// NewLogger 通过配置的 level 初始化，并将日志写入 logs/ 目录，10MiB 轮转。
func NewLogger(corrID, level string) *Logger {
	return NewLoggerWithDir(corrID, level, "json", DefaultLogDir)
}

// NewLoggerWithDir 指定编码格式（json|console）与日志目录。
func NewLoggerWithDir(corrID, level, format, dir string) *Logger {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultLogDir
	}
	sink := NewRotatingFile(dir, 10*1024*1024)
	l := newLogger(corrID, level, format, &fallbackSyncer{primary: sink, backup: zapcore.Lock(os.Stderr)})
	l.sink = sink
	return l
}

// NewLoggerTo 将日志写入任意 WriteSyncer（测试/STDERR 场景）。
func NewLoggerTo(corrID, level string, ws zapcore.WriteSyncer) *Logger {
	return newLogger(corrID, level, "json", ws)
}

func newLogger(corrID, level, format string, ws zapcore.WriteSyncer) *Logger {
	var enc zapcore.Encoder
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		enc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "ts"
		ec.EncodeTime = zapcore.RFC3339TimeEncoder
		enc = zapcore.NewJSONEncoder(ec)
	}
	core := zapcore.NewCore(enc, ws, zap.NewAtomicLevelAt(parseLevel(level).zap()))
	z := zap.New(core)
	if corrID != "" {
		z = z.With(zap.String("corr_id", corrID))
	}
	return &Logger{z: z}
}

// WrapZap 以已有 zap.Logger 构造事件日志器（例如测试中的 zaptest）。
func WrapZap(z *zap.Logger) *Logger {
	if z == nil {
		return nil
	}
	return &Logger{z: z}
}

// Zap 返回底层 zap.Logger（nil 接收者返回 Nop）。
func (l *Logger) Zap() *zap.Logger {
	if l == nil || l.z == nil {
		return zap.NewNop()
	}
	return l.z
}

// Close 刷新并关闭日志文件。
func (l *Logger) Close() error {
	if l == nil || l.z == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.sink != nil {
		return l.sink.Close()
	}
	return nil
}

// event 以最小开销写出事件，遵循级别。
func (l *Logger) event(lv Level, comp, stage, msg string, fields ...zap.Field) {
	if l == nil || l.z == nil {
		return
	}
	ce := l.z.Check(lv.zap(), msg)
	if ce == nil {
		return
	}
	fs := make([]zap.Field, 0, len(fields)+2)
	fs = append(fs, zap.String("comp", comp), zap.String("stage", stage))
	fs = append(fs, fields...)
	ce.Write(fs...)
}

func scope(split, shard string) []zap.Field {
	var fs []zap.Field
	if split != "" {
		fs = append(fs, zap.String("split", split))
	}
	if shard != "" {
		fs = append(fs, zap.String("shard", shard))
	}
	return fs
}

func kvField(kv map[string]string) []zap.Field {
	if len(kv) == 0 {
		return nil
	}
	return []zap.Field{zap.Any("kv", kv)}
}

func durField(since *time.Time) []zap.Field {
	if since == nil {
		return nil
	}
	return []zap.Field{zap.Int64("dur_ms", time.Since(*since).Milliseconds())}
}

// Start 记录 start 事件；返回计时器用于 Finish。
func (l *Logger) Start(comp, msg string) *Timer {
	l.event(Info, comp, "start", msg)
	return &Timer{l: l, comp: comp, t0: time.Now()}
}

// StartWith 记录带 split/shard 的 start。
func (l *Logger) StartWith(comp, msg, split, shard string) *Timer {
	l.event(Info, comp, "start", msg, scope(split, shard)...)
	return &Timer{l: l, comp: comp, split: split, shard: shard, t0: time.Now()}
}

// StartWithKV 记录带 split/shard 与键值的 start。
func (l *Logger) StartWithKV(comp, msg, split, shard string, kv map[string]string) *Timer {
	l.event(Info, comp, "start", msg, append(scope(split, shard), kvField(kv)...)...)
	return &Timer{l: l, comp: comp, split: split, shard: shard, t0: time.Now()}
}

// Event 记录 info 级别的单点事件（例如分片封存）。
func (l *Logger) Event(comp, msg, split, shard string, kv map[string]string) {
	l.event(Info, comp, "event", msg, append(scope(split, shard), kvField(kv)...)...)
}

// Error 记录 error 事件。
func (l *Logger) Error(comp, code, msg string, durSince *time.Time) {
	l.event(Error, comp, "error", msg, append([]zap.Field{zap.String("code", code)}, durField(durSince)...)...)
}

// ErrorWith 支持 split/shard。
func (l *Logger) ErrorWith(comp, code, msg string, durSince *time.Time, split, shard string) {
	fs := append([]zap.Field{zap.String("code", code)}, durField(durSince)...)
	l.event(Error, comp, "error", msg, append(fs, scope(split, shard)...)...)
}

// ErrorWithKV 支持附带键值对（例如源行号、错误原文）。
func (l *Logger) ErrorWithKV(comp, code, msg string, durSince *time.Time, split, shard string, kv map[string]string) {
	fs := append([]zap.Field{zap.String("code", code)}, durField(durSince)...)
	fs = append(fs, scope(split, shard)...)
	l.event(Error, comp, "error", msg, append(fs, kvField(kv)...)...)
}

// InfoFinish 在已有起点的情况下记录 finish。
func (l *Logger) InfoFinish(comp, msg string, start time.Time, count int64) {
	l.event(Info, comp, "finish", msg, zap.Int64("dur_ms", time.Since(start).Milliseconds()), zap.Int64("count", count))
}

// DebugStart 输出调试级别的“start”类事件（仅在 level=debug 时生效）。
func (l *Logger) DebugStart(comp, msg, split, shard string, kv map[string]string) {
	l.event(Debug, comp, "start", msg, append(scope(split, shard), kvField(kv)...)...)
}

// Timer 用于 start→finish 计时。
type Timer struct {
	l     *Logger
	comp  string
	split string
	shard string
	t0    time.Time
}

// Finish 记录 finish；可选 count。
func (t *Timer) Finish(msg string, count int64) {
	if t == nil || t.l == nil {
		return
	}
	fs := []zap.Field{zap.Int64("dur_ms", time.Since(t.t0).Milliseconds()), zap.Int64("count", count)}
	t.l.event(Info, t.comp, "finish", msg, append(fs, scope(t.split, t.shard)...)...)
}

// Since 返回计时起点到现在的时长。
func (t *Timer) Since() time.Duration {
	if t == nil {
		return 0
	}
	return time.Since(t.t0)
}

// fallbackSyncer: 主 sink 写失败时回落到备份（stderr）。
type fallbackSyncer struct {
	primary zapcore.WriteSyncer
	backup  zapcore.WriteSyncer
}

func (f *fallbackSyncer) Write(p []byte) (int, error) {
	if n, err := f.primary.Write(p); err == nil {
		return n, nil
	}
	return f.backup.Write(p)
}

func (f *fallbackSyncer) Sync() error {
	if err := f.primary.Sync(); err != nil {
		return f.backup.Sync()
	}
	return nil
}

// LogPath 返回当前日志文件路径（便于终端提示）。
func LogPath(dir string) string {
	if dir == "" {
		dir = DefaultLogDir
	}
	return filepath.Join(dir, currentName)
}
