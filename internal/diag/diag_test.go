package diag

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"sqlft/pkg/contract"
)

func decodeEvents(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m), "line: %s", sc.Text())
		out = append(out, m)
	}
	return out
}

// UT-DIAG-01: 日志轮转写入
func TestRotatingFile(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 30)
	_, err := w.Write([]byte("first line that is very long\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())

	ents, err := os.ReadDir(dir)
	require.NoError(t, err)
	hasCurrent, hasRotated := false, false
	for _, e := range ents {
		if e.Name() == currentName {
			hasCurrent = true
		} else if strings.HasPrefix(e.Name(), "sqlft-") && strings.HasSuffix(e.Name(), ".txt") {
			hasRotated = true
		}
	}
	assert.True(t, hasCurrent)
	assert.True(t, hasRotated)
}

func TestRotatingFileDefaultsAndRotateNoOpen(t *testing.T) {
	dir := t.TempDir()
	w := NewRotatingFile(dir, 0)
	assert.EqualValues(t, 10*1024*1024, w.maxBytes)
	_, err := w.Write([]byte("a\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	// f==nil 时 rotate 仅重新打开
	require.NoError(t, w.rotate())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
}

// UT-DIAG-02: 结构化事件字段
func TestLoggerEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo("corr-1", "debug", zapcore.AddSync(&buf))

	tm := l.StartWith("writer", "open shard", "train", "train_transformed_chunk_1.jsonl")
	tm.Finish("sealed", 3)
	l.Event("writer", "shard sealed", "train", "x.jsonl", map[string]string{"bytes": "42"})
	start := time.Now().Add(-5 * time.Millisecond)
	l.ErrorWithKV("pipeline", string(CodeTransform), "missing field", &start, "test", "", map[string]string{"line": "2"})
	l.DebugStart("source", "open", "test", "", nil)
	l.InfoFinish("pipeline", "done", time.Now(), 7)

	ev := decodeEvents(t, &buf)
	require.Len(t, ev, 6)
	assert.Equal(t, "corr-1", ev[0]["corr_id"])
	assert.Equal(t, "writer", ev[0]["comp"])
	assert.Equal(t, "start", ev[0]["stage"])
	assert.Equal(t, "train", ev[0]["split"])
	assert.Equal(t, "train_transformed_chunk_1.jsonl", ev[0]["shard"])
	assert.Equal(t, "finish", ev[1]["stage"])
	assert.EqualValues(t, 3, ev[1]["count"])
	assert.Equal(t, "event", ev[2]["stage"])
	assert.Equal(t, map[string]any{"bytes": "42"}, ev[2]["kv"])
	assert.Equal(t, "error", ev[3]["level"])
	assert.Equal(t, "transform", ev[3]["code"])
	assert.Contains(t, ev[3], "dur_ms")
	assert.Equal(t, "debug", ev[4]["level"])
	assert.EqualValues(t, 7, ev[5]["count"])
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo("", "warn", zapcore.AddSync(&buf))
	l.Start("comp", "msg").Finish("ok", 1)
	l.DebugStart("comp", "msg", "", "", nil)
	assert.Zero(t, buf.Len())
	l.Error("comp", "io", "boom", nil)
	ev := decodeEvents(t, &buf)
	require.Len(t, ev, 1)
	assert.NotContains(t, ev[0], "corr_id")
}

func TestLoggerNilSafe(t *testing.T) {
	var l *Logger
	tm := l.Start("comp", "msg")
	tm.Finish("ok", 1)
	l.Error("comp", "code", "msg", nil)
	l.Event("comp", "msg", "", "", nil)
	assert.NoError(t, l.Close())
	assert.NotNil(t, l.Zap())

	var tnil *Timer
	tnil.Finish("x", 0)
	assert.Zero(t, tnil.Since())
}

func TestLoggerWithDir(t *testing.T) {
	dir := t.TempDir()
	l := NewLoggerWithDir("corr", "info", "json", dir)
	l.Start("comp", "msg").Finish("ok", 1)
	require.NoError(t, l.Close())
	b, err := os.ReadFile(LogPath(dir))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"corr_id":"corr"`)
}

func TestLoggerConsoleFormat(t *testing.T) {
	dir := t.TempDir()
	l := NewLoggerWithDir("", "info", "console", dir)
	l.Event("comp", "hello", "train", "", nil)
	require.NoError(t, l.Close())
	b, err := os.ReadFile(filepath.Join(dir, currentName))
	require.NoError(t, err)
	assert.Contains(t, string(b), "hello")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(string(b)), "{"))
}

type failWS struct{}

func (failWS) Write([]byte) (int, error) { return 0, errors.New("disk full") }
func (failWS) Sync() error               { return errors.New("disk full") }

func TestFallbackSyncer(t *testing.T) {
	var buf bytes.Buffer
	f := &fallbackSyncer{primary: failWS{}, backup: zapcore.AddSync(&buf)}
	n, err := f.Write([]byte("x\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "x\n", buf.String())
	assert.NoError(t, f.Sync())
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "warn", Warn.String())
	assert.Equal(t, "info", Level(12345).String())
	assert.Equal(t, Debug, parseLevel(" DEBUG "))
	assert.Equal(t, Info, parseLevel("bogus"))
}

// UT-DIAG-03: 错误分类
func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeUnknown},
		{context.Canceled, CodeCancel},
		{fmt.Errorf("wrap: %w", context.DeadlineExceeded), CodeCancel},
		{fmt.Errorf("%w: x", contract.ErrSourceUnavailable), CodeSource},
		{fmt.Errorf("line 3: %w", contract.ErrSourceCorrupt), CodeSource},
		{fmt.Errorf("line 2: %w: sql", contract.ErrMissingField), CodeTransform},
		{contract.ErrInvariantViolation, CodeInvariant},
		{contract.ErrPathInvalid, CodeIO},
		{&fs.PathError{Op: "write", Path: "/", Err: errors.New("x")}, CodeIO},
		{fmt.Errorf("shard seal: %w", &os.LinkError{Op: "rename", Old: "a", New: "b", Err: errors.New("x")}), CodeIO},
		{fmt.Errorf("shard append: %w", contract.ErrInvariantViolation), CodeInvariant},
		{errors.New("other"), CodeUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.err), "%v", c.err)
	}
}

// UT-DIAG-04: 指标计数与 textfile 导出
func TestMetrics(t *testing.T) {
	before := testutil.ToFloat64(recordsTotal.WithLabelValues("metrics-test"))
	AddRecords("metrics-test", 5)
	AddRecords("metrics-test", 0)
	assert.Equal(t, before+5, testutil.ToFloat64(recordsTotal.WithLabelValues("metrics-test")))

	ObserveShard("metrics-test", 1024)
	assert.Equal(t, float64(1), testutil.ToFloat64(shardsTotal.WithLabelValues("metrics-test")))

	SplitOutcome("metrics-test", false)
	assert.Equal(t, float64(1), testutil.ToFloat64(splitTotal.WithLabelValues("metrics-test", "error")))

	IncOp("comp", "stage", "success")
	IncError("comp", "io")
	ObserveDuration("comp", "stage", 12)

	path := filepath.Join(t.TempDir(), "sqlft.prom")
	require.NoError(t, WriteTextfile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `sqlft_records_total{split="metrics-test"}`)
	assert.Contains(t, string(b), "sqlft_shard_bytes_bucket")
}

// UT-DIAG-05: 终端（非 TTY）关键节点输出
func TestTerminalNonTTYFlow(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	require.False(t, term.isTTY)

	term.RunStart(2, 2)
	term.SplitStart("train", "data/train.jsonl.zst")
	term.SplitProgress("train", 10) // 非 TTY：不输出进度
	term.ShardSealed("out/train/train_transformed_chunk_1.jsonl", 3*1024*1024/2)
	term.SplitFinish(true, "train", "out/train", "", 5100*time.Millisecond)
	term.SplitFinish(false, "test", "out/test", "source unavailable", time.Second)
	term.RunFinish(false, 41300*time.Millisecond)

	out := sb.String()
	assert.NotContains(t, out, "\r")
	assert.Contains(t, out, "[run] 并发=2 | splits=2")
	assert.Contains(t, out, "[split] train <- train.jsonl.zst")
	assert.Contains(t, out, "[shard] out/train/train_transformed_chunk_1.jsonl | 1.50 MiB")
	assert.Contains(t, out, "[ok] split train -> out/train | 用时 5.1s")
	assert.Contains(t, out, "[fail] split test: source unavailable")
	assert.Contains(t, out, "[fail] 全部完成 | splits 2 (失败 1) | 分片 1 | 总用时 41.3s")
}

// UT-DIAG-06: 终端（TTY）进度节流与清尾
func TestTerminalTTYProgressThrottleAndClear(t *testing.T) {
	var sb strings.Builder
	term := NewTerminal(&sb, true)
	term.isTTY = true
	term.RunStart(1, 1)

	term.SplitProgress("train", 1)
	first := sb.String()
	require.Contains(t, first, "\r[split] train | 记录 1")
	term.SplitProgress("train", 2)
	assert.Equal(t, first, sb.String(), "second progress should be throttled")
	time.Sleep(120 * time.Millisecond)
	term.SplitProgress("train", 3)
	third := sb.String()
	assert.Greater(t, len(third), len(first))

	term.ShardSealed("a.jsonl", 10)
	final := sb.String()
	idx := strings.LastIndex(final, "[shard]")
	require.GreaterOrEqual(t, idx, 0)
	seg := final[:idx]
	cr := strings.LastIndex(seg[:len(seg)-1], "\r")
	require.GreaterOrEqual(t, cr, 0)
	assert.Contains(t, seg[cr:], " ", "clear tail should write spaces after CR")
}

type flakyWriter struct{ fail bool }

func (w *flakyWriter) Write(p []byte) (int, error) {
	if w.fail {
		w.fail = false
		return 0, fmt.Errorf("boom")
	}
	return len(p), nil
}

func TestTerminalDisableOnWriteError(t *testing.T) {
	term := NewTerminal(&flakyWriter{fail: true}, true)
	term.isTTY = false
	term.RunStart(1, 1)
	assert.False(t, term.enabled)
	term.SplitStart("a", "b")
	term.ShardSealed("a", 0)
	term.SplitFinish(true, "a", "b", "", 0)
	term.RunFinish(true, 0)
}

func TestTerminalInlineWriteError(t *testing.T) {
	term := NewTerminal(&flakyWriter{fail: true}, true)
	term.isTTY = true
	term.SplitProgress("a", 1)
	assert.False(t, term.enabled)
}

func TestTerminalNilReceiverNoop(t *testing.T) {
	var tn *Terminal
	tn.RunStart(1, 1)
	tn.SplitStart("a", "b")
	tn.SplitProgress("a", 0)
	tn.ShardSealed("a", 0)
	tn.SplitFinish(true, "a", "b", "", 0)
	tn.RunFinish(true, 0)
}

func TestNewTerminalCIEnv(t *testing.T) {
	t.Setenv("CI", "true")
	var sb strings.Builder
	assert.False(t, NewTerminal(&sb, true).isTTY)
}

func TestHelpers(t *testing.T) {
	assert.NotEmpty(t, shortenBase("/x/y/这是一个很长的文件名用于截断测试abcdefghijk.txt", 10))
	assert.Empty(t, shortenBase("x", 0))
	assert.Equal(t, "a b c", safe("a\nb\rc"))
	assert.Equal(t, "0ms", formatDur(0))
	assert.Equal(t, "1.5s", formatDur(1500*time.Millisecond))
	assert.Equal(t, "190.00 MiB", formatMiB(190*1024*1024))

	SetTerminal(nil)
	assert.Nil(t, GetTerminal())
	SetTerminal(NewTerminal(os.Stderr, false))
	assert.NotNil(t, GetTerminal())
	SetTerminal(nil)
}

func TestWrapZap(t *testing.T) {
	assert.Nil(t, WrapZap(nil))
	l := WrapZap(zaptest.NewLogger(t))
	require.NotNil(t, l)
	l.Start("comp", "msg").Finish("ok", 1)
	l.Event("comp", "msg", "train", "", nil)
}
