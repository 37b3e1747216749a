package contract

import (
	"errors"
	"path/filepath"
	"testing"
)

// TestNormalizeSource 验证输入源路径规范化逻辑。
func TestNormalizeSource(t *testing.T) {
	wpath := filepath.Join("a", "b", "c.jsonl.zst")
	basicCases := map[string]string{
		wpath:      "a/b/c.jsonl.zst",
		"./x/../y": "y",
		"":         ".",
		"-":        "-",
	}
	for in, want := range basicCases {
		got := NormalizeSource(in)
		if got != want {
			t.Fatalf("基础测试 %s -> %s, 预期 %s", in, got, want)
		}
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Windows路径", "C:\\data\\train.jsonl.zst", "C:/data/train.jsonl.zst"},
		{"清理多余斜杠", "assets//data///test.jsonl", "assets/data/test.jsonl"},
		{"处理父目录", "assets/tmp/../data/train.jsonl", "assets/data/train.jsonl"},
		{"混合分隔符", "assets\\data/train.jsonl", "assets/data/train.jsonl"},
		{"Unix绝对路径", "/srv/../data/train.jsonl", "/data/train.jsonl"},
		{"单个点", ".", "."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeSource(tt.input); got != tt.expected {
				t.Errorf("NormalizeSource(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

// TestValidateSplitName 覆盖合法与越界分区名。
func TestValidateSplitName(t *testing.T) {
	ok := []SplitName{"train", "test", "validation-v2", "中文"}
	for _, n := range ok {
		if err := ValidateSplitName(n); err != nil {
			t.Fatalf("%q 应合法: %v", n, err)
		}
	}
	bad := []SplitName{"", " ", ".", "..", "a/b", "a\\b", "c:", " train", "a\nb"}
	for _, n := range bad {
		if err := ValidateSplitName(n); !errors.Is(err, ErrPathInvalid) {
			t.Fatalf("%q 应返回 ErrPathInvalid, got %v", n, err)
		}
	}
}

// TestNewChatRecordOrder 验证角色顺序与内容映射。
func TestNewChatRecordOrder(t *testing.T) {
	rec := NewChatRecord("sys", "Q1", "S1")
	if err := ValidateChatRecord(rec); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := []Message{{RoleSystem, "sys"}, {RoleUser, "Q1"}, {RoleAssistant, "S1"}}
	for i, m := range rec.Messages {
		if m != want[i] {
			t.Fatalf("message %d = %+v, want %+v", i, m, want[i])
		}
	}
}

// TestValidateChatRecordErrors 覆盖各类错误分支。
func TestValidateChatRecordErrors(t *testing.T) {
	cases := []struct {
		name string
		rec  ChatRecord
	}{
		{"empty", ChatRecord{}},
		{"two", ChatRecord{Messages: []Message{{RoleSystem, "a"}, {RoleUser, "b"}}}},
		{"swapped", ChatRecord{Messages: []Message{{RoleSystem, "a"}, {RoleAssistant, "b"}, {RoleUser, "c"}}}},
		{"unknown role", ChatRecord{Messages: []Message{{"tool", "a"}, {RoleUser, "b"}, {RoleAssistant, "c"}}}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateChatRecord(tt.rec); !errors.Is(err, ErrInvariantViolation) {
				t.Fatalf("want ErrInvariantViolation got %v", err)
			}
		})
	}
}

// TestSummaryPaths 验证路径按序导出。
func TestSummaryPaths(t *testing.T) {
	s := SplitSummary{Shards: []ShardInfo{{Ordinal: 1, Path: "a"}, {Ordinal: 2, Path: "b"}}}
	p := s.Paths()
	if len(p) != 2 || p[0] != "a" || p[1] != "b" {
		t.Fatalf("paths = %v", p)
	}
	if len(SplitSummary{}.Paths()) != 0 {
		t.Fatalf("空汇总应返回空切片")
	}
}

// BenchmarkNormalizeSource 性能基准测试
func BenchmarkNormalizeSource(b *testing.B) {
	testPaths := []string{
		"C:\\Users\\test\\data\\train.jsonl.zst",
		"assets/data/../data/test.jsonl",
		"path//to///many////slashes/file.jsonl",
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, p := range testPaths {
			NormalizeSource(p)
		}
	}
}
