package chat

import (
	"context"
	"fmt"
	"os"

	"sqlft/pkg/contract"
)

// Options 为 chat Transformer 的最小配置。
// - InlineSystemText / SystemTextPath: system 指令（二选一，均为空时使用内置默认文本）。
type Options struct {
	InlineSystemText string `json:"inline_system_text"`
	SystemTextPath   string `json:"system_text_path"`
}

// Transformer: 以固定 system 指令包装 (query, sql) 为三轮 ChatRecord。
// 运行期不做 I/O；指令文本在构造期确定，之后只读。
type Transformer struct {
	system string
}

// New 创建 chat Transformer。
func New(opts *Options) (*Transformer, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	sys := defaultSystemText
	if o.InlineSystemText != "" {
		sys = o.InlineSystemText
	} else if o.SystemTextPath != "" {
		b, err := os.ReadFile(o.SystemTextPath)
		if err != nil {
			return nil, fmt.Errorf("system text read: %w", err)
		}
		if len(b) == 0 {
			return nil, fmt.Errorf("system text: %w: %s is empty", contract.ErrInvalidInput, o.SystemTextPath)
		}
		sys = string(b)
	}
	return &Transformer{system: sys}, nil
}

// Transform: system → 指令，user → Query，assistant → SQL。
func (t *Transformer) Transform(ctx context.Context, in contract.InputRecord) (contract.ChatRecord, error) {
	select {
	case <-ctx.Done():
		return contract.ChatRecord{}, ctx.Err()
	default:
	}
	return contract.NewChatRecord(t.system, in.Query, in.SQL), nil
}

// 静态接口断言
var _ contract.Transformer = (*Transformer)(nil)
