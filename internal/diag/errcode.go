package diag

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"sqlft/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeSource    Code = "source"    // 输入获取：不可达/损坏
	CodeTransform Code = "transform" // 转换：缺失必需字段
	CodeIO        Code = "io"        // 输出 I/O：磁盘满/权限/路径
	CodeInvariant Code = "invariant"
	CodeCancel    Code = "cancel"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	// 输入获取（先于 I/O：打开源文件失败也携带 PathError）
	if errors.Is(err, contract.ErrSourceUnavailable) || errors.Is(err, contract.ErrSourceCorrupt) {
		return CodeSource
	}
	if errors.Is(err, contract.ErrMissingField) {
		return CodeTransform
	}
	if errors.Is(err, contract.ErrInvariantViolation) || errors.Is(err, contract.ErrInvalidInput) {
		return CodeInvariant
	}
	if errors.Is(err, contract.ErrPathInvalid) || errors.Is(err, contract.ErrSinkClosed) {
		return CodeIO
	}
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	// 原子模式封存时的改名失败
	var lerr *os.LinkError
	if errors.As(err, &lerr) {
		return CodeIO
	}
	return CodeUnknown
}
