package contract

import "errors"

// 最小错误分类（供 diag.Classify 与上层策略判定）。
var (
	// ErrInvalidInput: 调用方传入的参数或记录不满足前置条件。
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingField: 输入行缺少必需字段（或字段类型不是字符串）。
	ErrMissingField = errors.New("missing field")
	// ErrSourceUnavailable: 输入源不可达（不存在/无法打开/无法解压）。
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSourceCorrupt: 输入源内容损坏（解压失败、非法 JSON、超长行）。
	ErrSourceCorrupt = errors.New("source corrupt")
	// ErrPathInvalid: 分区名映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrSinkClosed: 对已关闭的 Sink 继续写入。
	ErrSinkClosed = errors.New("sink closed")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)
