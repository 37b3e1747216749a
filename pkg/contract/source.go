package contract

import "context"

// Source: 输入源抽象（本地文件/STDIN，可压缩）。
// 约束：
// 1) 流式读取，逐条回调，O(1) 额外内存；
// 2) 按输入顺序回调，不重排、不去重；
// 3) 字段缺失返回 ErrMissingField，不做替补；
// 4) yield 返回错误时立即停止并原样上抛；
// 5) 不在内部起并发。
type Source interface {
	Iterate(ctx context.Context, source string, yield func(rec InputRecord) error) error
}
