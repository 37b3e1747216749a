package contract

import "context"

// SealFunc: 分片封存（关闭）后的观测回调；nil 表示不观测。
type SealFunc func(info ShardInfo)

// Writer: 为每个 Split 开启独立的分片写出会话。
// 约束：
//  1. 同一 Split 单写者；不同 Split 之间无共享可变状态；
//  2. 会话内写入严格有序；
//  3. 错误直接上抛（不做重试/回退）。
type Writer interface {
	Begin(ctx context.Context, split SplitName, onSeal SealFunc) (Sink, error)
}

// Sink: 单个 Split 的写出会话。
// 约束：
//  1. Append 按到达顺序写入，分片按字节上限滚动；
//  2. Close 必须被调用（含错误路径），封存当前分片并返回汇总；重复调用幂等；
//  3. Close 之后的 Append 返回 ErrSinkClosed。
type Sink interface {
	Append(ctx context.Context, rec ChatRecord) error
	Close() (SplitSummary, error)
}
