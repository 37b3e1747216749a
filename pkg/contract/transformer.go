package contract

import "context"

// Transformer: 将单条 InputRecord 映射为 ChatRecord。
// 约束：
//   - 纯计算，不做 I/O（system 文本在构造期确定）；
//   - 确定性：同一输入恒得同一输出；
//   - 失败快速返回错误。
type Transformer interface {
	Transform(ctx context.Context, in InputRecord) (ChatRecord, error)
}
