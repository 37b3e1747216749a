package contract

// SplitName: 任务分区名（如 train/test），同时用作输出子目录名与分片文件名前缀。
type SplitName string

// Role: 会话消息角色。
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatRoles: Chat Record 的固定角色顺序。
var ChatRoles = [3]Role{RoleSystem, RoleUser, RoleAssistant}

// InputRecord: 原子输入行（自然语言问题 + 对应 SQL）。
// 约束：
// - Query/SQL 由 Source 保证存在（缺失即报错，不做替补）；
// - Line 为源内 1 起始行号，仅用于诊断。
type InputRecord struct {
	Query string
	SQL   string
	Line  int64
}

// Message: 最小会话消息形状（线上格式 {"role":..,"content":..}）。
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRecord: 转换后的训练单元，恰好三条消息：system → user → assistant。
type ChatRecord struct {
	Messages []Message `json:"messages"`
}

// ShardInfo: 已封存分片的只读描述。
type ShardInfo struct {
	Split   SplitName
	Ordinal int    // 1 起始、无空洞
	Path    string // 最终路径
	Bytes   int64  // 已写入字节（含换行）
	Records int64
}

// SplitSummary: 单个 Split 的写出汇总（Sink.Close 返回）。
type SplitSummary struct {
	Shards  []ShardInfo
	Records int64
	Bytes   int64
}

// Paths 返回按序号排列的分片路径。
func (s SplitSummary) Paths() []string {
	out := make([]string, 0, len(s.Shards))
	for _, sh := range s.Shards {
		out = append(out, sh.Path)
	}
	return out
}
