package config

// Config: 运行期只读配置（一次解析，运行期不变）。
// 键名使用 snake_case；配置文件中的未知键在解析期失败。
type Config struct {
	// OutputDir: 输出根目录；每个 split 写入 <output_dir>/<split>/。
	OutputDir string `mapstructure:"output_dir" json:"output_dir"`
	// MaxShardBytes: 单分片字节上限（>0）。
	MaxShardBytes int64 `mapstructure:"max_shard_bytes" json:"max_shard_bytes"`
	// Concurrency: 同时处理的 split 数。
	Concurrency int `mapstructure:"concurrency" json:"concurrency"`
	// BytesPerToken: 近似 token 估算参数（仅用于统计）。
	BytesPerToken int `mapstructure:"bytes_per_token" json:"bytes_per_token"`
	// DataDir: split 来源为相对路径时的解析基准。
	DataDir string      `mapstructure:"data_dir" json:"data_dir"`
	Splits  []SplitSpec `mapstructure:"splits" json:"splits"`

	Logging     Logging `mapstructure:"logging" json:"logging"`
	MetricsFile string  `mapstructure:"metrics_file" json:"metrics_file"`

	// 组件名选择（空则使用默认名）。
	Components Components `mapstructure:"components" json:"components"`
	// 各组件 Options 子树，序列化为 JSON 后严格传入工厂。
	Options Options `mapstructure:"options" json:"options"`
}

// SplitSpec: 一个命名分割及其来源（文件路径或 "-" 表示 STDIN）。
type SplitSpec struct {
	Name   string `mapstructure:"name" json:"name"`
	Source string `mapstructure:"source" json:"source"`
}

// Logging: 日志等级、编码与目录。
type Logging struct {
	Level  string `mapstructure:"level" json:"level"`
	Format string `mapstructure:"format" json:"format"`
	Dir    string `mapstructure:"dir" json:"dir"`
}

// Components: 组件名选择（注册表中的实现名）。
type Components struct {
	Source      string `mapstructure:"source" json:"source"`
	Transformer string `mapstructure:"transformer" json:"transformer"`
	Writer      string `mapstructure:"writer" json:"writer"`
}

// Options: 各组件的自由形态 Options。
type Options struct {
	Source      map[string]any `mapstructure:"source" json:"source"`
	Transformer map[string]any `mapstructure:"transformer" json:"transformer"`
	Writer      map[string]any `mapstructure:"writer" json:"writer"`
}
