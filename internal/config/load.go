package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"sqlft/plugins/writer/shard"
)

// EnvPrefix: 环境变量前缀（SQLFT_OUTPUT_DIR、SQLFT_LOGGING_LEVEL …）。
const EnvPrefix = "SQLFT"

// 特殊环境变量。
const (
	EnvConfigFile = EnvPrefix + "_CONFIG_FILE"
	EnvSplits     = EnvPrefix + "_SPLITS"
)

// flagKeys: CLI 旗标名 → 配置键。
var flagKeys = map[string]string{
	"output-dir":      "output_dir",
	"max-shard-bytes": "max_shard_bytes",
	"concurrency":     "concurrency",
	"bytes-per-token": "bytes_per_token",
	"data-dir":        "data_dir",
	"log-level":       "logging.level",
	"log-format":      "logging.format",
	"log-dir":         "logging.dir",
	"metrics-file":    "metrics_file",
}

// SplitFlag: 可重复的 --split name=source 旗标名。
const SplitFlag = "split"

// Defaults 返回带有安全默认值的 Config。
func Defaults() Config {
	return Config{
		OutputDir:     "./assets/output",
		MaxShardBytes: shard.DefaultMaxShardBytes,
		Concurrency:   1,
		BytesPerToken: 4,
		DataDir:       "./assets/data",
		Splits: []SplitSpec{
			{Name: "train", Source: "train.jsonl.zst"},
			{Name: "test", Source: "test.jsonl.zst"},
		},
		Logging: Logging{Level: "info", Format: "json", Dir: "logs"},
		Components: Components{
			Source:      "ndjson",
			Transformer: "chat",
			Writer:      "shard",
		},
	}
}

// LoadOptions 控制配置来源。
type LoadOptions struct {
	// Path: 显式配置文件（json|yaml|toml）；为空时依次尝试 SQLFT_CONFIG_FILE 与 ./config.*。
	Path string
	// Flags: 已解析的 CLI 旗标；仅显式设置（Changed）的旗标覆盖其他来源。
	Flags *pflag.FlagSet
}

// Load 按优先级 defaults < 配置文件 < ENV < CLI 构建 Config。
func Load(opts LoadOptions) (Config, error) {
	v := newViper()

	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = strings.TrimSpace(os.Getenv(EnvConfigFile))
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var nf viper.ConfigFileNotFoundError
			if !errors.As(err, &nf) {
				return Config{}, fmt.Errorf("config file: %w", err)
			}
		}
	}

	// SQLFT_SPLITS=train=a.jsonl.zst,test=b.jsonl 覆盖 split 列表
	if s := strings.TrimSpace(os.Getenv(EnvSplits)); s != "" {
		specs, err := ParseSplits(splitComma(s))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvSplits, err)
		}
		v.Set("splits", specsToAny(specs))
	}

	if fs := opts.Flags; fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, err
				}
			}
		}
		if f := fs.Lookup(SplitFlag); f != nil && f.Changed {
			raw, err := fs.GetStringArray(SplitFlag)
			if err != nil {
				return Config{}, err
			}
			specs, err := ParseSplits(raw)
			if err != nil {
				return Config{}, fmt.Errorf("--%s: %w", SplitFlag, err)
			}
			v.Set("splits", specsToAny(specs))
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("config decode: %w", err)
	}
	return cfg, nil
}

// newViper 返回写入默认值并绑定 ENV 的 viper 实例。
func newViper() *viper.Viper {
	v := viper.New()
	d := Defaults()
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("max_shard_bytes", d.MaxShardBytes)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("bytes_per_token", d.BytesPerToken)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("splits", specsToAny(d.Splits))
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.dir", d.Logging.Dir)
	v.SetDefault("metrics_file", "")
	v.SetDefault("components.source", d.Components.Source)
	v.SetDefault("components.transformer", d.Components.Transformer)
	v.SetDefault("components.writer", d.Components.Writer)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ParseSplits 解析 name=source 列表；name 与 source 均不可为空。
func ParseSplits(items []string) ([]SplitSpec, error) {
	out := make([]SplitSpec, 0, len(items))
	for _, it := range items {
		eq := strings.IndexByte(it, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("split %q: want name=source", it)
		}
		name := strings.TrimSpace(it[:eq])
		src := strings.TrimSpace(it[eq+1:])
		if name == "" || src == "" {
			return nil, fmt.Errorf("split %q: want name=source", it)
		}
		out = append(out, SplitSpec{Name: name, Source: src})
	}
	if len(out) == 0 {
		return nil, errors.New("no splits")
	}
	return out, nil
}

func specsToAny(specs []SplitSpec) []any {
	out := make([]any, 0, len(specs))
	for _, s := range specs {
		out = append(out, map[string]any{"name": s.Name, "source": s.Source})
	}
	return out
}

func splitComma(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
