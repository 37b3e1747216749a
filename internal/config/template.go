package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 默认 split 为 train/test，来源位于 data_dir；
// - 组件名采用仓库内置实现；
// - 选项包含全部键并给出中性默认值。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.Options.Source = map[string]any{
		"buf_size":       65536,
		"max_line_bytes": 16 * 1024 * 1024,
		"compression":    "auto",
		"query_field":    "query",
		"sql_field":      "sql",
	}
	cfg.Options.Transformer = map[string]any{
		"inline_system_text": "",
		"system_text_path":   "",
	}
	// output_dir/max_shard_bytes 由顶层键注入
	cfg.Options.Writer = map[string]any{
		"atomic":      false,
		"escape_html": false,
		"perm_file":   0,
		"perm_dir":    0,
		"buf_size":    65536,
	}
	return cfg
}

// 模板文件名。
const (
	TemplateConfigName = "config.json"
	TemplateEnvName    = ".env"
)

// WriteTemplate 在 dir 下生成 config.json 与 .env 模板（已存在则跳过，不覆盖）。
// 返回实际写出的文件路径。
func WriteTemplate(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(DefaultTemplateConfig(), "", "  ")
	if err != nil {
		return nil, err
	}
	var written []string
	cfgPath := filepath.Join(dir, TemplateConfigName)
	ok, err := writeExclusive(cfgPath, append(b, '\n'))
	if err != nil {
		return written, err
	}
	if ok {
		written = append(written, cfgPath)
	}
	envPath := filepath.Join(dir, TemplateEnvName)
	ok, err = writeExclusive(envPath, []byte(dotEnvTemplate()))
	if err != nil {
		return written, err
	}
	if ok {
		written = append(written, envPath)
	}
	return written, nil
}

// writeExclusive 仅在文件不存在时创建；已存在返回 (false, nil)。
func writeExclusive(path string, data []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return false, err
	}
	return true, f.Close()
}

func dotEnvTemplate() string {
	var b strings.Builder
	b.WriteString("# sqlft .env 模板（由 init-config 生成）\n")
	b.WriteString("# 优先级：CLI > ENV(.env) > 配置文件 > 默认值\n")
	b.WriteString("# 空值表示未设置。\n\n")

	b.WriteString("# 配置来源\n")
	b.WriteString(EnvConfigFile + "=\n\n")

	b.WriteString("# 运行参数覆盖\n")
	b.WriteString(EnvPrefix + "_OUTPUT_DIR=\n")
	b.WriteString(EnvPrefix + "_DATA_DIR=\n")
	b.WriteString(EnvPrefix + "_MAX_SHARD_BYTES=\n")
	b.WriteString(EnvPrefix + "_CONCURRENCY=\n")
	b.WriteString(EnvPrefix + "_BYTES_PER_TOKEN=\n")
	b.WriteString("# 例：train=train.jsonl.zst,test=test.jsonl.zst\n")
	b.WriteString(EnvSplits + "=\n")
	b.WriteString(EnvPrefix + "_METRICS_FILE=\n\n")

	b.WriteString("# 日志\n")
	b.WriteString(EnvPrefix + "_LOGGING_LEVEL=\n")
	b.WriteString(EnvPrefix + "_LOGGING_FORMAT=\n")
	b.WriteString(EnvPrefix + "_LOGGING_DIR=\n\n")

	b.WriteString("# 组件选择\n")
	b.WriteString(EnvPrefix + "_COMPONENTS_SOURCE=\n")
	b.WriteString(EnvPrefix + "_COMPONENTS_TRANSFORMER=\n")
	b.WriteString(EnvPrefix + "_COMPONENTS_WRITER=\n")
	return b.String()
}
