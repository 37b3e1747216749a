package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sqlft/internal/pipeline"
	"sqlft/pkg/contract"
	"sqlft/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if len(cfg.Splits) == 0 {
		return errors.New("config: splits empty")
	}
	seen := make(map[string]struct{}, len(cfg.Splits))
	for _, sp := range cfg.Splits {
		if err := contract.ValidateSplitName(contract.SplitName(sp.Name)); err != nil {
			return fmt.Errorf("config: split %q: %w", sp.Name, err)
		}
		if _, dup := seen[sp.Name]; dup {
			return fmt.Errorf("config: duplicate split %q", sp.Name)
		}
		seen[sp.Name] = struct{}{}
		if strings.TrimSpace(sp.Source) == "" {
			return fmt.Errorf("config: split %q: source cannot be empty", sp.Name)
		}
	}
	// STDIN 只能被一个 split 消费
	dash := 0
	for _, sp := range cfg.Splits {
		if strings.TrimSpace(sp.Source) == "-" {
			dash++
		}
	}
	if dash > 1 {
		return errors.New("config: '-' (stdin) can feed at most one split")
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return errors.New("config: output_dir not set")
	}
	if cfg.MaxShardBytes <= 0 {
		return errors.New("config: max_shard_bytes must be > 0")
	}
	if cfg.Concurrency < 1 {
		return errors.New("config: concurrency must be >= 1")
	}
	if cfg.BytesPerToken < 0 {
		return errors.New("config: bytes_per_token must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "", "json", "console":
	default:
		return fmt.Errorf("config: logging.format %q must be json|console", cfg.Logging.Format)
	}
	d := Defaults()
	if name := effName(cfg.Components.Source, d.Components.Source); registry.Source[name] == nil {
		return fmt.Errorf("config: source %q not registered", name)
	}
	if name := effName(cfg.Components.Transformer, d.Components.Transformer); registry.Transformer[name] == nil {
		return fmt.Errorf("config: transformer %q not registered", name)
	}
	if name := effName(cfg.Components.Writer, d.Components.Writer); registry.Writer[name] == nil {
		return fmt.Errorf("config: writer %q not registered", name)
	}
	return nil
}

// Assemble 构造 Components 与 Settings。
// 严格 Options 解析在 registry（工厂）层进行；此处仅注入顶层键：
// - source.base_dir ← data_dir（未显式设置时）
// - writer.output_dir / writer.max_shard_bytes ← 顶层同名键（总是覆盖）
func Assemble(cfg Config) (pipeline.Components, pipeline.Settings, error) {
	if err := Validate(cfg); err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	d := Defaults()
	sn := effName(cfg.Components.Source, d.Components.Source)
	tn := effName(cfg.Components.Transformer, d.Components.Transformer)
	wn := effName(cfg.Components.Writer, d.Components.Writer)

	srcOpts := cloneMap(cfg.Options.Source)
	if _, ok := srcOpts["base_dir"]; !ok && strings.TrimSpace(cfg.DataDir) != "" {
		srcOpts["base_dir"] = cfg.DataDir
	}
	wOpts := cloneMap(cfg.Options.Writer)
	wOpts["output_dir"] = cfg.OutputDir
	wOpts["max_shard_bytes"] = cfg.MaxShardBytes

	raw, err := rawJSON(srcOpts)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	src, err := registry.Source[sn](raw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("source %s: %w", sn, err)
	}
	raw, err = rawJSON(cfg.Options.Transformer)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	tr, err := registry.Transformer[tn](raw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("transformer %s: %w", tn, err)
	}
	raw, err = rawJSON(wOpts)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, err
	}
	w, err := registry.Writer[wn](raw)
	if err != nil {
		return pipeline.Components{}, pipeline.Settings{}, fmt.Errorf("writer %s: %w", wn, err)
	}

	splits := make([]pipeline.Split, 0, len(cfg.Splits))
	for _, sp := range cfg.Splits {
		splits = append(splits, pipeline.Split{Name: contract.SplitName(sp.Name), Source: contract.NormalizeSource(sp.Source)})
	}
	set := pipeline.Settings{
		Splits:        splits,
		Concurrency:   cfg.Concurrency,
		BytesPerToken: cfg.BytesPerToken,
		OutputDir:     cfg.OutputDir,
	}
	return pipeline.Components{Source: src, Transformer: tr, Writer: w}, set, nil
}

func effName(got, def string) string {
	if got == "" {
		return def
	}
	return got
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in)+2)
	for k, v := range in {
		out[k] = v
	}
	return out
}

// rawJSON 将自由形态 Options 编码为工厂可严格解码的 JSON；空 map 返回 nil（使用默认）。
func rawJSON(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("options encode: %w", err)
	}
	return b, nil
}
