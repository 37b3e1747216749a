package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/subosito/gotenv"

	cfgpkg "sqlft/internal/config"
	"sqlft/internal/diag"
	"sqlft/internal/pipeline"
)

var pipelineRun = pipeline.Run

// 退出码：0 全部 split 成功；1 任一 split 失败；3 配置/装配错误。
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 3
)

// exitError 携带退出码，由 execute 统一转换。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return "exit " + strconv.Itoa(e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		// 旗标/参数错误视同配置错误
		fprintf(stderr, "%v\n", err)
		return exitConfig
	}
	return exitOK
}

type runFlags struct {
	config string
	status bool
}

// newRootCmd: 默认子命令 run；另有 init-config。
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var rf runFlags
	root := &cobra.Command{
		Use:           "sqlft",
		Short:         "将 NL→SQL NDJSON 数据集转换为按大小分片的对话式微调语料",
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runE(cmd, rf, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&rf.config, "config", "", "配置文件路径（json|yaml）；缺省读取 SQLFT_CONFIG_FILE 或 ./config.*")
	pf.String("output-dir", "", "输出根目录（覆盖配置）")
	pf.String("data-dir", "", "相对来源路径的解析基准（覆盖配置）")
	pf.Int64("max-shard-bytes", 0, "单分片字节上限（覆盖配置）")
	pf.Int("concurrency", 0, "同时处理的 split 数（覆盖配置）")
	pf.Int("bytes-per-token", 0, "近似 token 估算参数（覆盖配置）")
	pf.StringArray(cfgpkg.SplitFlag, nil, "split 定义 name=source，可重复；\"-\" 表示 STDIN（覆盖配置中的全部 split）")
	pf.String("log-level", "", "日志级别 debug|info|warn|error（覆盖配置）")
	pf.String("log-format", "", "日志编码 json|console（覆盖配置）")
	pf.String("log-dir", "", "日志目录（覆盖配置）")
	pf.String("metrics-file", "", "运行结束时写出 Prometheus 文本格式指标的路径（覆盖配置）")
	pf.BoolVar(&rf.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")

	run := &cobra.Command{
		Use:   "run",
		Short: "处理全部 split（默认命令）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runE(cmd, rf, stderr)
		},
	}
	initCfg := &cobra.Command{
		Use:   "init-config [dir]",
		Short: "在指定目录生成 config.json 与 .env 模板（已存在则跳过，不覆盖）；缺省为当前目录",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 && strings.TrimSpace(args[0]) != "" {
				dir = strings.TrimSpace(args[0])
			}
			written, err := cfgpkg.WriteTemplate(dir)
			if err != nil {
				fprintf(stderr, "生成默认配置失败: %v\n", err)
				return &exitError{code: exitConfig, err: err}
			}
			if len(written) == 0 {
				fprintf(cmd.OutOrStdout(), "模板已存在，跳过: %s\n", dir)
			}
			for _, p := range written {
				fprintf(cmd.OutOrStdout(), "已生成: %s\n", p)
			}
			return nil
		},
	}
	root.AddCommand(run, initCfg)
	return root
}

func runE(cmd *cobra.Command, rf runFlags, stderr io.Writer) error {
	start := time.Now()
	corrID := uuid.NewString()
	// 在任何 ENV 读取前加载工作目录下的 .env（不覆盖已有 ENV）。
	_ = gotenv.Load(".env")

	cfg, err := cfgpkg.Load(cfgpkg.LoadOptions{Path: rf.config, Flags: cmd.Flags()})
	if err != nil {
		fprintf(stderr, "配置解析失败: %v\n", err)
		return &exitError{code: exitConfig, err: err}
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		fprintf(stderr, "配置校验失败: %v\n", err)
		dumpConfig(stderr, cfg)
		return &exitError{code: exitConfig, err: err}
	}

	logger := diag.NewLoggerWithDir(corrID, cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Dir)
	defer logger.Close()

	if err := preflightCheckOutputDir(cfg.OutputDir); err != nil {
		fprintf(stderr, "输出目录不可写或无法创建: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "preflight failed", &start)
		return &exitError{code: exitConfig, err: err}
	}
	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		fprintf(stderr, "装配失败: %v\n", err)
		logger.Error("config", string(diag.Classify(err)), "assemble failed", &start)
		return &exitError{code: exitConfig, err: err}
	}

	logger.DebugStart("config", "effective", "", "", map[string]string{
		"output_dir":      cfg.OutputDir,
		"data_dir":        cfg.DataDir,
		"max_shard_bytes": strconv.FormatInt(cfg.MaxShardBytes, 10),
		"concurrency":     strconv.Itoa(cfg.Concurrency),
		"splits":          splitList(cfg.Splits),
		"source":          cfg.Components.Source,
		"transformer":     cfg.Components.Transformer,
		"writer":          cfg.Components.Writer,
	})

	// 终端信息提示（非日志）：按 CLI 启用，默认开启
	term := diag.NewTerminal(stderr, rf.status)
	diag.SetTerminal(term)
	defer diag.SetTerminal(nil)
	term.RunStart(cfg.Concurrency, len(cfg.Splits))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	results, err := pipelineRun(ctx, comp, set, logger)
	if err != nil {
		fprintf(stderr, "装配失败: %v\n", err)
		logger.Error("pipeline", string(diag.Classify(err)), "run rejected", &start)
		term.RunFinish(false, time.Since(start))
		return &exitError{code: exitConfig, err: err}
	}
	ok := pipeline.AllOK(results)
	diag.ObserveDuration("pipeline", "run", time.Since(start).Milliseconds())
	if cfg.MetricsFile != "" {
		if err := diag.WriteTextfile(cfg.MetricsFile); err != nil {
			fprintf(stderr, "提示：指标写出失败（已跳过）：%v\n", err)
		}
	}
	term.RunFinish(ok, time.Since(start))
	if !ok {
		var failed []string
		for _, r := range results {
			if !r.OK() {
				failed = append(failed, string(r.Split))
			}
		}
		return &exitError{code: exitFailed, err: fmt.Errorf("split failed: %s", strings.Join(failed, ","))}
	}
	return nil
}

func splitList(specs []cfgpkg.SplitSpec) string {
	parts := make([]string, 0, len(specs))
	for _, s := range specs {
		parts = append(parts, s.Name+"="+s.Source)
	}
	return strings.Join(parts, ",")
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

// dumpConfig 打印有效配置，便于诊断。
func dumpConfig(w io.Writer, c cfgpkg.Config) {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return
	}
	fprintf(w, "有效配置:\n%s\n", b)
}

// preflightCheckOutputDir: 启动前检查输出目录可写性。
// 规则：
// - 若目录已存在：尝试创建并删除临时文件；失败则判为不可写。
// - 若目录不存在：逐级向上找到已存在的祖先，检查其可写性（尝试创建并删除临时目录）。
func preflightCheckOutputDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil
	}
	st, err := os.Stat(dir)
	switch {
	case err == nil && st.IsDir():
		f, err := os.CreateTemp(dir, ".wcheck-*")
		if err != nil {
			return err
		}
		name := f.Name()
		_ = f.Close()
		_ = os.Remove(name)
		return nil
	case err == nil:
		return fmt.Errorf("路径存在但不是目录: %s", dir)
	case !os.IsNotExist(err):
		return err
	}
	parent := filepath.Dir(filepath.Clean(dir))
	for {
		pst, err := os.Stat(parent)
		if err == nil {
			if !pst.IsDir() {
				return fmt.Errorf("父路径不是目录: %s", parent)
			}
			break
		}
		if !os.IsNotExist(err) {
			return err
		}
		next := filepath.Dir(parent)
		if next == parent {
			return fmt.Errorf("无法确定父目录: %s", dir)
		}
		parent = next
	}
	tmpd, err := os.MkdirTemp(parent, ".wcheck-*")
	if err != nil {
		return err
	}
	_ = os.RemoveAll(tmpd)
	return nil
}
