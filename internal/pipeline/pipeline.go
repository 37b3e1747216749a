package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"sqlft/internal/diag"
	"sqlft/internal/prompt"
	"sqlft/pkg/contract"
)

// - 单点并发：仅此层管理并发；原子组件均为同步、无内部并发。
// - 分割隔离：每个 split 独立 Begin/Close，失败只影响自身，不取消兄弟 split。
// - 结果即值：split 失败以 SplitResult.Err 返回，Run 仅在组件装配错误时返回 error。
// - 必然关闭：无论成功/失败，已开启的 Sink 一定 Close（封存当前分片）。

// Components 聚合运行所需的原子组件。
type Components struct {
	Source      contract.Source
	Transformer contract.Transformer
	Writer      contract.Writer
}

// Split 为一个命名分割及其输入来源。
type Split struct {
	Name   contract.SplitName
	Source string
}

// Settings 运行期配置（最小必要）。
type Settings struct {
	Splits []Split
	// Concurrency: 同时处理的 split 数（<1 视为 1）
	Concurrency int
	// BytesPerToken: 近似 token 估算参数（<=0 取默认 4）
	BytesPerToken int
	// OutputDir: 仅用于结果展示；实际写出位置由 Writer 的 options 决定
	OutputDir string
}

// SplitResult 单个 split 的处理结果。
// Err==nil 表示成功；失败时 Shards 仍列出已封存的分片（不可作为下游输入）。
type SplitResult struct {
	Split        contract.SplitName
	OutputDir    string
	Shards       []contract.ShardInfo
	Records      int64
	Bytes        int64
	ApproxTokens int64
	Duration     time.Duration
	Err          error
}

// OK 报告 split 是否成功。
func (r SplitResult) OK() bool { return r.Err == nil }

// Paths 返回按序号排列的分片路径。
func (r SplitResult) Paths() []string {
	return contract.SplitSummary{Shards: r.Shards}.Paths()
}

// AllOK 报告全部 split 是否成功。
func AllOK(rs []SplitResult) bool {
	for _, r := range rs {
		if !r.OK() {
			return false
		}
	}
	return true
}

// Run 依次（或有界并发）处理全部 split：Source → Transformer → Sink。
// 返回值与 set.Splits 顺序一致，与完成顺序无关。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) ([]SplitResult, error) {
	if err := sanity(comp, set); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	conc := set.Concurrency
	if conc < 1 {
		conc = 1
	}
	rtimer := logger.StartWithKV("pipeline", "run", "", "", map[string]string{
		"splits":      strconv.Itoa(len(set.Splits)),
		"concurrency": strconv.Itoa(conc),
	})

	results := make([]SplitResult, len(set.Splits))
	// 不使用 WithContext：单个 split 失败不应取消兄弟 split
	var g errgroup.Group
	g.SetLimit(conc)
	for i, sp := range set.Splits {
		g.Go(func() error {
			results[i] = runSplit(ctx, comp, set, sp, logger)
			return nil
		})
	}
	_ = g.Wait()

	var ok int64
	for _, r := range results {
		if r.OK() {
			ok++
		}
	}
	rtimer.Finish("run", ok)
	return results, nil
}

// runSplit 处理单个 split；任何路径上都会 Close 已开启的 Sink。
func runSplit(ctx context.Context, comp Components, set Settings, sp Split, logger *diag.Logger) (res SplitResult) {
	split := string(sp.Name)
	res = SplitResult{Split: sp.Name, OutputDir: filepath.Join(set.OutputDir, split)}
	term := diag.GetTerminal()
	start := time.Now()
	term.SplitStart(split, sp.Source)
	timer := logger.StartWithKV("pipeline", "split", split, "", map[string]string{"source": sp.Source})

	defer func() {
		res.Duration = time.Since(start)
		ok := res.OK()
		diag.SplitOutcome(split, ok)
		diag.ObserveDuration("pipeline", "split", res.Duration.Milliseconds())
		errMsg := ""
		if ok {
			timer.Finish("split", res.Records)
			diag.IncOp("pipeline", "finish", "success")
		} else {
			errMsg = res.Err.Error()
			code := diag.Classify(res.Err)
			logger.ErrorWithKV("pipeline", string(code), "split failed", &start, split, "", map[string]string{
				"error":   errMsg,
				"records": strconv.FormatInt(res.Records, 10),
			})
			diag.IncOp("pipeline", "error", "error")
			if code != diag.CodeUnknown {
				diag.IncError("pipeline", string(code))
			}
		}
		term.SplitFinish(ok, split, res.OutputDir, errMsg, res.Duration)
	}()

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	onSeal := func(info contract.ShardInfo) {
		logger.Event("writer", "shard sealed", split, filepath.Base(info.Path), map[string]string{
			"ordinal": strconv.Itoa(info.Ordinal),
			"bytes":   strconv.FormatInt(info.Bytes, 10),
			"records": strconv.FormatInt(info.Records, 10),
		})
		diag.ObserveShard(split, info.Bytes)
		term.ShardSealed(info.Path, info.Bytes)
	}
	sink, err := comp.Writer.Begin(ctx, sp.Name, onSeal)
	if err != nil {
		res.Err = fmt.Errorf("writer begin: %w", err)
		return res
	}

	est := prompt.MakeEstimator(set.BytesPerToken)
	var (
		written  int64
		tokens   int64
		yieldErr error
	)
	iterErr := comp.Source.Iterate(ctx, sp.Source, func(in contract.InputRecord) error {
		rec, err := comp.Transformer.Transform(ctx, in)
		if err != nil {
			yieldErr = fmt.Errorf("transform line %d: %w", in.Line, err)
			return yieldErr
		}
		if err := sink.Append(ctx, rec); err != nil {
			yieldErr = fmt.Errorf("shard append: %w", err)
			return yieldErr
		}
		written++
		tokens += prompt.RecordTokens(est, rec)
		term.SplitProgress(split, written)
		return nil
	})
	if iterErr != nil && !errors.Is(iterErr, yieldErr) {
		iterErr = fmt.Errorf("source iterate: %w", iterErr)
	}

	sum, cerr := sink.Close()
	res.Shards = sum.Shards
	res.Records = sum.Records
	res.Bytes = sum.Bytes
	res.ApproxTokens = tokens
	diag.AddRecords(split, sum.Records)
	switch {
	case cerr == nil:
	case errors.Is(iterErr, cerr):
		// 写出错误已由 Append 上抛，Close 只是原样重复
		cerr = nil
	default:
		cerr = fmt.Errorf("shard seal: %w", cerr)
	}
	res.Err = errors.Join(iterErr, cerr)
	return res
}

func sanity(c Components, s Settings) error {
	if c.Source == nil || c.Transformer == nil || c.Writer == nil {
		return errors.New("pipeline: missing components")
	}
	if len(s.Splits) == 0 {
		return errors.New("pipeline: empty splits")
	}
	seen := make(map[contract.SplitName]struct{}, len(s.Splits))
	for _, sp := range s.Splits {
		if err := contract.ValidateSplitName(sp.Name); err != nil {
			return fmt.Errorf("pipeline: split %q: %w", sp.Name, err)
		}
		if _, dup := seen[sp.Name]; dup {
			return fmt.Errorf("pipeline: duplicate split %q: %w", sp.Name, contract.ErrInvalidInput)
		}
		seen[sp.Name] = struct{}{}
	}
	return nil
}
