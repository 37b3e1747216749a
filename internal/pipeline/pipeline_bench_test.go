package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"testing"

	"sqlft/pkg/contract"
)

// BenchmarkRun 测试完整流水线（真实 Source/Transformer/Writer）的吞吐。
func BenchmarkRun(b *testing.B) {
	in := b.TempDir()
	src := writeNDJSON(b, in, "train.jsonl", 5000)
	for _, c := range []int{1, runtime.NumCPU()} {
		b.Run(fmt.Sprintf("C=%d", c), func(b *testing.B) {
			out := b.TempDir()
			comp := components(b, out, 256*1024)
			splits := make([]Split, 0, 4)
			for i := 0; i < 4; i++ {
				splits = append(splits, Split{Name: contract.SplitName(fmt.Sprintf("s%d", i)), Source: src})
			}
			set := Settings{Splits: splits, Concurrency: c, OutputDir: out}
			ctx := context.Background()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				res, err := Run(ctx, comp, set, nil)
				if err != nil || !AllOK(res) {
					b.Fatalf("运行失败: %v %v", err, res)
				}
			}
		})
	}
}
