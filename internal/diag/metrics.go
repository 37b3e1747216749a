package diag

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry: 进程内指标注册表（不暴露 HTTP；运行结束可写出 textfile）。
var Registry = prometheus.NewRegistry()

var (
	opTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sqlft_op_total", Help: "Component operations by stage and result."},
		[]string{"comp", "stage", "result"},
	)
	errorTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sqlft_error_total", Help: "Errors by component and classification code."},
		[]string{"comp", "code"},
	)
	opDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "sqlft_op_duration_seconds", Help: "Stage duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"comp", "stage"},
	)
	recordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sqlft_records_total", Help: "Chat records written per split."},
		[]string{"split"},
	)
	shardsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sqlft_shards_total", Help: "Shards sealed per split."},
		[]string{"split"},
	)
	shardBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlft_shard_bytes",
			Help:    "Final size of sealed shards in bytes.",
			Buckets: prometheus.ExponentialBuckets(1024*1024, 2, 10),
		},
		[]string{"split"},
	)
	splitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sqlft_split_total", Help: "Split outcomes."},
		[]string{"split", "result"},
	)
)

func init() {
	Registry.MustRegister(opTotal, errorTotal, opDuration, recordsTotal, shardsTotal, shardBytes, splitTotal)
}

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) {
	opTotal.WithLabelValues(comp, stage, result).Inc()
}

// IncError 按分类累加错误计数。
func IncError(comp, code string) {
	errorTotal.WithLabelValues(comp, code).Inc()
}

// ObserveDuration 记录阶段耗时（毫秒）。
func ObserveDuration(comp, stage string, durMS int64) {
	opDuration.WithLabelValues(comp, stage).Observe((time.Duration(durMS) * time.Millisecond).Seconds())
}

// AddRecords 累加某 split 已写出的记录数。
func AddRecords(split string, n int64) {
	if n > 0 {
		recordsTotal.WithLabelValues(split).Add(float64(n))
	}
}

// ObserveShard 记录一次分片封存。
func ObserveShard(split string, bytes int64) {
	shardsTotal.WithLabelValues(split).Inc()
	shardBytes.WithLabelValues(split).Observe(float64(bytes))
}

// SplitOutcome 记录 split 结果（success|error）。
func SplitOutcome(split string, ok bool) {
	result := "success"
	if !ok {
		result = "error"
	}
	splitTotal.WithLabelValues(split, result).Inc()
}

// WriteTextfile 以 Prometheus 文本格式写出全部指标（node_exporter textfile 约定，原子替换）。
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
