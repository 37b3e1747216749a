package prompt

import "sqlft/pkg/contract"

// Estimator 将文本映射为近似 token 数。
type Estimator func(s string) int

// MakeEstimator 返回一个近似 token 估算器：tokens ≈ ceil(len(utf8_bytes)/bytesPerToken)。
// 当 bytesPerToken<=0 时采用默认 4。
func MakeEstimator(bytesPerToken int) Estimator {
	bpt := bytesPerToken
	if bpt <= 0 {
		bpt = 4
	}
	return func(s string) int {
		n := len(s)
		if n == 0 {
			return 0
		}
		return (n + bpt - 1) / bpt
	}
}

// RecordTokens 估算一条对话记录的训练 token 量（各消息 content 之和；不计 JSON 结构开销）。
func RecordTokens(est Estimator, rec contract.ChatRecord) int64 {
	if est == nil {
		return 0
	}
	var total int64
	for _, m := range rec.Messages {
		total += int64(est(m.Content))
	}
	return total
}
