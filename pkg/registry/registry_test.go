package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"sqlft/pkg/contract"
)

// TestStrictUnmarshal 验证严格解码逻辑。
func TestStrictUnmarshal(t *testing.T) {
	type opt struct{ A int `json:"a"` }
	var o opt
	if err := strictUnmarshal(nil, &o); err != nil || o.A != 0 {
		t.Fatalf("nil 输入失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`null`), &o); err != nil || o.A != 0 {
		t.Fatalf("null 输入失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1}`), &o); err != nil || o.A != 1 {
		t.Fatalf("合法 JSON 解析失败: %v", err)
	}
	if err := strictUnmarshal(json.RawMessage(`{"a":1,"b":2}`), &o); err == nil {
		t.Fatalf("未知字段应报错")
	}
}

// TestFactories 遍历注册表入口。
func TestFactories(t *testing.T) {
	t.Run("source", func(t *testing.T) {
		if _, err := Source["ndjson"](json.RawMessage(`{}`)); err != nil {
			t.Fatalf("source: %v", err)
		}
		if _, err := Source["ndjson"](json.RawMessage(`{"x":1}`)); err == nil {
			t.Fatalf("source 未对未知字段报错")
		}
		if _, err := Source["ndjson"](json.RawMessage(`{"compression":"brotli"}`)); !errors.Is(err, contract.ErrInvalidInput) {
			t.Fatalf("source 未对非法压缩格式报错: %v", err)
		}
	})
	t.Run("transformer", func(t *testing.T) {
		if _, err := Transformer["chat"](json.RawMessage(`{}`)); err != nil {
			t.Fatalf("transformer: %v", err)
		}
		if _, err := Transformer["chat"](json.RawMessage(`{"x":1}`)); err == nil {
			t.Fatalf("transformer 未对未知字段报错")
		}
	})
	t.Run("writer", func(t *testing.T) {
		tmp := t.TempDir()
		raw := json.RawMessage([]byte(fmt.Sprintf(`{"output_dir":%q,"max_shard_bytes":1024}`, tmp)))
		if _, err := Writer["shard"](raw); err != nil {
			t.Fatalf("writer: %v", err)
		}
		bad := json.RawMessage([]byte(fmt.Sprintf(`{"output_dir":%q,"max_shard_bytes":1024,"x":1}`, tmp)))
		if _, err := Writer["shard"](bad); err == nil {
			t.Fatalf("writer 未对未知字段报错")
		}
		if _, err := Writer["shard"](json.RawMessage(`{}`)); !errors.Is(err, contract.ErrInvalidInput) {
			t.Fatalf("writer 缺少 output_dir 应报错: %v", err)
		}
	})
}
