package registry

import (
	"bytes"
	"encoding/json"

	"sqlft/pkg/contract"
	nds "sqlft/plugins/source/ndjson"
	tchat "sqlft/plugins/transformer/chat"
	wshard "sqlft/plugins/writer/shard"
)

// strictUnmarshal: 使用 DisallowUnknownFields 严格解码，拒绝未知字段。
func strictUnmarshal(raw json.RawMessage, v any) error {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		// 保持零值（默认选项）
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// NewSource 工厂签名：接收原样 JSON Options。
type NewSource func(raw json.RawMessage) (contract.Source, error)

// NewTransformer 工厂签名：接收原样 JSON Options。
type NewTransformer func(raw json.RawMessage) (contract.Transformer, error)

// NewWriter 工厂签名：接收原样 JSON Options。
type NewWriter func(raw json.RawMessage) (contract.Writer, error)

// Source 工厂注册表（显式、零反射）。
var Source = map[string]NewSource{
	// ndjson: 本地文件/STDIN，自动解压 zstd/gzip
	"ndjson": func(raw json.RawMessage) (contract.Source, error) {
		var opts nds.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return nds.New(&opts)
	},
}

// Transformer 工厂注册表。
var Transformer = map[string]NewTransformer{
	// chat: system/user/assistant 三轮会话
	"chat": func(raw json.RawMessage) (contract.Transformer, error) {
		var opts tchat.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return tchat.New(&opts)
	},
}

// Writer 工厂注册表。
var Writer = map[string]NewWriter{
	// shard: 按字节上限滚动的 JSONL 分片 Writer
	"shard": func(raw json.RawMessage) (contract.Writer, error) {
		var opts wshard.Options
		if err := strictUnmarshal(raw, &opts); err != nil {
			return nil, err
		}
		return wshard.New(&opts)
	},
}
