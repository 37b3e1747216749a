package ndjson

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"sqlft/pkg/contract"
)

// Compression 取值。
const (
	CompressionAuto = "auto"
	CompressionNone = "none"
	CompressionZstd = "zstd"
	CompressionGzip = "gzip"
)

// Options 为 NDJSON Source 的可选配置（最小必要）。
type Options struct {
	// BaseDir: 相对路径的解析基准目录；为空时相对工作目录。
	BaseDir string `json:"base_dir"`
	// BufSize 为读缓冲区大小（字节）。默认 64KiB。
	BufSize int `json:"buf_size"`
	// MaxLineBytes: 单行最大字节数。默认 16MiB。
	MaxLineBytes int `json:"max_line_bytes"`
	// Compression: auto|none|zstd|gzip。auto 按扩展名判定（.zst/.zstd/.gz）。
	Compression string `json:"compression"`
	// QueryField/SQLField: 问题与 SQL 的字段名。默认 query/sql。
	QueryField string `json:"query_field"`
	SQLField   string `json:"sql_field"`
}

// Source 实现基于本地文件与 STDIN 的 NDJSON 读取。
type Source struct {
	baseDir     string
	bufSize     int
	maxLine     int
	compression string
	queryField  string
	sqlField    string
}

// New 创建 NDJSON Source。
func New(opts *Options) (*Source, error) {
	o := Options{}
	if opts != nil {
		o = *opts
	}
	s := &Source{
		baseDir:     o.BaseDir,
		bufSize:     64 * 1024,
		maxLine:     16 * 1024 * 1024,
		compression: strings.ToLower(strings.TrimSpace(o.Compression)),
		queryField:  "query",
		sqlField:    "sql",
	}
	if o.BufSize > 0 {
		s.bufSize = o.BufSize
	}
	if o.MaxLineBytes > 0 {
		s.maxLine = o.MaxLineBytes
	}
	if s.maxLine < s.bufSize {
		s.bufSize = s.maxLine
	}
	switch s.compression {
	case "":
		s.compression = CompressionAuto
	case CompressionAuto, CompressionNone, CompressionZstd, CompressionGzip:
	default:
		return nil, fmt.Errorf("ndjson: %w: unknown compression %q", contract.ErrInvalidInput, o.Compression)
	}
	if f := strings.TrimSpace(o.QueryField); f != "" {
		s.queryField = f
	}
	if f := strings.TrimSpace(o.SQLField); f != "" {
		s.sqlField = f
	}
	return s, nil
}

var _ contract.Source = (*Source)(nil)

// Resolve 返回 source 对应的实际路径（"-" 原样返回）。
func (s *Source) Resolve(source string) string {
	if source == "-" || filepath.IsAbs(source) || s.baseDir == "" {
		return source
	}
	return filepath.Join(s.baseDir, source)
}

// Iterate 打开 source，逐行解码并按输入顺序调用 yield。
func (s *Source) Iterate(ctx context.Context, source string, yield func(rec contract.InputRecord) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("%w: empty source", contract.ErrSourceUnavailable)
	}
	rc, err := s.open(source)
	if err != nil {
		return err
	}
	defer rc.Close()

	sc := bufio.NewScanner(rc)
	sc.Buffer(make([]byte, 0, s.bufSize), s.maxLine)
	var line int64
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		rec, err := s.decode(b)
		if err != nil {
			return fmt.Errorf("%s line %d: %w", source, line, err)
		}
		rec.Line = line
		if err := yield(rec); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("%w: %s line %d exceeds %d bytes", contract.ErrSourceCorrupt, source, line+1, s.maxLine)
		}
		return fmt.Errorf("%w: %s: %w", contract.ErrSourceCorrupt, source, err)
	}
	return nil
}

// open 打开文件（或 STDIN）并按压缩格式包装解压层。
func (s *Source) open(source string) (io.ReadCloser, error) {
	var base io.ReadCloser
	name := source
	if source == "-" {
		base = io.NopCloser(os.Stdin)
	} else {
		name = s.Resolve(source)
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", contract.ErrSourceUnavailable, err)
		}
		base = f
	}
	br := bufio.NewReaderSize(base, s.bufSize)

	switch s.detect(name) {
	case CompressionZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			_ = base.Close()
			return nil, fmt.Errorf("%w: zstd: %w", contract.ErrSourceCorrupt, err)
		}
		zrc := zr.IOReadCloser()
		return &stack{Reader: zrc, closers: []io.Closer{zrc, base}}, nil
	case CompressionGzip:
		gr, err := gzip.NewReader(br)
		if err != nil {
			_ = base.Close()
			return nil, fmt.Errorf("%w: gzip: %w", contract.ErrSourceCorrupt, err)
		}
		return &stack{Reader: gr, closers: []io.Closer{gr, base}}, nil
	default:
		return &stack{Reader: br, closers: []io.Closer{base}}, nil
	}
}

func (s *Source) detect(name string) string {
	if s.compression != CompressionAuto {
		return s.compression
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zst", ".zstd":
		return CompressionZstd
	case ".gz":
		return CompressionGzip
	default:
		return CompressionNone
	}
}

// decode 解析单行 JSON 对象并提取两个字符串字段。
func (s *Source) decode(b []byte) (contract.InputRecord, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return contract.InputRecord{}, fmt.Errorf("%w: %w", contract.ErrSourceCorrupt, err)
	}
	q, err := stringField(obj, s.queryField)
	if err != nil {
		return contract.InputRecord{}, err
	}
	sql, err := stringField(obj, s.sqlField)
	if err != nil {
		return contract.InputRecord{}, err
	}
	return contract.InputRecord{Query: q, SQL: sql}, nil
}

func stringField(obj map[string]json.RawMessage, name string) (string, error) {
	raw, ok := obj[name]
	if !ok || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", fmt.Errorf("%w: %q", contract.ErrMissingField, name)
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", fmt.Errorf("%w: %q is not a string", contract.ErrMissingField, name)
	}
	return v, nil
}

// stack 将解压层与底层文件组合为 ReadCloser；按顺序关闭全部层。
type stack struct {
	io.Reader
	closers []io.Closer
}

func (s *stack) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
