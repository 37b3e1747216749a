package shard

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"sqlft/pkg/contract"
)

// DefaultMaxShardBytes: 默认单分片上限（190 MiB，给 200 MB 上传限制留余量）。
const DefaultMaxShardBytes int64 = 190 * 1024 * 1024

// Options: 最小必要选项。
type Options struct {
	// OutputDir: 输出根目录（必需）；每个 Split 写入 <OutputDir>/<split>/。
	OutputDir string `json:"output_dir"`
	// MaxShardBytes: 单分片字节上限（必需，>0）。
	// 单条记录本身超过上限时独占一个分片（软上限），其余情况为硬上限。
	MaxShardBytes int64 `json:"max_shard_bytes"`
	// Atomic: 是否以同目录临时文件暂存分片，封存时再 rename 为最终名。
	// 默认 false：直接写最终文件，失败时已写内容原样保留。
	Atomic *bool `json:"atomic,omitempty"`
	// EscapeHTML: 是否对 <,>,& 做 \u 转义（encoding/json 默认行为）。默认 false。
	EscapeHTML bool `json:"escape_html,omitempty"`
	// PermFile/PermDir: 可选权限；为 0 表示使用实现/平台默认。
	PermFile os.FileMode `json:"perm_file,omitempty"`
	PermDir  os.FileMode `json:"perm_dir,omitempty"`
	// BufSize: 写缓冲区大小；<=0 使用实现默认。
	BufSize int `json:"buf_size,omitempty"`
}

// FS: 文件系统分片 Writer。自身不持有会话状态，可被多个 Split 并发使用。
type FS struct {
	root       string
	maxBytes   int64
	atomic     bool
	escapeHTML bool
	permF      os.FileMode
	permD      os.FileMode
	bufSize    int
}

// New 创建分片 Writer。
func New(opts *Options) (*FS, error) {
	if opts == nil || strings.TrimSpace(opts.OutputDir) == "" {
		return nil, fmt.Errorf("shard writer: %w: output_dir required", contract.ErrInvalidInput)
	}
	if opts.MaxShardBytes <= 0 {
		return nil, fmt.Errorf("shard writer: %w: max_shard_bytes must be > 0", contract.ErrInvalidInput)
	}
	bsz := opts.BufSize
	if bsz <= 0 {
		bsz = 64 * 1024
	}
	pf := opts.PermFile
	if pf == 0 {
		pf = 0o644
	}
	pd := opts.PermDir
	if pd == 0 {
		pd = 0o755
	}
	atomic := false
	if opts.Atomic != nil {
		atomic = *opts.Atomic
	}
	return &FS{
		root:       opts.OutputDir,
		maxBytes:   opts.MaxShardBytes,
		atomic:     atomic,
		escapeHTML: opts.EscapeHTML,
		permF:      pf,
		permD:      pd,
		bufSize:    bsz,
	}, nil
}

var _ contract.Writer = (*FS)(nil)

// ShardName 返回分片文件名：<split>_transformed_chunk_<ordinal>.jsonl。
func ShardName(split contract.SplitName, ordinal int) string {
	return string(split) + "_transformed_chunk_" + strconv.Itoa(ordinal) + ".jsonl"
}

// SplitDir 返回 Split 的输出目录。
func (w *FS) SplitDir(split contract.SplitName) string {
	return filepath.Join(w.root, string(split))
}

// Begin 创建 Split 输出目录并返回写出会话。此时不创建任何分片文件。
func (w *FS) Begin(ctx context.Context, split contract.SplitName, onSeal contract.SealFunc) (contract.Sink, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if err := contract.ValidateSplitName(split); err != nil {
		return nil, err
	}
	dir := w.SplitDir(split)
	if err := os.MkdirAll(dir, w.permD); err != nil {
		return nil, err
	}
	s := &sink{w: w, split: split, dir: dir, onSeal: onSeal, next: 1}
	s.enc = json.NewEncoder(&s.buf)
	s.enc.SetEscapeHTML(w.escapeHTML)
	return s, nil
}

// shard: 单个打开中的分片文件。
type shard struct {
	f       *os.File
	bw      *bufio.Writer
	path    string // 最终路径
	tmpPath string // Atomic 模式下的暂存路径
	ordinal int
	size    int64
	records int64
}

// sink: 单个 Split 的写出状态机。
// 状态：cur==nil 表示 NO_SHARD_OPEN；cur!=nil 表示 SHARD_OPEN。
type sink struct {
	w      *FS
	split  contract.SplitName
	dir    string
	onSeal contract.SealFunc

	cur  *shard
	next int // 下一个分片序号，自 1 单调递增

	buf bytes.Buffer
	enc *json.Encoder

	sum      contract.SplitSummary
	closed   bool
	closeErr error
	// failed: 首个写出/封存错误；此后 Append 与 Close 均返回它
	failed error
}

// Append 序列化一条记录并写入当前分片；必要时先滚动到下一个分片。
func (s *sink) Append(ctx context.Context, rec contract.ChatRecord) error {
	if s.closed {
		return contract.ErrSinkClosed
	}
	if s.failed != nil {
		return s.failed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if err := contract.ValidateChatRecord(rec); err != nil {
		return fmt.Errorf("shard append: %w", err)
	}
	s.buf.Reset()
	// Encode 自带结尾换行，长度即线上字节数
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("shard encode: %w", err)
	}
	line := s.buf.Bytes()
	n := int64(len(line))

	// size>0 守卫：超限单条记录独占一个分片，而不是无限滚动
	if s.cur == nil || (s.cur.size > 0 && s.cur.size+n > s.w.maxBytes) {
		if err := s.rollover(); err != nil {
			s.failed = err
			return err
		}
	}
	if _, err := s.cur.bw.Write(line); err != nil {
		s.failed = fmt.Errorf("shard append %s: %w", s.cur.path, err)
		return s.failed
	}
	s.cur.size += n
	s.cur.records++
	return nil
}

// Close 封存当前分片（若有）并清理上次运行遗留的更高序号分片。重复调用幂等。
// 此前的写出/封存错误原样返回；本次打开过的分片（含写坏的）一律保留在磁盘上。
func (s *sink) Close() (contract.SplitSummary, error) {
	if s.closed {
		return s.sum, s.closeErr
	}
	s.closed = true
	if s.cur != nil {
		if err := s.seal(); err != nil && s.failed == nil {
			s.failed = err
		}
	}
	s.closeErr = s.failed
	if err := s.pruneStale(); err != nil && s.closeErr == nil {
		s.closeErr = fmt.Errorf("shard prune: %w", err)
	}
	return s.sum, s.closeErr
}

// rollover: 关闭当前分片（若有），打开下一个序号的分片。
func (s *sink) rollover() error {
	if s.cur != nil {
		if err := s.seal(); err != nil {
			return err
		}
	}
	sh, err := s.open(s.next)
	if err != nil {
		return err
	}
	s.cur = sh
	s.next++
	return nil
}

func (s *sink) open(ordinal int) (*shard, error) {
	dest := filepath.Join(s.dir, ShardName(s.split, ordinal))
	sh := &shard{path: dest, ordinal: ordinal}
	if s.w.atomic {
		tmp, err := os.CreateTemp(s.dir, ".tmp-*")
		if err != nil {
			return nil, fmt.Errorf("shard open: %w", err)
		}
		// 目标权限：尽量与期望一致
		_ = os.Chmod(tmp.Name(), s.w.permF)
		sh.f = tmp
		sh.tmpPath = tmp.Name()
	} else {
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, s.w.permF)
		if err != nil {
			return nil, fmt.Errorf("shard open: %w", err)
		}
		sh.f = f
	}
	sh.bw = bufio.NewWriterSize(sh.f, s.w.bufSize)
	return sh, nil
}

// seal: flush + close 当前分片；无论成功与否句柄都会释放，cur 置空。
func (s *sink) seal() error {
	sh := s.cur
	s.cur = nil

	err := sh.bw.Flush()
	if err == nil && s.w.atomic {
		err = sh.f.Sync()
	}
	if cerr := sh.f.Close(); err == nil {
		err = cerr
	}
	if s.w.atomic {
		if err == nil {
			err = replaceShard(sh.tmpPath, sh.path)
		}
		if err != nil {
			_ = os.Remove(sh.tmpPath)
			return fmt.Errorf("shard seal %s: %w", sh.path, err)
		}
		// 最佳努力：同步父目录，提升崩溃安全性
		_ = syncShardDir(s.dir)
	} else if err != nil {
		return fmt.Errorf("shard seal %s: %w", sh.path, err)
	}

	info := contract.ShardInfo{
		Split:   s.split,
		Ordinal: sh.ordinal,
		Path:    sh.path,
		Bytes:   sh.size,
		Records: sh.records,
	}
	s.sum.Shards = append(s.sum.Shards, info)
	s.sum.Records += sh.records
	s.sum.Bytes += sh.size
	if s.onSeal != nil {
		s.onSeal(info)
	}
	return nil
}

// pruneStale 删除本次运行未打开过的更高序号分片（>= next），使目录恰好包含 1..K。
func (s *sink) pruneStale() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(string(s.split)) + `_transformed_chunk_(\d+)\.jsonl$`)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		ord, err := strconv.Atoi(m[1])
		if err != nil || ord < s.next {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
