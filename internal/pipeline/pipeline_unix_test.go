//go:build !windows

package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlft/internal/diag"
	"sqlft/plugins/writer/shard"
)

// 输出 I/O 错误：磁盘满的 split 失败（已封存分片保留），兄弟 split 不受影响
func TestRunShardDiskFull(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("/dev/full not available")
	}
	in, out := t.TempDir(), t.TempDir()
	bad := writeNDJSON(t, in, "bad.jsonl", 3)
	good := writeNDJSON(t, in, "good.jsonl", 3)

	// 每条记录独占一个分片；bad 的 2 号分片写入 /dev/full
	badDir := filepath.Join(out, "bad")
	require.NoError(t, os.MkdirAll(badDir, 0o755))
	full := filepath.Join(badDir, shard.ShardName("bad", 2))
	require.NoError(t, os.Symlink("/dev/full", full))

	comp := components(t, out, 50)
	set := Settings{
		Splits:      []Split{{Name: "bad", Source: bad}, {Name: "good", Source: good}},
		Concurrency: 2,
		OutputDir:   out,
	}
	res, err := Run(context.Background(), comp, set, nil)
	require.NoError(t, err)
	require.Len(t, res, 2)

	require.Error(t, res[0].Err)
	assert.ErrorIs(t, res[0].Err, syscall.ENOSPC)
	assert.Equal(t, diag.CodeIO, diag.Classify(res[0].Err))
	assert.Contains(t, res[0].Err.Error(), "shard append")
	assert.NotContains(t, res[0].Err.Error(), "source iterate")
	assert.Equal(t, 1, strings.Count(res[0].Err.Error(), syscall.ENOSPC.Error()), "error reported once: %v", res[0].Err)
	require.Len(t, res[0].Shards, 1)
	assert.EqualValues(t, 1, res[0].Records)
	assert.Len(t, readRecords(t, res[0].Shards[0].Path), 1)
	_, err = os.Lstat(full)
	assert.NoError(t, err, "failed shard must stay on disk")

	assert.True(t, res[1].OK())
	assert.EqualValues(t, 3, res[1].Records)
	assert.Len(t, shardFiles(t, filepath.Join(out, "good")), 3)
}
