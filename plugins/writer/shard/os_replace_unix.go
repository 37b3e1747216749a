//go:build !windows

package shard

import "os"

// replaceShard 将暂存文件改名为分片最终名；同目录 rename 在 POSIX 上原子。
func replaceShard(tmpPath, dest string) error {
	return os.Rename(tmpPath, dest)
}

// syncShardDir fsync 分片目录，使改名在崩溃后可见。
func syncShardDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	serr := d.Sync()
	if cerr := d.Close(); serr == nil {
		serr = cerr
	}
	return serr
}
