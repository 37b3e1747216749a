package contract

import (
	"fmt"
	"path"
	"strings"
)

// NormalizeSource 规范化输入源标识，统一为跨平台稳定的形式。
// 规则：
// - 使用正斜杠分隔符
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
// - "-"（STDIN）原样返回
func NormalizeSource(p string) string {
	if p == "-" {
		return p
	}
	s := strings.ReplaceAll(p, "\\", "/")
	return path.Clean(s)
}

// ValidateSplitName 校验分区名可安全用作单级目录名与文件名前缀。
func ValidateSplitName(name SplitName) error {
	s := string(name)
	if strings.TrimSpace(s) == "" || s != strings.TrimSpace(s) {
		return fmt.Errorf("%w: split name %q", ErrPathInvalid, s)
	}
	if s == "." || s == ".." || strings.ContainsAny(s, `/\:`) {
		return fmt.Errorf("%w: split name %q", ErrPathInvalid, s)
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("%w: split name %q", ErrPathInvalid, s)
		}
	}
	return nil
}
