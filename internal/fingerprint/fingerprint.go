// Package fingerprint derives the cache key / entity tag for a compiled
// stylesheet from the modification times of every file the compiler read and
// the serialized compiler options.
package fingerprint

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Size 是指纹字符串的固定长度（xxhash64 的十六进制表示）。
const Size = 16

// Serializer 由编译配置实现，输出必须对逻辑相等的配置保持一致。
type Serializer interface {
	Serialize() string
}

// FileNotFoundError 表示根文件或导入文件在列出后、读取 mtime 前消失。
type FileNotFoundError struct {
	Path string
	Err  error
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("file not found while fingerprinting: %s", e.Path)
}

func (e *FileNotFoundError) Unwrap() error {
	return e.Err
}

// Builder 计算指纹；Stat 可在测试中替换。
type Builder struct {
	Stat func(name string) (fs.FileInfo, error)
}

var defaultBuilder = Builder{Stat: os.Stat}

// Build 使用 os.Stat 计算指纹，见 Builder.Build。
func Build(root string, touched []string, cfg Serializer) (string, error) {
	return defaultBuilder.Build(root, touched, cfg)
}

// Build 按 "root=rootMtime,path=mtime,...::config" 的顺序写入摘要。根路径参与摘要，
// 同一时刻修改的不同根文件不会共享指纹。touched 为空时
// 只有根文件参与（编译器无法报告导入时的降级模式）。任意文件缺失都会失败，
// 不会被静默跳过。
func (b Builder) Build(root string, touched []string, cfg Serializer) (string, error) {
	stat := b.Stat
	if stat == nil {
		stat = os.Stat
	}

	rootMtime, err := mtime(stat, root)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	buf.WriteString(root)
	buf.WriteByte('=')
	buf.WriteString(rootMtime)
	for _, path := range touched {
		m, err := mtime(stat, path)
		if err != nil {
			return "", err
		}
		buf.WriteByte(',')
		buf.WriteString(path)
		buf.WriteByte('=')
		buf.WriteString(m)
	}
	buf.WriteString("::")
	if cfg != nil {
		buf.WriteString(cfg.Serialize())
	}

	return fmt.Sprintf("%016x", xxhash.Sum64String(buf.String())), nil
}

func mtime(stat func(string) (fs.FileInfo, error), path string) (string, error) {
	info, err := stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &FileNotFoundError{Path: path, Err: err}
		}
		return "", fmt.Errorf("stat %s: %w", path, err)
	}
	return strconv.FormatInt(info.ModTime().UnixNano(), 10), nil
}

// Valid 判断字符串是否形如本包生成的指纹，用于拒绝来自外部的非法缓存键。
func Valid(fp string) bool {
	if len(fp) != Size {
		return false
	}
	for i := 0; i < len(fp); i++ {
		c := fp[i]
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
