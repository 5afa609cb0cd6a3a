package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	// EntryPrefix/EntrySuffix 组成缓存文件名：<prefix><fingerprint><suffix>。
	EntryPrefix = "stylecache-"
	EntrySuffix = ".css"

	tempPattern = ".stylecache-tmp-*"
	tempPrefix  = ".stylecache-tmp-"
)

// Store 负责管理编译结果的磁盘缓存。磁盘布局遵循：
//
//	<CacheDir>/stylecache-<fingerprint>.css
//
// 每个条目仅由一个正文文件组成，文件的 ModTime 即条目年龄。
type Store interface {
	// Get 返回一个可流式读取的缓存条目。若不存在（包括列出后被并发删除）则返回 ErrNotFound。
	Get(ctx context.Context, fingerprint string) (*ReadResult, error)

	// Put 通过临时文件 + rename 写入条目，失败时清理临时文件。
	// 同一指纹的并发写入互不影响，最后一次 rename 生效。
	Put(ctx context.Context, fingerprint string, body io.Reader, opts PutOptions) (*Entry, error)

	// Remove 删除单个条目，条目不存在不视为错误。
	Remove(ctx context.Context, fingerprint string) error

	// Sweep 删除早于 maxAge 的条目；force 为 true 时删除全部条目。
	// 单个条目删除失败只记录在结果中，不会中断整体清理。
	Sweep(ctx context.Context, maxAge time.Duration, force bool) (SweepResult, error)

	// List 返回当前目录中的全部条目，供诊断接口使用。
	List(ctx context.Context) ([]Entry, error)
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Entry 描述一个缓存条目的文件信息。
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	FilePath    string    `json:"file_path"`
	SizeBytes   int64     `json:"size_bytes"`
	ModTime     time.Time `json:"mod_time"`
}

// ReadResult 组合 Entry 与正文 Reader，调用方负责关闭 Reader。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

// SweepResult 汇总一次清理的结果。
type SweepResult struct {
	Scanned int
	Removed int
	Failed  []EvictionError
}

// EvictionError 记录单个条目删除失败的原因。
type EvictionError struct {
	Path string
	Err  error
}

func (e EvictionError) Error() string {
	return fmt.Sprintf("evict %s: %v", e.Path, e.Err)
}

func (e EvictionError) Unwrap() error {
	return e.Err
}

var (
	// ErrNotFound 表示缓存不存在。
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidFingerprint 表示缓存键不是合法指纹，拒绝拼接到路径中。
	ErrInvalidFingerprint = errors.New("invalid fingerprint")
)
