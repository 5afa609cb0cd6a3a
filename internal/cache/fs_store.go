package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/any-hub/stylecache/internal/fingerprint"
)

// NewStore 以 basePath 为缓存目录构建磁盘缓存，整个进程复用一份实例。
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("cache dir required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &fileStore{basePath: abs}, nil
}

// fileStore 不持有任何跨请求的可变状态，并发安全完全依赖 rename 的原子性。
type fileStore struct {
	basePath string
}

func (s *fileStore) Get(ctx context.Context, fp string) (*ReadResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := s.entryPath(fp)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	// stat 与 open 之间可能被清理协程删除，同样按未命中处理
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &ReadResult{
		Entry: Entry{
			Fingerprint: fp,
			FilePath:    filePath,
			SizeBytes:   info.Size(),
			ModTime:     info.ModTime(),
		},
		Reader: f,
	}, nil
}

func (s *fileStore) Put(ctx context.Context, fp string, body io.Reader, opts PutOptions) (*Entry, error) {
	filePath, err := s.entryPath(fp)
	if err != nil {
		return nil, err
	}

	tempFile, err := os.CreateTemp(s.basePath, tempPattern)
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, err
	}

	if err := os.Chmod(tempName, 0o644); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}
	if err := os.Chtimes(tempName, modTime, modTime); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	return &Entry{
		Fingerprint: fp,
		FilePath:    filePath,
		SizeBytes:   written,
		ModTime:     modTime,
	}, nil
}

func (s *fileStore) Remove(ctx context.Context, fp string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	filePath, err := s.entryPath(fp)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *fileStore) Sweep(ctx context.Context, maxAge time.Duration, force bool) (SweepResult, error) {
	var result SweepResult

	dirEntries, err := os.ReadDir(s.basePath)
	if err != nil {
		return result, fmt.Errorf("list cache dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if de.IsDir() {
			continue
		}

		name := de.Name()
		_, isEntry := fingerprintFromName(name)
		isTemp := strings.HasPrefix(name, tempPrefix)
		if !isEntry && !isTemp {
			continue
		}
		result.Scanned++

		info, err := de.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				result.Failed = append(result.Failed, EvictionError{Path: filepath.Join(s.basePath, name), Err: err})
			}
			continue
		}

		// 临时文件可能属于仍在写入的请求，只按年龄清理
		expired := info.ModTime().Before(cutoff)
		if !expired && !(force && isEntry) {
			continue
		}

		path := filepath.Join(s.basePath, name)
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				result.Failed = append(result.Failed, EvictionError{Path: path, Err: err})
			}
			continue
		}
		result.Removed++
	}

	return result, nil
}

func (s *fileStore) List(ctx context.Context) ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("list cache dir: %w", err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if de.IsDir() {
			continue
		}
		fp, ok := fingerprintFromName(de.Name())
		if !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Fingerprint: fp,
			FilePath:    filepath.Join(s.basePath, de.Name()),
			SizeBytes:   info.Size(),
			ModTime:     info.ModTime(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModTime.After(entries[j].ModTime)
	})
	return entries, nil
}

func (s *fileStore) entryPath(fp string) (string, error) {
	if !fingerprint.Valid(fp) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFingerprint, fp)
	}
	return filepath.Join(s.basePath, EntryPrefix+fp+EntrySuffix), nil
}

func fingerprintFromName(name string) (string, bool) {
	if !strings.HasPrefix(name, EntryPrefix) || !strings.HasSuffix(name, EntrySuffix) {
		return "", false
	}
	fp := strings.TrimSuffix(strings.TrimPrefix(name, EntryPrefix), EntrySuffix)
	if !fingerprint.Valid(fp) {
		return "", false
	}
	return fp, true
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
