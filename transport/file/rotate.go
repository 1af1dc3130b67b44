// Package file — rotate.go implements the size-based rotation backing the
// audit log.
//
// When the active file would grow past MaxBytes it is renamed with a numeric
// suffix (audit.jsonl → audit.jsonl.1, existing backups shift to .2, .3, …)
// and a fresh file is opened. At most MaxBackups rotated files are kept.
package file

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// RotateConfig controls rotation behaviour.
type RotateConfig struct {
	// FilePath is the active file name (required).
	FilePath string

	// MaxBytes triggers rotation when the active file would exceed this
	// size. Zero disables rotation (the file grows without bound).
	MaxBytes int64

	// MaxBackups is the number of rotated files to keep. Zero keeps all.
	MaxBackups int
}

// RotatingFile is an io.WriteCloser that performs size-based rotation.
// It is safe for concurrent use, and each Write lands in exactly one file —
// a buffer is never split across a rotation boundary.
type RotatingFile struct {
	mu     sync.Mutex
	cfg    RotateConfig
	f      *os.File
	size   int64
	logger *slog.Logger
}

// NewRotatingFile opens (or creates, along with its parent directory) the
// file at cfg.FilePath. The caller must call Close when finished.
func NewRotatingFile(cfg RotateConfig, logger *slog.Logger) (*RotatingFile, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("transport/file: rotate: FilePath is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(noopWriter{}, nil))
	}
	dir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("transport/file: rotate: mkdir %s: %w", dir, err)
	}
	rf := &RotatingFile{cfg: cfg, logger: logger}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

// Write implements io.Writer, rotating first when p would push the active
// file past MaxBytes.
func (rf *RotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.cfg.MaxBytes > 0 && rf.size > 0 && rf.size+int64(len(p)) > rf.cfg.MaxBytes {
		if err := rf.rotate(); err != nil {
			// Keep appending to the oversized file rather than losing data.
			rf.logger.Error("transport/file: rotation failed", "file", rf.cfg.FilePath, "error", err.Error())
		}
	}
	n, err := rf.f.Write(p)
	rf.size += int64(n)
	return n, err
}

// Close closes the underlying file. Safe to call more than once.
func (rf *RotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.f == nil {
		return nil
	}
	err := rf.f.Close()
	rf.f = nil
	return err
}

func (rf *RotatingFile) open() error {
	f, err := os.OpenFile(rf.cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("transport/file: rotate: open %s: %w", rf.cfg.FilePath, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("transport/file: rotate: stat %s: %w", rf.cfg.FilePath, err)
	}
	rf.f, rf.size = f, st.Size()
	return nil
}

// rotate shifts backups up by one (.N → .N+1 from the oldest down), moves the
// active file to .1 and reopens it empty. Caller holds rf.mu.
func (rf *RotatingFile) rotate() error {
	if rf.f != nil {
		_ = rf.f.Close()
		rf.f = nil
	}
	base := rf.cfg.FilePath

	// top is the highest suffix the shift below may produce.
	top := rf.cfg.MaxBackups
	if top <= 0 {
		for top = 1; ; top++ {
			if _, err := os.Stat(fmt.Sprintf("%s.%d", base, top)); err != nil {
				break
			}
		}
	} else {
		_ = os.Remove(fmt.Sprintf("%s.%d", base, top))
	}
	for i := top - 1; i >= 1; i-- {
		_ = os.Rename(fmt.Sprintf("%s.%d", base, i), fmt.Sprintf("%s.%d", base, i+1))
	}
	if err := os.Rename(base, base+".1"); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("transport/file: rotate %s: %w", base, err)
	}

	// Drop strays above the retention limit, e.g. after MaxBackups was
	// lowered between runs.
	for i := rf.cfg.MaxBackups + 1; rf.cfg.MaxBackups > 0; i++ {
		if os.Remove(fmt.Sprintf("%s.%d", base, i)) != nil {
			break
		}
	}

	rf.logger.Info("transport/file: rotated", "file", base)
	return rf.open()
}
