package history

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Archive appends day records as zstd-compressed JSON lines, one file per
// simulation run.
type Archive struct {
	baseDir string

	mu     sync.Mutex
	curRun string
	f      *os.File
	enc    *zstd.Encoder
	w      *bufio.Writer
}

// NewArchive creates an archive writing under baseDir.
func NewArchive(baseDir string) *Archive {
	return &Archive{baseDir: baseDir}
}

// RecordDay appends rec to its run's file, rotating when the run changes.
func (a *Archive) RecordDay(_ context.Context, rec *DayRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if rec.RunID != a.curRun || a.f == nil {
		if err := a.rotateLocked(rec.RunID); err != nil {
			return fmt.Errorf("archive rotate: %w", err)
		}
	}

	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := a.w.Write(b); err != nil {
		return err
	}
	if err := a.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := a.w.Flush(); err != nil {
		return err
	}
	return a.enc.Flush()
}

// Close flushes and closes the current file.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closeLocked()
}

// PathForRun returns the archive file for a run.
func (a *Archive) PathForRun(runID string) string {
	return filepath.Join(a.baseDir, "days-"+runID+".jsonl.zst")
}

func (a *Archive) rotateLocked(runID string) error {
	if err := a.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(a.baseDir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(a.PathForRun(runID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	a.curRun = runID
	a.f = f
	a.enc = enc
	a.w = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

func (a *Archive) closeLocked() error {
	if a.f == nil {
		return nil
	}
	var firstErr error
	if a.w != nil {
		if err := a.w.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.enc != nil {
		if err := a.enc.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := a.f.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	a.f, a.enc, a.w = nil, nil, nil
	a.curRun = ""
	return firstErr
}
