package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joseph-ayodele/docrouter/internal/common"
)

// maxSuffix bounds the collision search.
const maxSuffix = 10_000

// Relocator moves files into place without overwriting existing files.
type Relocator struct {
	logger *slog.Logger
}

func NewRelocator(logger *slog.Logger) *Relocator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relocator{logger: logger}
}

// Move relocates src to dest, creating parent directories. If dest exists,
// "_1", "_2", ... is appended before the extension until a free name is
// found. It returns the final path. On error the source is left untouched
// and nothing is left at the destination.
func (r *Relocator) Move(src, dest string) (string, error) {
	if _, err := os.Stat(src); err != nil {
		return "", &common.RelocationError{Src: src, Dest: dest, Cause: err}
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", &common.RelocationError{Src: src, Dest: dest, Cause: err}
	}

	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(dest, ext)
	for i := 0; i <= maxSuffix; i++ {
		candidate := dest
		if i > 0 {
			candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		if _, err := os.Lstat(candidate); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", &common.RelocationError{Src: src, Dest: candidate, Cause: err}
		}

		err := r.claim(src, candidate)
		if errors.Is(err, fs.ErrExist) {
			// lost a race for this name; try the next one
			continue
		}
		if err != nil {
			return "", &common.RelocationError{Src: src, Dest: candidate, Cause: err}
		}
		if i > 0 {
			r.logger.Debug("destination existed, used suffix", "dest", dest, "final", candidate)
		}
		return candidate, nil
	}
	return "", &common.RelocationError{Src: src, Dest: dest, Cause: errors.New("no free destination name")}
}

// claim moves src to a candidate that must not exist yet.
func (r *Relocator) claim(src, candidate string) error {
	err := os.Link(src, candidate)
	if err == nil {
		if rmErr := os.Remove(src); rmErr != nil {
			_ = os.Remove(candidate)
			return rmErr
		}
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return err
	}
	if !linkUnsupported(err) {
		return err
	}
	return r.copyThenRemove(src, candidate)
}

// copyThenRemove handles moves across filesystems or onto filesystems
// without hard links.
func (r *Relocator) copyThenRemove(src, candidate string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := in.Close(); cerr != nil {
			r.logger.Warn("close source failed", "path", src, "error", cerr)
		}
	}()
	st, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(candidate, os.O_WRONLY|os.O_CREATE|os.O_EXCL, st.Mode().Perm())
	if err != nil {
		return err
	}
	cleanup := func(cause error) error {
		_ = out.Close()
		_ = os.Remove(candidate)
		return cause
	}
	if _, err := io.Copy(out, in); err != nil {
		return cleanup(err)
	}
	if err := out.Sync(); err != nil {
		return cleanup(err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(candidate)
		return err
	}
	_ = os.Chtimes(candidate, st.ModTime(), st.ModTime())

	if err := os.Remove(src); err != nil {
		_ = os.Remove(candidate)
		return err
	}
	return nil
}

func linkUnsupported(err error) bool {
	return errors.Is(err, syscall.EXDEV) ||
		errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.ENOTSUP) ||
		errors.Is(err, syscall.EMLINK)
}
