package tarball

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Extract reads a tar stream from r and materializes it under dest,
// entry by entry in stream order.
//
// Entries whose destination would resolve outside dest, whether by an
// absolute name, a ".." segment, or a path through a symlink extracted
// earlier in the stream, are rejected with ErrInsecurePath before
// anything is written, unless absolute names were explicitly enabled. Regular files are written atomically: the payload
// streams to a temporary file in the target directory which is renamed
// into place only once complete, so a failed entry never leaves a
// half-written file at its final path.
//
// Existing regular files are overwritten by default. An existing
// directory where a file is expected is an error; it is never removed.
func Extract(ctx context.Context, r io.Reader, dest string, opts ...ExtractOption) error {
	cfg := extractConfig{overwrite: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	ex := &extractor{
		cfg:      cfg,
		dest:     dest,
		links:    make(map[string]string),
		dirTimes: make(map[string]time.Time),
	}
	ex.log().Info("extracting archive", "dest", dest)

	tr := NewReader(r)
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if cfg.verbose != nil {
			cfg.verbose(e)
		}
		if err := ex.apply(e, tr); err != nil {
			return err
		}
		count++
	}

	ex.restoreDirTimes()
	ex.log().Debug("archive extracted", "entries", count)
	return nil
}

// extractor holds per-extraction state: the hard link table and the
// directory mtimes deferred until all children are in place.
type extractor struct {
	cfg      extractConfig
	dest     string
	links    map[string]string // archive name -> extracted filesystem path
	dirTimes map[string]time.Time
}

func (ex *extractor) log() *slog.Logger {
	if ex.cfg.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return ex.cfg.logger
}

// target resolves an entry name to its destination path, rejecting names
// that would escape the destination root. Absolute names are an error,
// not sanitized: a rewritten name would mask an attacker-controlled
// archive.
func (ex *extractor) target(name string) (string, error) {
	clean := strings.TrimSuffix(name, "/")

	if ex.cfg.absoluteNames {
		if strings.HasPrefix(clean, "/") {
			return filepath.FromSlash(clean), nil
		}
		return filepath.Join(ex.dest, filepath.FromSlash(clean)), nil
	}

	if strings.HasPrefix(clean, "/") {
		return "", fmt.Errorf("%w: %q", ErrInsecurePath, name)
	}
	rel := filepath.Clean(filepath.FromSlash(clean))
	if rel == "." {
		// GNU tar archives of "." open with a "./" member; it maps onto
		// the destination itself.
		return ex.dest, nil
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrInsecurePath, name)
	}
	return filepath.Join(ex.dest, rel), nil
}

// verifyNoLinkPrefix rejects a target whose existing ancestors under the
// destination include a symlink. Lexical containment alone would let a
// symlink member extracted earlier in the stream redirect this entry
// outside the destination root.
func (ex *extractor) verifyNoLinkPrefix(name, target string) error {
	if ex.cfg.absoluteNames {
		return nil
	}
	rel, err := filepath.Rel(ex.dest, target)
	if err != nil || rel == "." {
		return err
	}
	parts := strings.Split(rel, string(filepath.Separator))
	p := ex.dest
	for _, part := range parts[:len(parts)-1] {
		p = filepath.Join(p, part)
		info, err := os.Lstat(p)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("extract %s: %w", name, err)
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%w: %q traverses a symlink", ErrInsecurePath, name)
		}
	}
	return nil
}

// apply materializes one entry.
func (ex *extractor) apply(e *Entry, payload io.Reader) error {
	target, err := ex.target(e.Name)
	if err != nil {
		return err
	}
	if err := ex.verifyNoLinkPrefix(e.Name, target); err != nil {
		return err
	}

	// Stream order puts parents first, but tolerate reordered or
	// hand-crafted archives.
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("extract %s: %w", e.Name, err)
	}

	switch e.Type {
	case TypeDirectory:
		return ex.applyDir(e, target)
	case TypeRegular:
		return ex.applyFile(e, target, payload)
	case TypeSymlink:
		return ex.applySymlink(e, target)
	case TypeHardLink:
		return ex.applyHardLink(e, target)
	case TypeChar, TypeBlock, TypeFIFO, TypeUnsupported:
		if ex.cfg.skipUnsupported {
			ex.log().Debug("skipping unsupported entry", "name", e.Name, "type", e.Type.String())
			return nil
		}
		return fmt.Errorf("extract %s: %w (%s)", e.Name, ErrUnsupportedType, e.Type)
	default:
		return fmt.Errorf("extract %s: %w", e.Name, ErrUnsupportedType)
	}
}

func (ex *extractor) applyDir(e *Entry, target string) error {
	mode := ex.createMode(e)
	if err := os.Mkdir(target, mode); err != nil {
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("extract %s: %w", e.Name, err)
		}
		info, statErr := os.Lstat(target)
		if statErr != nil {
			return fmt.Errorf("extract %s: %w", e.Name, statErr)
		}
		if !info.IsDir() {
			return fmt.Errorf("extract %s: exists and is not a directory", e.Name)
		}
	}
	if ex.cfg.preservePermissions {
		if err := os.Chmod(target, e.Mode); err != nil {
			return fmt.Errorf("extract %s: %w", e.Name, err)
		}
	}
	if !e.ModTime.IsZero() {
		// Applied after all children exist; writing into the directory
		// would clobber it now.
		ex.dirTimes[target] = e.ModTime
	}
	return nil
}

func (ex *extractor) applyFile(e *Entry, target string, payload io.Reader) error {
	if info, err := os.Lstat(target); err == nil {
		if info.IsDir() {
			return fmt.Errorf("extract %s: directory in the way of a regular file", e.Name)
		}
		if !ex.cfg.overwrite {
			return fmt.Errorf("extract %s: %w", e.Name, fs.ErrExist)
		}
	}

	// Temp file in the target directory, renamed over the destination
	// once the payload is complete.
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tarball-*")
	if err != nil {
		return fmt.Errorf("extract %s: %w", e.Name, err)
	}
	tmpPath := tmp.Name()
	discard := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := io.Copy(tmp, payload); err != nil {
		discard()
		return fmt.Errorf("extract %s: %w", e.Name, err)
	}
	if err := tmp.Chmod(ex.createMode(e)); err != nil {
		discard()
		return fmt.Errorf("extract %s: %w", e.Name, err)
	}
	if err := tmp.Close(); err != nil {
		discard()
		return fmt.Errorf("extract %s: %w", e.Name, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("extract %s: %w", e.Name, err)
	}
	if !e.ModTime.IsZero() {
		if err := os.Chtimes(target, e.ModTime, e.ModTime); err != nil {
			return fmt.Errorf("extract %s: %w", e.Name, err)
		}
	}

	ex.links[e.Name] = target
	return nil
}

func (ex *extractor) applySymlink(e *Entry, target string) error {
	if _, err := os.Lstat(target); err == nil {
		if !ex.cfg.overwrite {
			return fmt.Errorf("extract %s: %w", e.Name, fs.ErrExist)
		}
		if info, _ := os.Lstat(target); info != nil && info.IsDir() {
			return fmt.Errorf("extract %s: directory in the way of a symlink", e.Name)
		}
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("extract %s: %w", e.Name, err)
		}
	}
	if err := os.Symlink(filepath.FromSlash(e.Linkname), target); err != nil {
		return fmt.Errorf("extract %s: %w", e.Name, err)
	}
	// Mode bits on symlinks are not settable on most systems; skipped.
	return nil
}

func (ex *extractor) applyHardLink(e *Entry, target string) error {
	src, ok := ex.links[e.Linkname]
	if !ok {
		return fmt.Errorf("extract %s: %w: %q", e.Name, ErrDanglingLink, e.Linkname)
	}
	if _, err := os.Lstat(target); err == nil {
		if !ex.cfg.overwrite {
			return fmt.Errorf("extract %s: %w", e.Name, fs.ErrExist)
		}
		if info, _ := os.Lstat(target); info != nil && info.IsDir() {
			return fmt.Errorf("extract %s: directory in the way of a hard link", e.Name)
		}
		if err := os.Remove(target); err != nil {
			return fmt.Errorf("extract %s: %w", e.Name, err)
		}
	}
	if err := os.Link(src, target); err != nil {
		return fmt.Errorf("extract %s: %w", e.Name, err)
	}
	ex.links[e.Name] = target
	return nil
}

// createMode picks the mode used when creating an object. Without
// permission preservation the process umask applies and special bits are
// dropped.
func (ex *extractor) createMode(e *Entry) fs.FileMode {
	if ex.cfg.preservePermissions {
		return e.Mode
	}
	return e.Mode.Perm()
}

// restoreDirTimes applies deferred directory mtimes, deepest paths first
// so that touching a child cannot disturb an already-restored parent.
func (ex *extractor) restoreDirTimes() {
	paths := make([]string, 0, len(ex.dirTimes))
	for p := range ex.dirTimes {
		paths = append(paths, p)
	}
	// Deeper paths sort after their parents; walk the list backwards.
	slices.Sort(paths)
	for i := len(paths) - 1; i >= 0; i-- {
		mtime := ex.dirTimes[paths[i]]
		if err := os.Chtimes(paths[i], mtime, mtime); err != nil {
			ex.log().Debug("could not restore directory mtime", "path", paths[i], "error", err)
		}
	}
}
