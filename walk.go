package tarball

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kaladron/tarball/internal/platform"
)

// WalkFunc receives each entry produced by a walk. Returning an error
// aborts the traversal.
type WalkFunc func(e *Entry) error

// WalkOption configures a directory walk.
type WalkOption func(*walkConfig)

type walkConfig struct {
	dereference   bool
	absoluteNames bool
	logger        *slog.Logger
}

// WalkWithDereference makes the walk follow symbolic links, archiving the
// link target's content instead of the link itself. Link cycles are
// detected and fail the walk with ErrLinkCycle.
func WalkWithDereference(dereference bool) WalkOption {
	return func(cfg *walkConfig) {
		cfg.dereference = dereference
	}
}

// WalkWithAbsoluteNames keeps leading slashes in member names. By default
// they are stripped so extraction stays inside its destination.
func WalkWithAbsoluteNames(absolute bool) WalkOption {
	return func(cfg *walkConfig) {
		cfg.absoluteNames = absolute
	}
}

// WalkWithLogger sets the logger for walk diagnostics.
func WalkWithLogger(logger *slog.Logger) WalkOption {
	return func(cfg *walkConfig) {
		cfg.logger = logger
	}
}

// Walk produces the entry stream for the filesystem subtree at root.
//
// The named path itself is emitted first (unless it cleans to "."), then
// its descendants, directories always before their contents and siblings
// in lexical order, so output is reproducible for a fixed tree. Metadata
// is taken from lstat: symbolic links become symlink entries unless
// dereferencing is enabled. Regular files with multiple hard links are
// emitted once; later paths to the same inode become hard link entries.
//
// The first per-path error aborts the walk.
func Walk(root string, fn WalkFunc, opts ...WalkOption) error {
	cfg := walkConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	w := &walker{
		cfg:    cfg,
		fn:     fn,
		inodes: make(map[platform.FileID]string),
		onPath: make(map[platform.FileID]struct{}),
	}

	fsPath := filepath.Clean(root)
	info, err := w.statRoot(fsPath)
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}

	name := w.archiveName(root)
	if name == "." {
		// Archiving the contents of a directory, not the directory
		// itself.
		if !info.IsDir() {
			return fmt.Errorf("walk %s: not a directory", root)
		}
		return w.walkDir(fsPath, "", info)
	}
	return w.visit(fsPath, name, info)
}

type walker struct {
	cfg    walkConfig
	fn     WalkFunc
	inodes map[platform.FileID]string   // first archive name per multi-link inode
	onPath map[platform.FileID]struct{} // directories on the current dereference chain
	unames map[int]string
	gnames map[int]string
}

func (w *walker) log() *slog.Logger {
	if w.cfg.logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return w.cfg.logger
}

func (w *walker) statRoot(fsPath string) (fs.FileInfo, error) {
	if w.cfg.dereference {
		return os.Stat(fsPath)
	}
	return os.Lstat(fsPath)
}

// archiveName converts a filesystem path to its member name: slash
// separated, cleaned, and with leading "/" and "../" stripped unless
// absolute names were requested.
func (w *walker) archiveName(p string) string {
	name := filepath.ToSlash(filepath.Clean(p))
	if w.cfg.absoluteNames {
		return name
	}
	if stripped := strings.TrimLeft(name, "/"); stripped != name {
		w.log().Debug("removing leading slash from member name", "name", name)
		name = stripped
	}
	for strings.HasPrefix(name, "../") {
		w.log().Debug("removing leading ../ from member name", "name", name)
		name = name[3:]
	}
	if name == "" || name == ".." {
		return "."
	}
	return name
}

// visit emits the entry for one filesystem object and recurses into
// directories.
func (w *walker) visit(fsPath, name string, info fs.FileInfo) error {
	mode := info.Mode()

	if mode&fs.ModeSymlink != 0 && w.cfg.dereference {
		resolved, err := os.Stat(fsPath)
		if err != nil {
			return fmt.Errorf("walk %s: %w", fsPath, err)
		}
		info, mode = resolved, resolved.Mode()
	}

	switch {
	case mode.IsDir():
		return w.visitDir(fsPath, name, info)
	case mode.IsRegular():
		return w.visitFile(fsPath, name, info)
	case mode&fs.ModeSymlink != 0:
		target, err := os.Readlink(fsPath)
		if err != nil {
			return fmt.Errorf("walk %s: %w", fsPath, err)
		}
		e := w.newEntry(name, info)
		e.Type = TypeSymlink
		e.Linkname = filepath.ToSlash(target)
		return w.fn(e)
	case mode&fs.ModeNamedPipe != 0:
		e := w.newEntry(name, info)
		e.Type = TypeFIFO
		return w.fn(e)
	case mode&fs.ModeDevice != 0:
		e := w.newEntry(name, info)
		e.Type = TypeBlock
		if mode&fs.ModeCharDevice != 0 {
			e.Type = TypeChar
		}
		e.Devmajor, e.Devminor = platform.DeviceNumbers(info)
		return w.fn(e)
	case mode&fs.ModeSocket != 0:
		// Sockets have no tar representation.
		w.log().Debug("skipping socket", "path", fsPath)
		return nil
	default:
		return fmt.Errorf("walk %s: %w", fsPath, ErrUnsupportedType)
	}
}

func (w *walker) visitDir(fsPath, name string, info fs.FileInfo) error {
	e := w.newEntry(name+"/", info)
	e.Type = TypeDirectory
	if err := w.fn(e); err != nil {
		return err
	}
	return w.walkDir(fsPath, name, info)
}

func (w *walker) walkDir(fsPath, name string, info fs.FileInfo) error {
	// Dereferencing can revisit a directory through a link; refuse to
	// loop.
	if w.cfg.dereference {
		if id, ok := platform.Identity(info); ok {
			if _, seen := w.onPath[id]; seen {
				return fmt.Errorf("walk %s: %w", fsPath, ErrLinkCycle)
			}
			w.onPath[id] = struct{}{}
			defer delete(w.onPath, id)
		}
	}

	children, err := os.ReadDir(fsPath) // sorted by filename
	if err != nil {
		return fmt.Errorf("walk %s: %w", fsPath, err)
	}
	for _, child := range children {
		childInfo, err := child.Info()
		if err != nil {
			return fmt.Errorf("walk %s: %w", filepath.Join(fsPath, child.Name()), err)
		}
		childName := child.Name()
		if name != "" {
			childName = name + "/" + childName
		}
		if err := w.visit(filepath.Join(fsPath, child.Name()), childName, childInfo); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) visitFile(fsPath, name string, info fs.FileInfo) error {
	e := w.newEntry(name, info)
	e.Type = TypeRegular
	e.Size = info.Size()

	// A second path to a multi-link inode becomes a hard link entry.
	if platform.LinkCount(info) > 1 {
		if id, ok := platform.Identity(info); ok {
			if first, seen := w.inodes[id]; seen {
				e.Type = TypeHardLink
				e.Linkname = first
				e.Size = 0
				return w.fn(e)
			}
			w.inodes[id] = name
		}
	}

	e.open = func() (io.ReadCloser, error) {
		return os.Open(fsPath)
	}
	return w.fn(e)
}

// newEntry builds the metadata common to every entry type.
func (w *walker) newEntry(name string, info fs.FileInfo) *Entry {
	uid, gid := platform.FileOwner(info)
	return &Entry{
		Name:    name,
		Mode:    info.Mode() & (fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky),
		UID:     uid,
		GID:     gid,
		Uname:   w.uname(uid),
		Gname:   w.gname(gid),
		ModTime: info.ModTime(),
	}
}

// uname resolves a numeric uid to a name, best effort. Results are cached
// for the walk; lookup failures leave the field empty.
func (w *walker) uname(uid int) string {
	if name, ok := w.unames[uid]; ok {
		return name
	}
	var name string
	if u, err := user.LookupId(strconv.Itoa(uid)); err == nil {
		name = u.Username
	}
	if w.unames == nil {
		w.unames = make(map[int]string)
	}
	w.unames[uid] = name
	return name
}

func (w *walker) gname(gid int) string {
	if name, ok := w.gnames[gid]; ok {
		return name
	}
	var name string
	if g, err := user.LookupGroupId(strconv.Itoa(gid)); err == nil {
		name = g.Name
	}
	if w.gnames == nil {
		w.gnames = make(map[int]string)
	}
	w.gnames[gid] = name
	return name
}
