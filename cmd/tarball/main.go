// Command tarball creates, lists, and extracts ustar archives.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/kaladron/tarball"
	"github.com/kaladron/tarball/compression"
)

type config struct {
	create  bool
	extract bool
	list    bool

	file      string
	directory string

	gzip  bool
	bzip2 bool
	xz    bool
	zstd  bool

	verbose       bool
	preservePerms bool
	absoluteNames bool
	dereference   bool

	paths []string
}

func main() {
	cfg, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "tarball: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "tarball: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps archive corruption to a distinct status so scripts can
// tell a damaged archive from an environmental failure.
func exitCode(err error) int {
	if errors.Is(err, tarball.ErrCorrupt) || errors.Is(err, tarball.ErrTruncated) {
		return 2
	}
	return 1
}

func parseFlags(args []string) (*config, error) {
	cfg := &config{}

	fs := flag.NewFlagSet("tarball", flag.ContinueOnError)
	fs.BoolVar(&cfg.create, "c", false, "create a new archive")
	fs.BoolVar(&cfg.create, "create", false, "create a new archive")
	fs.BoolVar(&cfg.extract, "x", false, "extract an archive")
	fs.BoolVar(&cfg.extract, "extract", false, "extract an archive")
	fs.BoolVar(&cfg.list, "t", false, "list archive contents")
	fs.BoolVar(&cfg.list, "list", false, "list archive contents")
	fs.StringVar(&cfg.file, "f", "-", "archive file, - for stdin/stdout")
	fs.StringVar(&cfg.directory, "C", "", "change to directory before operating")
	fs.BoolVar(&cfg.gzip, "z", false, "filter the archive through gzip")
	fs.BoolVar(&cfg.bzip2, "j", false, "filter the archive through bzip2")
	fs.BoolVar(&cfg.xz, "J", false, "filter the archive through xz")
	fs.BoolVar(&cfg.zstd, "zstd", false, "filter the archive through zstd")
	fs.BoolVar(&cfg.verbose, "v", false, "list each entry processed")
	fs.BoolVar(&cfg.preservePerms, "p", false, "preserve file permissions on extraction")
	fs.BoolVar(&cfg.absoluteNames, "P", false, "do not strip leading / from names")
	fs.BoolVar(&cfg.dereference, "L", false, "follow symlinks when archiving")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.paths = fs.Args()

	modes := 0
	for _, on := range []bool{cfg.create, cfg.extract, cfg.list} {
		if on {
			modes++
		}
	}
	if modes != 1 {
		return nil, errors.New("exactly one of -c, -x, -t is required")
	}
	filters := 0
	for _, on := range []bool{cfg.gzip, cfg.bzip2, cfg.xz, cfg.zstd} {
		if on {
			filters++
		}
	}
	if filters > 1 {
		return nil, errors.New("at most one compression filter may be given")
	}
	if cfg.bzip2 && cfg.create {
		return nil, errors.New("bzip2 compression is not supported for creation")
	}
	return cfg, nil
}

// archivePath anchors a relative -f path at the invocation directory so
// that -C does not move the archive file along with the operation.
func archivePath(file, dir string) (string, error) {
	if file == "-" || dir == "" || filepath.IsAbs(file) {
		return file, nil
	}
	return filepath.Abs(file)
}

func (c *config) format() compression.Format {
	switch {
	case c.gzip:
		return compression.Gzip
	case c.bzip2:
		return compression.Bzip2
	case c.xz:
		return compression.XZ
	case c.zstd:
		return compression.Zstd
	}
	return compression.None
}

func run(ctx context.Context, cfg *config) error {
	if cfg.directory != "" {
		file, err := archivePath(cfg.file, cfg.directory)
		if err != nil {
			return err
		}
		cfg.file = file
		if err := os.Chdir(cfg.directory); err != nil {
			return err
		}
	}
	switch {
	case cfg.create:
		return runCreate(ctx, cfg)
	case cfg.extract:
		return runExtract(ctx, cfg)
	default:
		return runList(cfg)
	}
}

func runCreate(ctx context.Context, cfg *config) error {
	if len(cfg.paths) == 0 {
		return tarball.ErrEmptyArchive
	}

	var out io.Writer = os.Stdout
	if cfg.file != "-" {
		f, err := os.Create(cfg.file)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	cw, err := compression.NewWriter(out, cfg.format())
	if err != nil {
		return err
	}

	opts := []tarball.CreateOption{}
	if cfg.dereference {
		opts = append(opts, tarball.CreateWithDereference(true))
	}
	if cfg.absoluteNames {
		opts = append(opts, tarball.CreateWithAbsoluteNames(true))
	}
	if cfg.verbose {
		opts = append(opts, tarball.CreateWithVerboseFunc(printEntry))
	}

	if err := tarball.Create(ctx, cw, cfg.paths, opts...); err != nil {
		cw.Close()
		return err
	}
	if err := cw.Close(); err != nil {
		return err
	}
	if f, ok := out.(*os.File); ok && f != os.Stdout {
		return f.Close()
	}
	return nil
}

func runExtract(ctx context.Context, cfg *config) error {
	in, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer in.Close()

	opts := []tarball.ExtractOption{
		tarball.ExtractWithPreservePermissions(cfg.preservePerms),
	}
	if cfg.absoluteNames {
		opts = append(opts, tarball.ExtractWithAbsoluteNames(true))
	}
	if cfg.verbose {
		opts = append(opts, tarball.ExtractWithVerboseFunc(printEntry))
	}

	return tarball.Extract(ctx, in, ".", opts...)
}

func runList(cfg *config) error {
	in, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer in.Close()

	return tarball.List(in, func(e *tarball.Entry) error {
		if cfg.verbose {
			fmt.Printf("%s %10d %s %s\n", e.Mode, e.Size, e.ModTime.Format("2006-01-02 15:04"), e.Name)
		} else {
			fmt.Println(e.Name)
		}
		return nil
	})
}

// openArchive opens the input stream and unwraps any recognized
// compression filter. The filter flags are ignored on read; the format
// is detected from the stream itself.
func openArchive(cfg *config) (io.ReadCloser, error) {
	var src io.Reader = os.Stdin
	var file *os.File
	if cfg.file != "-" {
		f, err := os.Open(cfg.file)
		if err != nil {
			return nil, err
		}
		file = f
		src = f
	}

	format, br, err := compression.Detect(src)
	if err != nil {
		if file != nil {
			file.Close()
		}
		return nil, err
	}
	cr, err := compression.NewReader(br, format)
	if err != nil {
		if file != nil {
			file.Close()
		}
		return nil, err
	}
	return &archiveInput{ReadCloser: cr, file: file}, nil
}

type archiveInput struct {
	io.ReadCloser
	file *os.File
}

func (a *archiveInput) Close() error {
	err := a.ReadCloser.Close()
	if a.file != nil {
		if cerr := a.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func printEntry(e *tarball.Entry) {
	fmt.Fprintln(os.Stderr, e.Name)
}
