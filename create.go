package tarball

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Create builds an archive from the named paths and streams it to w.
//
// Each path is walked in order; directories contribute themselves and
// their contents, parents before children, siblings in lexical order, so
// the archive is reproducible for a fixed input set. File payloads are
// streamed in fixed-size chunks and never buffered whole.
//
// Creating an archive from zero paths fails with ErrEmptyArchive before
// anything is written.
//
// Enumeration and serialization run as two goroutines joined by a bounded
// entry queue; entries stay strictly ordered and each data handle is
// consumed exactly once, on the serializing side.
func Create(ctx context.Context, w io.Writer, paths []string, opts ...CreateOption) error {
	cfg := createConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(paths) == 0 {
		return ErrEmptyArchive
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger.Info("creating archive", "paths", len(paths))

	walkOpts := []WalkOption{
		WalkWithDereference(cfg.dereference),
		WalkWithAbsoluteNames(cfg.absoluteNames),
		WalkWithLogger(cfg.logger),
	}

	entries := make(chan *Entry, 16)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(entries)
		for _, p := range paths {
			err := Walk(p, func(e *Entry) error {
				select {
				case entries <- e:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			}, walkOpts...)
			if err != nil {
				return err
			}
		}
		return nil
	})

	g.Go(func() error {
		tw := NewWriter(w)
		count := 0
		for e := range entries {
			if cfg.verbose != nil {
				cfg.verbose(e)
			}
			if err := writeEntryData(tw, e); err != nil {
				return err
			}
			count++
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Debug("archive data written", "entries", count)
		return tw.Close()
	})

	return g.Wait()
}

// writeEntryData writes one entry's header and streams its payload.
func writeEntryData(tw *Writer, e *Entry) error {
	if err := tw.WriteEntry(e); err != nil {
		return err
	}
	if e.Type != TypeRegular || e.Size == 0 {
		return nil
	}

	rc, err := e.Open()
	if err != nil {
		return fmt.Errorf("add %s: %w", e.Name, err)
	}
	defer rc.Close()

	// Exactly the declared size: a file that shrank underneath the walk
	// must not silently corrupt the stream.
	n, err := io.CopyN(tw, rc, e.Size)
	if err == io.EOF {
		return fmt.Errorf("add %s: file shrank to %d bytes during archiving", e.Name, n)
	}
	if err != nil {
		return fmt.Errorf("add %s: %w", e.Name, err)
	}
	return nil
}
