// Package tarball implements a streaming ustar tar codec with PAX and
// GNU long-name extensions, plus high-level archive creation, listing,
// and extraction.
//
// The low-level surface mirrors the wire format: [Writer] emits one
// 512-byte header block per entry followed by the NUL-padded payload,
// and [Reader] walks an archive entry by entry. Names and numeric
// fields that do not fit the fixed ustar fields are carried in PAX
// extended headers on write; on read both PAX records and the older
// GNU 'L'/'K' entries are understood, with PAX taking precedence.
//
// The high-level surface works on directory trees:
//
//	f, err := os.Create("src.tar")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	err = tarball.Create(ctx, f, []string{"./src"})
//
// Extraction refuses entries whose names escape the destination:
//
//	err = tarball.Extract(ctx, f, "/tmp/out",
//	    tarball.ExtractWithPreservePermissions(true),
//	)
//
// Directory walks are deterministic: children are visited in sorted
// order, so archiving the same tree twice yields byte-identical
// archives when file metadata is unchanged.
//
// The [compression] subpackage wraps the archive stream in gzip, zstd,
// xz, or bzip2, with magic-byte detection for reading.
package tarball
