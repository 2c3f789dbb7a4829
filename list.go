package tarball

import "io"

// List decodes the archive from r and calls fn for each entry without
// extracting anything. Payloads are skipped. Returning an error from fn
// stops the listing.
func List(r io.Reader, fn func(*Entry) error) error {
	tr := NewReader(r)
	for {
		e, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}
