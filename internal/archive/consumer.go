package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/LeopoldLabs/InterShareSDK/internal/streamio"
)

// ConsumeOptions configures ExtractTar.
type ConsumeOptions struct {
	// Dest is the destination directory. It must already exist.
	Dest string
	// TotalBytes, if positive, is used to clamp progress reporting the same
	// way ProduceOptions.TotalBytes does on the sending side.
	TotalBytes int64
	OnProgress func(fraction float64)
	// Cancel, if non-nil, is polled between entries; a set flag stops
	// extraction early and ExtractTar returns the paths restored so far
	// together with streamio.ErrCancelled.
	Cancel *streamio.CancelFlag
}

// ExtractTar reads a streaming TAR archive produced by StreamTar from r and
// restores it under opts.Dest, the way the teacher's receiver unpacks an
// inbound transfer (internal/core/receiver.go's auto-extract step), but
// generalized to the session-scoped root renaming and path-sanitization rules
// of component 4.C.
//
// Each entry's declared name is sanitized and split into a root component and
// a sub path; the first time a given root component is seen in this session
// it is assigned a destination name via the collision policy (uniqueName),
// and every subsequent entry sharing that root component reuses the same
// assigned name. This keeps a multi-file/directory transfer's relative
// structure intact while still ensuring the transfer as a whole doesn't
// collide with anything already in Dest.
func ExtractTar(r io.Reader, opts ConsumeOptions) ([]string, error) {
	reportProgress := func(total int64) {
		if opts.OnProgress == nil || opts.TotalBytes <= 0 {
			return
		}
		fraction := float64(total) / float64(opts.TotalBytes)
		if fraction > 0.999 {
			fraction = 0.999
		}
		opts.OnProgress(fraction)
	}
	counted := streamio.NewCountedReader(r, reportProgress, opts.Cancel)
	tr := tar.NewReader(counted)

	rootAssignments := make(map[string]string)
	var restored []string

	for {
		if opts.Cancel != nil && opts.Cancel.IsSet() {
			return restored, streamio.ErrCancelled
		}

		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if err == streamio.ErrCancelled {
				return restored, err
			}
			return restored, fmt.Errorf("archive: read entry: %w", err)
		}

		cleaned, ok := sanitizeRelPath(hdr.Name)
		if !ok {
			// Nothing normal survived sanitization (e.g. an entry named "..");
			// skip it rather than fail the whole transfer.
			continue
		}
		root, sub := splitRootAndSub(cleaned)

		assigned, seen := rootAssignments[root]
		if !seen {
			candidate := filepath.Join(opts.Dest, root)
			assigned = uniqueName(candidate)
			rootAssignments[root] = assigned
		}

		target := assigned
		if sub != "" {
			target = filepath.Join(assigned, sub)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return restored, fmt.Errorf("archive: mkdir %q: %w", target, err)
			}
		case tar.TypeReg, tar.TypeRegA, tar.TypeGNUSparse, tar.TypeCont:
			if err := writeExtractedFile(tr, target, hdr); err != nil {
				return restored, err
			}
		default:
			// Symlinks, devices, fifos: not part of this transfer's contract.
			continue
		}

		restored = append(restored, target)
	}

	if opts.OnProgress != nil {
		opts.OnProgress(1.0)
	}
	return restored, nil
}

func writeExtractedFile(tr *tar.Reader, target string, hdr *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("archive: mkdir %q: %w", filepath.Dir(target), err)
	}

	mode := os.FileMode(hdr.Mode)
	if mode == 0 {
		mode = 0o644
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return fmt.Errorf("archive: create %q: %w", target, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, tr); err != nil {
		return fmt.Errorf("archive: write %q: %w", target, err)
	}
	return nil
}
