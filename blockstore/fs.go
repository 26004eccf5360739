package blockstore

import (
	"fmt"
	"os"
)

// segmentFile is the byte-oriented file API the store needs: open, read,
// write, stat, fsync, close — implemented directly on stdlib os rather
// than a third-party abstraction, since the allocator and reader need
// positioned append/pread with fsync, not whole-object upload/download.
//
// Each call opens its own *os.File; the writer does not keep
// descriptors open across calls, and the reader reuses one only through
// segmentCache, so there is nothing to pool at this layer.
type segmentFile struct {
	f *os.File
}

// openSegmentForAppend opens (creating if absent) a segment file for
// positioned append writes. Recovery also uses it, since truncating a
// torn tail needs a writable descriptor.
func openSegmentForAppend(path string) (*segmentFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening segment for append: %v", ErrUpstreamIO, err)
	}
	return &segmentFile{f: f}, nil
}

// openSegmentForRead opens an existing segment file for positioned
// reads.
func openSegmentForRead(path string) (*segmentFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening segment for read: %v", ErrUpstreamIO, err)
	}
	return &segmentFile{f: f}, nil
}

// writeAt writes buf starting at offset, failing ErrShortIO if fewer
// bytes were written than requested.
func (s *segmentFile) writeAt(buf []byte, offset int64) error {
	n, err := s.f.WriteAt(buf, offset)
	if err != nil {
		return fmt.Errorf("%w: writing segment: %v", ErrUpstreamIO, err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: wrote %d of %d bytes", ErrShortIO, n, len(buf))
	}
	return nil
}

// readAt reads exactly len(buf) bytes starting at offset, failing
// ErrShortIO if fewer bytes were available.
func (s *segmentFile) readAt(buf []byte, offset int64) error {
	n, err := s.f.ReadAt(buf, offset)
	if n != len(buf) {
		return fmt.Errorf("%w: read %d of %d bytes: %v", ErrShortIO, n, len(buf), err)
	}
	return nil
}

// size returns the file's current length.
func (s *segmentFile) size() (int64, error) {
	fi, err := s.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: stat segment: %v", ErrUpstreamIO, err)
	}
	return fi.Size(), nil
}

// truncate shortens the file to length, used by recovery to discard a
// torn tail.
func (s *segmentFile) truncate(length int64) error {
	if err := s.f.Truncate(length); err != nil {
		return fmt.Errorf("%w: truncating segment: %v", ErrUpstreamIO, err)
	}
	return nil
}

// sync flushes the segment's data to stable storage.
func (s *segmentFile) sync() error {
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("%w: fsync segment: %v", ErrUpstreamIO, err)
	}
	return nil
}

func (s *segmentFile) close() error {
	return s.f.Close()
}

// ensureDir performs the equivalent of mkdir -p on location.
func ensureDir(location string) error {
	if err := os.MkdirAll(location, 0o755); err != nil {
		return fmt.Errorf("%w: creating location: %v", ErrUpstreamIO, err)
	}
	return nil
}

// segmentExists reports whether a segment file is present.
func segmentExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat segment: %v", ErrUpstreamIO, err)
}

// segmentSizeOnDisk stats a segment file's current length without
// opening it for read/write, used by the recovery scanner's staleness
// check.
func segmentSizeOnDisk(path string) (int64, bool, error) {
	fi, err := os.Stat(path)
	if err == nil {
		return fi.Size(), true, nil
	}
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	return 0, false, fmt.Errorf("%w: stat segment: %v", ErrUpstreamIO, err)
}

// unlinkSegment removes a segment file. Removing an absent file is not
// an error, matching the pruner's tolerance of a missing current
// segment.
func unlinkSegment(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: unlinking segment: %v", ErrUpstreamIO, err)
	}
	return nil
}

// listSegmentFiles returns the names of regular files directly under
// location, used by the recovery scanner to enumerate segments without
// trusting the index.
func listSegmentFiles(location string) ([]string, error) {
	entries, err := os.ReadDir(location)
	if err != nil {
		return nil, fmt.Errorf("%w: listing location: %v", ErrUpstreamIO, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
