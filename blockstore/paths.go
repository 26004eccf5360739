package blockstore

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// segmentFilename returns the filename (no directory) for the given
// payload type and segment number: "<prefix><5-digit segment#>.dat".
func segmentFilename(t PayloadType, segment uint32) (string, error) {
	if segment > maxSegmentNumber {
		return "", fmt.Errorf("%w: file number too large", ErrRange)
	}
	prefix, err := filePrefix(t)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%05d.dat", prefix, segment), nil
}

// segmentPath returns the absolute path to a segment file under
// location.
func segmentPath(location string, t PayloadType, segment uint32) (string, error) {
	name, err := segmentFilename(t, segment)
	if err != nil {
		return "", err
	}
	return filepath.Join(location, name), nil
}

// parseSegmentFilename recovers (type, segment#) from a filename
// produced by segmentFilename, used by the recovery scanner to group
// files on disk by type without trusting the index. ok is false for
// any name that doesn't match "<prefix><5 digits>.dat" for a known
// prefix.
func parseSegmentFilename(name string) (PayloadType, uint32, bool) {
	const suffix = ".dat"
	if !strings.HasSuffix(name, suffix) {
		return 0, 0, false
	}
	base := strings.TrimSuffix(name, suffix)
	for _, t := range payloadTypes {
		prefix, err := filePrefix(t)
		if err != nil || !strings.HasPrefix(base, prefix) {
			continue
		}
		digits := strings.TrimPrefix(base, prefix)
		if len(digits) != 5 {
			continue
		}
		n, err := strconv.ParseUint(digits, 10, 32)
		if err != nil {
			continue
		}
		return t, uint32(n), true
	}
	return 0, 0, false
}
