package blockstore

import (
	"fmt"
	"log/slog"

	"github.com/blockberries/blockvault/logging"
)

// HashFunc computes the content hash of a BLOCK or UNDO payload body
// during recovery. It is supplied by the caller — whatever parses these
// payloads off the wire owns hashing, not this package. MERKLE payloads
// carry their hash embedded in the first KeySize bytes of the body and
// never call this function.
type HashFunc func(body []byte) (Key, error)

// RecoveryStats reports what one recovery pass did, surfaced through
// Metrics and the CLI's recover subcommand.
type RecoveryStats struct {
	SegmentsScanned int
	RecordsIndexed  int
	TornTails       int
}

// Recover forces a recovery pass over cfg.Location without requiring a
// running Store, for offline repair via the CLI's recover subcommand.
// cfg.Backend must be BackendFile; the KV back-end has no segment
// files to scan.
func Recover(cfg Config, hashFunc HashFunc, logger *logging.Logger) (RecoveryStats, error) {
	if cfg.Backend != BackendFile {
		return RecoveryStats{}, fmt.Errorf("%w: recovery only applies to the file backend", ErrConfig)
	}
	if err := cfg.Validate(); err != nil {
		return RecoveryStats{}, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("recovery")
	engine, err := openEngine(cfg.Location, cfg.IndexEngine, cfg.Memory)
	if err != nil {
		return RecoveryStats{}, err
	}
	defer engine.Close()
	return runRecovery(engine, cfg.Location, cfg.MaxFileLength, cfg.Magic, hashFunc, logger)
}

// needsRecovery reports whether a recovery scan is required: the index
// is absent, lacks entries for segments that exist on disk, or a
// segment's actual size exceeds its recorded FileRecord.length.
func needsRecovery(engine KVEngine, location string) (bool, error) {
	names, err := listSegmentFiles(location)
	if err != nil {
		return false, err
	}
	if len(names) == 0 {
		return false, nil
	}
	for _, name := range names {
		t, segment, ok := parseSegmentFilename(name)
		if !ok {
			continue
		}
		path, err := segmentPath(location, t, segment)
		if err != nil {
			return false, err
		}
		onDisk, exists, err := segmentSizeOnDisk(path)
		if err != nil {
			return false, err
		}
		if !exists {
			continue
		}
		rec, ok, err := getFileRecord(engine, t, segment)
		if err != nil {
			return false, err
		}
		if !ok || onDisk > int64(rec.Length) {
			return true, nil
		}
	}
	return false, nil
}

// runRecovery rebuilds the index for every payload type by walking
// segment files on disk. It is idempotent: running it twice on
// the same disk state yields an identical index, because it first
// clears every existing index entry for a type before re-deriving it
// from the (possibly just-truncated) segment files.
func runRecovery(engine KVEngine, location string, maxFileLength int64, magic uint32, hashFunc HashFunc, logger *logging.Logger) (RecoveryStats, error) {
	logger.Info("recovery scan starting", logging.Path(location))
	names, err := listSegmentFiles(location)
	if err != nil {
		return RecoveryStats{}, err
	}

	bySegment := make(map[PayloadType]map[uint32]bool)
	for _, name := range names {
		t, segment, ok := parseSegmentFilename(name)
		if !ok {
			continue
		}
		if bySegment[t] == nil {
			bySegment[t] = make(map[uint32]bool)
		}
		bySegment[t][segment] = true
	}

	var stats RecoveryStats
	batch := engine.NewBatch()

	for _, t := range payloadTypes {
		if err := clearIndexForType(engine, t, batch); err != nil {
			return stats, err
		}

		segments := bySegment[t]
		if len(segments) == 0 {
			continue
		}

		var ordered []uint32
		for s := range segments {
			ordered = append(ordered, s)
		}
		sortUint32s(ordered)

		var bestCandidate uint32
		haveCandidate := false
		highest := ordered[len(ordered)-1]

		for _, segment := range ordered {
			fileRec, torn, err := recoverSegment(batch, location, t, segment, magic, maxFileLength, hashFunc, &stats)
			if err != nil {
				return stats, err
			}
			if torn {
				stats.TornTails++
				logger.Warn("torn tail truncated", logging.PayloadType(t.String()), logging.Segment(segment), logging.Size(int(fileRec.Length)))
			}
			batch.Put(fileRecordKey(t, segment), fileRec.Encode())
			if int64(fileRec.Length) < maxFileLength {
				bestCandidate = segment
				haveCandidate = true
			}
			stats.SegmentsScanned++
		}

		current := highest
		if haveCandidate {
			current = bestCandidate
		}
		batch.Put(currentSegmentKey(t), encodeSegmentNumber(current))
	}

	if err := batch.Commit(); err != nil {
		return stats, fmt.Errorf("%w: committing recovery index batch: %v", ErrUpstreamIO, err)
	}
	logger.Info("recovery scan complete",
		logging.Count(stats.SegmentsScanned),
		slog.Int("records_indexed", stats.RecordsIndexed),
		slog.Int("torn_tails", stats.TornTails))
	return stats, nil
}

// recoverSegment scans one segment file from offset 0, staging a
// BlockRecord for every structurally valid record and stopping at the
// first header or body that doesn't fit, or, for UNDO, whose checksum
// doesn't match its body — the torn-tail boundary. It truncates the
// file to that boundary.
func recoverSegment(batch KVBatch, location string, t PayloadType, segment uint32, magic uint32, maxFileLength int64, hashFunc HashFunc, stats *RecoveryStats) (FileRecord, bool, error) {
	hdr, err := headerSize(t)
	if err != nil {
		return FileRecord{}, false, err
	}

	path, err := segmentPath(location, t, segment)
	if err != nil {
		return FileRecord{}, false, err
	}
	// A writable descriptor: truncating a torn tail fails on a read-only one.
	f, err := openSegmentForAppend(path)
	if err != nil {
		return FileRecord{}, false, err
	}
	defer f.close()

	size, err := f.size()
	if err != nil {
		return FileRecord{}, false, err
	}

	var offset, used int64
	var blocks int64
	torn := false

	for offset < size {
		if offset+int64(hdr) > size {
			torn = true
			break
		}
		header := make([]byte, hdr)
		if err := f.readAt(header, offset); err != nil {
			torn = true
			break
		}
		magicGot, length := decodeHeader(header)
		if magicGot != magic {
			torn = true
			break
		}
		bodyStart := offset + int64(hdr)
		if bodyStart+int64(length) > size {
			torn = true
			break
		}

		body := make([]byte, length)
		if err := f.readAt(body, bodyStart); err != nil {
			torn = true
			break
		}

		if t == Undo && !verifyUndoChecksum(header[8:40], body) {
			torn = true
			break
		}

		key, err := payloadKey(t, header, body, hashFunc)
		if err != nil {
			return FileRecord{}, false, err
		}

		rec, err := NewBlockRecord(int64(segment), bodyStart, int64(length))
		if err != nil {
			return FileRecord{}, false, err
		}
		batch.Put(blockRecordKey(t, key), rec.Encode())
		stats.RecordsIndexed++

		blocks++
		used += int64(hdr) + int64(length)
		offset = bodyStart + int64(length)
	}

	if torn {
		if err := f.truncate(offset); err != nil {
			return FileRecord{}, false, err
		}
	}

	fileRec, err := NewFileRecord(blocks, used, offset)
	if err != nil {
		return FileRecord{}, false, err
	}
	return fileRec, torn, nil
}

// decodeHeader parses the magic and length fields common to every
// header; the UNDO checksum, when present, occupies the remaining
// bytes and is not needed to locate the body — recoverSegment reads it
// separately from the raw header bytes to verify against the body.
func decodeHeader(header []byte) (magic uint32, length uint32) {
	return leUint32(header[0:4]), leUint32(header[4:8])
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// payloadKey derives the content hash for a recovered record: computed
// from the body for BLOCK/UNDO, parsed directly from the body's
// leading bytes for MERKLE.
func payloadKey(t PayloadType, header, body []byte, hashFunc HashFunc) (Key, error) {
	if t == Merkle {
		if len(body) < KeySize {
			return Key{}, fmt.Errorf("%w: merkle payload shorter than key size", ErrRange)
		}
		var k Key
		copy(k[:], body[:KeySize])
		return k, nil
	}
	return hashFunc(body)
}

// clearIndexForType deletes every index entry for t, staging the
// deletes into batch, so a recovery pass starts from a clean slate and
// stays idempotent.
func clearIndexForType(engine KVEngine, t PayloadType, batch KVBatch) error {
	prefix := []byte{blockRecordPrefix, byte(t)}
	it := engine.NewIterator(prefix)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Close()

	prefix = []byte{fileRecordPrefix, byte(t)}
	it = engine.NewIterator(prefix)
	for it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Close()

	batch.Delete(currentSegmentKey(t))
	return nil
}

// sortUint32s sorts s in ascending order.
func sortUint32s(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
