// Package segment reads and writes immutable on-disk posting segments. A
// segment holds the records of many (index, field, term) keys: a fixed
// binary header, JSON record blocks, a CRC-checked JSON dictionary, and a
// fixed footer.
package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// MagicBytes identifies a valid .tseg segment file.
const (
	MagicBytes    uint32 = 0x54534547
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 32
	FileSuffix           = ".tseg"
)

// Header is the 64-byte header written at the start of every segment.
type Header struct {
	Magic       uint32
	Version     uint32
	KeyCount    uint32
	RecordCount uint32
	DictOffset  int64
	DictSize    int64
	RecsOffset  int64
	RecsSize    int64
}

// Record is one stored posting record.
type Record struct {
	Subtype   int            `json:"st"`
	Subterm   int64          `json:"su"`
	Value     string         `json:"v"`
	Props     map[string]any `json:"p,omitempty"`
	Timestamp int64          `json:"ts"`
}

// Entry is the records of one (index, field, term) key, the unit handed to
// the Writer.
type Entry struct {
	Index   string
	Field   string
	Term    string
	Records []Record
}

// DictEntry locates one key's record block within the segment file.
type DictEntry struct {
	Index      string `json:"i"`
	Field      string `json:"f"`
	Term       string `json:"t"`
	RecsOffset int64  `json:"o"`
	RecsLen    int    `json:"l"`
	Count      int    `json:"c"`
}

// Less orders dictionary entries by (index, field, term).
func (d DictEntry) Less(o DictEntry) bool {
	if d.Index != o.Index {
		return d.Index < o.Index
	}
	if d.Field != o.Field {
		return d.Field < o.Field
	}
	return d.Term < o.Term
}

// Writer serialises Entry slices into new .tseg segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write atomically creates a new segment file containing the given entries,
// sorted by key. It writes to a .tmp file first and renames on success, and
// returns the new segment's file name.
func (w *Writer) Write(entries []Entry) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("cannot write empty segment")
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		if a.Field != b.Field {
			return a.Field < b.Field
		}
		return a.Term < b.Term
	})

	segmentName := fmt.Sprintf("seg_%d%s", time.Now().UnixNano(), FileSuffix)
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	defer f.Close()

	headerBytes := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(headerBytes[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(headerBytes[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(headerBytes[8:12], uint32(len(entries)))
	if _, err := f.Write(headerBytes); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	recsStart, _ := f.Seek(0, 1)
	dict := make([]DictEntry, 0, len(entries))
	recordCount := 0
	for _, entry := range entries {
		offset, _ := f.Seek(0, 1)
		recsData, err := json.Marshal(entry.Records)
		if err != nil {
			return "", fmt.Errorf("marshaling records for term %q: %w", entry.Term, err)
		}
		if _, err := f.Write(recsData); err != nil {
			return "", fmt.Errorf("writing records for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Index:      entry.Index,
			Field:      entry.Field,
			Term:       entry.Term,
			RecsOffset: offset - recsStart,
			RecsLen:    len(recsData),
			Count:      len(entry.Records),
		})
		recordCount += len(entry.Records)
	}

	recsEnd, _ := f.Seek(0, 1)
	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := f.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}
	dictEnd, _ := f.Seek(0, 1)

	checksum := crc32.ChecksumIEEE(dictData)
	footer := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(footer[0:4], checksum)
	binary.LittleEndian.PutUint32(footer[4:8], uint32(recordCount))
	binary.LittleEndian.PutUint64(footer[8:16], uint64(recsEnd))
	binary.LittleEndian.PutUint64(footer[16:24], uint64(dictEnd-recsEnd))
	binary.LittleEndian.PutUint64(footer[24:32], uint64(recsEnd-recsStart))
	if _, err := f.Write(footer); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}

	binary.LittleEndian.PutUint32(headerBytes[12:16], uint32(recordCount))
	binary.LittleEndian.PutUint64(headerBytes[16:24], uint64(recsEnd))
	binary.LittleEndian.PutUint64(headerBytes[24:32], uint64(dictEnd-recsEnd))
	binary.LittleEndian.PutUint64(headerBytes[32:40], uint64(recsStart))
	binary.LittleEndian.PutUint64(headerBytes[40:48], uint64(recsEnd-recsStart))
	if _, err := f.WriteAt(headerBytes, 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	f.Close()
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	return segmentName, nil
}
