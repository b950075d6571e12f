package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"sort"
)

// Reader serves point lookups and dictionary scans over one segment file.
type Reader struct {
	file     *os.File
	filePath string
	header   Header
	dict     []DictEntry
	recsBase int64
}

// OpenReader opens a segment file, validates its magic bytes and dictionary
// checksum, and loads the dictionary into memory.
func OpenReader(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading segment header: %w", err)
	}
	magic := binary.LittleEndian.Uint32(headerBytes[0:4])
	if magic != MagicBytes {
		f.Close()
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", magic)
	}
	header := Header{
		Magic:       magic,
		Version:     binary.LittleEndian.Uint32(headerBytes[4:8]),
		KeyCount:    binary.LittleEndian.Uint32(headerBytes[8:12]),
		RecordCount: binary.LittleEndian.Uint32(headerBytes[12:16]),
		DictOffset:  int64(binary.LittleEndian.Uint64(headerBytes[16:24])),
		DictSize:    int64(binary.LittleEndian.Uint64(headerBytes[24:32])),
		RecsOffset:  int64(binary.LittleEndian.Uint64(headerBytes[32:40])),
		RecsSize:    int64(binary.LittleEndian.Uint64(headerBytes[40:48])),
	}
	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DictOffset+header.DictSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if sum := binary.LittleEndian.Uint32(footer[0:4]); sum != crc32.ChecksumIEEE(dictBytes) {
		f.Close()
		return nil, fmt.Errorf("segment dictionary checksum mismatch")
	}
	var dict []DictEntry
	if err := json.Unmarshal(dictBytes, &dict); err != nil {
		f.Close()
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	return &Reader{
		file:     f,
		filePath: path,
		header:   header,
		dict:     dict,
		recsBase: header.RecsOffset,
	}, nil
}

// Lookup returns the records stored under (index, field, term), or nil when
// the key is absent.
func (r *Reader) Lookup(index, field, term string) ([]Record, error) {
	want := DictEntry{Index: index, Field: field, Term: term}
	i := sort.Search(len(r.dict), func(i int) bool {
		return !r.dict[i].Less(want)
	})
	if i >= len(r.dict) || r.dict[i].Index != index || r.dict[i].Field != field || r.dict[i].Term != term {
		return nil, nil
	}
	return r.ReadRecords(r.dict[i])
}

// ReadRecords loads the record block for one dictionary entry.
func (r *Reader) ReadRecords(e DictEntry) ([]Record, error) {
	recsBytes := make([]byte, e.RecsLen)
	if _, err := r.file.ReadAt(recsBytes, r.recsBase+e.RecsOffset); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(recsBytes, &records); err != nil {
		return nil, fmt.Errorf("parsing records: %w", err)
	}
	return records, nil
}

// Dict returns the segment's dictionary, sorted by (index, field, term).
// Callers must not modify it.
func (r *Reader) Dict() []DictEntry {
	return r.dict
}

// Keys returns the number of distinct (index, field, term) keys.
func (r *Reader) Keys() int {
	return len(r.dict)
}

// Records returns the total number of stored records.
func (r *Reader) Records() int {
	return int(r.header.RecordCount)
}

// Path returns the segment's file path.
func (r *Reader) Path() string {
	return r.filePath
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
