package hashcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"vidfinder/internal/phash"
	"vidfinder/internal/video"
)

const formatVersion = 1

// fileFormat is the on-disk layout. It carries no timestamps so that an
// unchanged directory produces byte-identical output.
type fileFormat struct {
	Version  int         `json:"version"`
	Frames   int         `json:"frames"`
	HashSize int         `json:"hash_size"`
	Entries  []diskEntry `json:"entries"`
}

type diskEntry struct {
	Path       string   `json:"path"`
	Size       int64    `json:"size"`
	ModTimeNS  int64    `json:"mtime_ns"`
	DurationMS int64    `json:"duration_ms"`
	Frames     []string `json:"frames"`
}

// Entry is one cached fingerprint.
type Entry struct {
	Path        string
	Size        int64
	ModTimeNS   int64
	Duration    time.Duration
	Fingerprint phash.Fingerprint
}

// Matches reports whether the entry is valid for f.
func (e Entry) Matches(f video.File) bool {
	return e.Size == f.Size && e.ModTimeNS == f.ModUnixNano()
}

// Info summarizes a cache file without taking the run lock.
type Info struct {
	Path     string `json:"path" yaml:"path"`
	Version  int    `json:"version" yaml:"version"`
	Frames   int    `json:"frames" yaml:"frames"`
	HashSize int    `json:"hash_size" yaml:"hash_size"`
	Entries  int    `json:"entries" yaml:"entries"`
	Bytes    int64  `json:"bytes" yaml:"bytes"`
	Exists   bool   `json:"exists" yaml:"exists"`
}

// Inspect reads the cache header and entry count at path.
func Inspect(path string) (Info, error) {
	info := Info{Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return info, nil
		}
		return info, fmt.Errorf("read cache file: %w", err)
	}
	info.Exists = true
	info.Bytes = int64(len(data))
	doc, err := decode(data)
	if err != nil {
		return info, err
	}
	info.Version = doc.Version
	info.Frames = doc.Frames
	info.HashSize = doc.HashSize
	info.Entries = len(doc.Entries)
	return info, nil
}

func decode(data []byte) (fileFormat, error) {
	var doc fileFormat
	if err := json.Unmarshal(data, &doc); err != nil {
		return fileFormat{}, fmt.Errorf("parse cache file: %w", err)
	}
	if doc.Version != formatVersion {
		return fileFormat{}, fmt.Errorf("unsupported cache version %d", doc.Version)
	}
	if doc.HashSize < 2 || doc.Frames < 1 {
		return fileFormat{}, fmt.Errorf("invalid cache parameters frames=%d hash_size=%d", doc.Frames, doc.HashSize)
	}
	return doc, nil
}

func encode(frames, hashSize int, entries map[string]Entry) ([]byte, error) {
	doc := fileFormat{
		Version:  formatVersion,
		Frames:   frames,
		HashSize: hashSize,
		Entries:  make([]diskEntry, 0, len(entries)),
	}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, diskEntry{
			Path:       e.Path,
			Size:       e.Size,
			ModTimeNS:  e.ModTimeNS,
			DurationMS: e.Duration.Milliseconds(),
			Frames:     e.Fingerprint.Hex(),
		})
	}
	slices.SortFunc(doc.Entries, func(a, b diskEntry) int { return strings.Compare(a.Path, b.Path) })
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal cache: %w", err)
	}
	return append(data, '\n'), nil
}

func toEntry(d diskEntry, hashSize int) (Entry, error) {
	fp, err := phash.ParseHex(hashSize, d.Frames)
	if err != nil {
		return Entry{}, err
	}
	if fp.Empty() {
		return Entry{}, errors.New("entry has no frames")
	}
	return Entry{
		Path:        d.Path,
		Size:        d.Size,
		ModTimeNS:   d.ModTimeNS,
		Duration:    time.Duration(d.DurationMS) * time.Millisecond,
		Fingerprint: fp,
	}, nil
}
