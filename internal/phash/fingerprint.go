package phash

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/corona10/goimagehash"
)

// Fingerprint is the ordered sequence of frame hashes for one video.
type Fingerprint struct {
	HashSize int
	Frames   []*goimagehash.ExtImageHash
}

// Builder accumulates frame hashes in timestamp order.
type Builder struct {
	hashSize int
	frames   []*goimagehash.ExtImageHash
}

func NewBuilder(hashSize int) *Builder {
	return &Builder{hashSize: hashSize}
}

// Add hashes img and appends it.
func (b *Builder) Add(img image.Image) error {
	h, err := HashFrame(img, b.hashSize)
	if err != nil {
		return err
	}
	b.frames = append(b.frames, h)
	return nil
}

func (b *Builder) Fingerprint() Fingerprint {
	return Fingerprint{HashSize: b.hashSize, Frames: append([]*goimagehash.ExtImageHash(nil), b.frames...)}
}

// BitsPerFrame is hash_size².
func (f Fingerprint) BitsPerFrame() int {
	return f.HashSize * f.HashSize
}

// Bits is the flat bit-length of the fingerprint.
func (f Fingerprint) Bits() int {
	return len(f.Frames) * f.BitsPerFrame()
}

func (f Fingerprint) Empty() bool {
	return len(f.Frames) == 0
}

// Comparable reports whether a and b have the same shape.
func Comparable(a, b Fingerprint) bool {
	return a.HashSize == b.HashSize && len(a.Frames) == len(b.Frames) && len(a.Frames) > 0
}

// Distance returns the Hamming distance between a and b. ok is false when the
// fingerprints are not comparable; that is never an error.
func Distance(a, b Fingerprint) (dist int, ok bool) {
	if !Comparable(a, b) {
		return 0, false
	}
	for i := range a.Frames {
		if a.Frames[i] == nil || b.Frames[i] == nil {
			return 0, false
		}
		d, err := a.Frames[i].Distance(b.Frames[i])
		if err != nil {
			return 0, false
		}
		dist += d
	}
	return dist, true
}

// MaxDistance converts a similarity percentage into the largest Hamming
// distance still counted as similar: floor((100-threshold)*totalBits/100).
func MaxDistance(threshold float64, totalBits int) int {
	if totalBits <= 0 {
		return 0
	}
	if threshold >= 100 {
		return 0
	}
	if threshold <= 0 {
		return totalBits
	}
	return int(math.Floor((100 - threshold) * float64(totalBits) / 100))
}

// Similar reports whether a and b are comparable and within maxDistance.
func Similar(a, b Fingerprint, maxDistance int) (int, bool) {
	dist, ok := Distance(a, b)
	if !ok || dist > maxDistance {
		return dist, false
	}
	return dist, true
}

// Similarity converts a distance over bits into a percentage.
func Similarity(dist, bits int) float64 {
	if bits <= 0 {
		return 0
	}
	return 100 * (1 - float64(dist)/float64(bits))
}

// Equal reports bit-for-bit equality.
func (f Fingerprint) Equal(o Fingerprint) bool {
	d, ok := Distance(f, o)
	return ok && d == 0
}

// Hex renders one lowercase hex string per frame.
func (f Fingerprint) Hex() []string {
	out := make([]string, len(f.Frames))
	for i, frame := range f.Frames {
		var sb strings.Builder
		for _, w := range frame.GetHash() {
			fmt.Fprintf(&sb, "%016x", w)
		}
		out[i] = sb.String()
	}
	return out
}

// ParseHex is the inverse of Hex.
func ParseHex(hashSize int, frames []string) (Fingerprint, error) {
	if hashSize < 2 {
		return Fingerprint{}, fmt.Errorf("parse fingerprint: hash size %d too small", hashSize)
	}
	bits := hashSize * hashSize
	words := (bits + 63) / 64
	fp := Fingerprint{HashSize: hashSize, Frames: make([]*goimagehash.ExtImageHash, 0, len(frames))}
	for i, s := range frames {
		raw, err := hex.DecodeString(s)
		if err != nil {
			return Fingerprint{}, fmt.Errorf("parse fingerprint frame %d: %w", i, err)
		}
		if len(raw) != words*8 {
			return Fingerprint{}, fmt.Errorf("parse fingerprint frame %d: got %d bytes, want %d", i, len(raw), words*8)
		}
		fp.Frames = append(fp.Frames, fromBytes(raw, bits))
	}
	return fp, nil
}

// MarshalBinary packs the frames as big-endian words, frame after frame.
func (f Fingerprint) MarshalBinary() ([]byte, error) {
	out := make([]byte, 0, len(f.Frames)*8*((f.BitsPerFrame()+63)/64))
	for _, frame := range f.Frames {
		for _, w := range frame.GetHash() {
			out = binary.BigEndian.AppendUint64(out, w)
		}
	}
	return out, nil
}

// UnmarshalBinary requires HashSize to be set beforehand.
func (f *Fingerprint) UnmarshalBinary(data []byte) error {
	if f.HashSize < 2 {
		return fmt.Errorf("unmarshal fingerprint: hash size %d too small", f.HashSize)
	}
	bits := f.BitsPerFrame()
	frameBytes := 8 * ((bits + 63) / 64)
	if len(data)%frameBytes != 0 {
		return fmt.Errorf("unmarshal fingerprint: %d bytes is not a multiple of %d", len(data), frameBytes)
	}
	f.Frames = make([]*goimagehash.ExtImageHash, 0, len(data)/frameBytes)
	for off := 0; off < len(data); off += frameBytes {
		f.Frames = append(f.Frames, fromBytes(data[off:off+frameBytes], bits))
	}
	return nil
}

func fromBytes(raw []byte, bits int) *goimagehash.ExtImageHash {
	words := make([]uint64, len(raw)/8)
	for i := range words {
		words[i] = binary.BigEndian.Uint64(raw[i*8:])
	}
	return goimagehash.NewExtImageHash(words, goimagehash.DHash, bits)
}
