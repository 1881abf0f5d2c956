package phash

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/corona10/goimagehash"
	"github.com/nfnt/resize"
)

// HashFrame reduces img to grayscale, resizes it to (hashSize+1)×hashSize and
// sets bit i when pixel i is brighter than its right neighbour. Bits are
// packed row-major, most significant bit first.
func HashFrame(img image.Image, hashSize int) (*goimagehash.ExtImageHash, error) {
	if img == nil {
		return nil, errors.New("dhash: nil image")
	}
	if hashSize < 2 {
		return nil, fmt.Errorf("dhash: hash size %d too small", hashSize)
	}
	if img.Bounds().Empty() {
		return nil, errors.New("dhash: empty image")
	}

	small := resize.Resize(uint(hashSize+1), uint(hashSize), toGray(img), resize.Bilinear)
	bounds := small.Bounds()

	bits := hashSize * hashSize
	words := make([]uint64, (bits+63)/64)
	idx := 0
	for y := 0; y < hashSize; y++ {
		for x := 0; x < hashSize; x++ {
			left := luma(small.At(bounds.Min.X+x, bounds.Min.Y+y))
			right := luma(small.At(bounds.Min.X+x+1, bounds.Min.Y+y))
			if left > right {
				words[idx/64] |= 1 << uint(63-idx%64)
			}
			idx++
		}
	}
	return goimagehash.NewExtImageHash(words, goimagehash.DHash, bits), nil
}

func toGray(img image.Image) *image.Gray {
	if gray, ok := img.(*image.Gray); ok {
		return gray
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

func luma(c color.Color) uint8 {
	return color.GrayModel.Convert(c).(color.Gray).Y
}
