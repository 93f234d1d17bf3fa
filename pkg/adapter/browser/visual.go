package browser

import (
	"bytes"
	"fmt"
	"image/color"
	"image/png"
)

// channelThreshold is the per-channel difference below which two pixels
// still count as matching. Browser rendering is not byte-stable across
// runs; tiny anti-aliasing shifts must not register as regressions.
const channelThreshold = 16

// ComparePNG decodes two PNG images and returns the mismatch as a
// percentage of total pixels. Images of different dimensions are a
// total mismatch.
func ComparePNG(baseline, current []byte) (float64, error) {
	baseImg, err := png.Decode(bytes.NewReader(baseline))
	if err != nil {
		return 0, fmt.Errorf("decode baseline: %w", err)
	}
	curImg, err := png.Decode(bytes.NewReader(current))
	if err != nil {
		return 0, fmt.Errorf("decode current: %w", err)
	}

	bb, cb := baseImg.Bounds(), curImg.Bounds()
	if bb.Dx() != cb.Dx() || bb.Dy() != cb.Dy() {
		return 100, nil
	}

	total := bb.Dx() * bb.Dy()
	if total == 0 {
		return 0, nil
	}

	mismatched := 0
	for y := 0; y < bb.Dy(); y++ {
		for x := 0; x < bb.Dx(); x++ {
			bp := baseImg.At(bb.Min.X+x, bb.Min.Y+y)
			cp := curImg.At(cb.Min.X+x, cb.Min.Y+y)
			if !pixelsMatch(bp, cp) {
				mismatched++
			}
		}
	}

	return float64(mismatched) / float64(total) * 100, nil
}

func pixelsMatch(a, b color.Color) bool {
	ar, ag, ab2, aa := a.RGBA()
	br, bg, bb2, ba := b.RGBA()
	return channelClose(ar, br) && channelClose(ag, bg) &&
		channelClose(ab2, bb2) && channelClose(aa, ba)
}

// channelClose compares two 16-bit channel values against the 8-bit
// threshold.
func channelClose(a, b uint32) bool {
	diff := int64(a) - int64(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= channelThreshold<<8
}
