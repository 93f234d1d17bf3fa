package browser

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// solidPNG renders a w x h image filled with c, with an optional patch
// of a second color covering the left portion.
func solidPNG(t *testing.T, w, h int, c color.RGBA, patchWidth int, patch color.RGBA) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < patchWidth {
				img.Set(x, y, patch)
			} else {
				img.Set(x, y, c)
			}
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestComparePNG_IdenticalImages(t *testing.T) {
	white := color.RGBA{255, 255, 255, 255}
	a := solidPNG(t, 40, 40, white, 0, white)
	b := solidPNG(t, 40, 40, white, 0, white)

	mismatch, err := ComparePNG(a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.0, mismatch)
}

func TestComparePNG_QuarterDifferent(t *testing.T) {
	white := color.RGBA{255, 255, 255, 255}
	black := color.RGBA{0, 0, 0, 255}

	base := solidPNG(t, 40, 40, white, 0, white)
	// Left quarter repainted black: 25% of pixels differ.
	changed := solidPNG(t, 40, 40, white, 10, black)

	mismatch, err := ComparePNG(base, changed)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, mismatch, 0.01)
}

func TestComparePNG_SmallShiftsWithinThreshold(t *testing.T) {
	a := solidPNG(t, 20, 20, color.RGBA{200, 200, 200, 255}, 0, color.RGBA{})
	// Every channel off by less than the anti-aliasing threshold.
	b := solidPNG(t, 20, 20, color.RGBA{208, 196, 205, 255}, 0, color.RGBA{})

	mismatch, err := ComparePNG(a, b)
	require.NoError(t, err)
	assert.Equal(t, 0.0, mismatch)
}

func TestComparePNG_DimensionMismatchIsTotal(t *testing.T) {
	white := color.RGBA{255, 255, 255, 255}
	a := solidPNG(t, 40, 40, white, 0, white)
	b := solidPNG(t, 41, 40, white, 0, white)

	mismatch, err := ComparePNG(a, b)
	require.NoError(t, err)
	assert.Equal(t, 100.0, mismatch)
}

func TestComparePNG_RejectsGarbage(t *testing.T) {
	white := color.RGBA{255, 255, 255, 255}
	good := solidPNG(t, 10, 10, white, 0, white)

	_, err := ComparePNG([]byte("not a png"), good)
	assert.Error(t, err)
	_, err = ComparePNG(good, []byte("not a png"))
	assert.Error(t, err)
}
