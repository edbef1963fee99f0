// Package imaging holds the row-major float64 grid that slices and detection
// stages are stored in, its conversion to and from gocv Mats, and the sample
// statistics the orientation and quality heuristics compute on it.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

// Grid is a single-channel image stored in row-major order.
// Pix[r*Cols+c] holds the sample at row r, column c.
type Grid struct {
	Rows int
	Cols int
	Pix  []float64
}

// NewGrid allocates a zero-filled grid with the given dimensions.
func NewGrid(rows, cols int) *Grid {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	return &Grid{
		Rows: rows,
		Cols: cols,
		Pix:  make([]float64, rows*cols),
	}
}

// GridFromValues wraps an existing row-major sample slice.
func GridFromValues(rows, cols int, values []float64) (*Grid, error) {
	if rows*cols != len(values) {
		return nil, fmt.Errorf("grid %dx%d needs %d samples, got %d", rows, cols, rows*cols, len(values))
	}
	return &Grid{Rows: rows, Cols: cols, Pix: values}, nil
}

// At returns the sample at row r, column c.
func (g *Grid) At(r, c int) float64 {
	return g.Pix[r*g.Cols+c]
}

// Set stores v at row r, column c.
func (g *Grid) Set(r, c int, v float64) {
	g.Pix[r*g.Cols+c] = v
}

// Len returns the number of samples in the grid.
func (g *Grid) Len() int {
	return len(g.Pix)
}

// Empty reports whether the grid holds no samples.
func (g *Grid) Empty() bool {
	return g == nil || g.Rows == 0 || g.Cols == 0
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	out := NewGrid(g.Rows, g.Cols)
	copy(out.Pix, g.Pix)
	return out
}

// Crop returns a copy of the samples inside rect, where rect.Min.X/Max.X index
// columns and rect.Min.Y/Max.Y index rows. The rectangle is clipped to the grid.
func (g *Grid) Crop(rect image.Rectangle) *Grid {
	rect = rect.Intersect(image.Rect(0, 0, g.Cols, g.Rows))
	out := NewGrid(rect.Dy(), rect.Dx())
	for r := 0; r < out.Rows; r++ {
		src := (rect.Min.Y+r)*g.Cols + rect.Min.X
		copy(out.Pix[r*out.Cols:(r+1)*out.Cols], g.Pix[src:src+out.Cols])
	}
	return out
}

// FlipHorizontal mirrors the grid left-to-right.
func (g *Grid) FlipHorizontal() *Grid {
	out := NewGrid(g.Rows, g.Cols)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			out.Pix[r*g.Cols+c] = g.Pix[r*g.Cols+(g.Cols-1-c)]
		}
	}
	return out
}

// FlipVertical mirrors the grid top-to-bottom.
func (g *Grid) FlipVertical() *Grid {
	out := NewGrid(g.Rows, g.Cols)
	for r := 0; r < g.Rows; r++ {
		copy(out.Pix[r*g.Cols:(r+1)*g.Cols], g.Pix[(g.Rows-1-r)*g.Cols:(g.Rows-r)*g.Cols])
	}
	return out
}

// FromImage converts any image.Image to a grid of 16-bit luminance values.
// Gray and Gray16 images keep their raw sample values.
func FromImage(img image.Image) *Grid {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	out := NewGrid(height, width)

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Pix[y*width+x] = float64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	case *image.Gray16:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				out.Pix[y*width+x] = float64(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				gray := color.Gray16Model.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray16)
				out.Pix[y*width+x] = float64(gray.Y)
			}
		}
	}

	return out
}

// ToGray renders the grid as an 8-bit image, saturating samples to 0..255.
// Callers normally normalize first.
func (g *Grid) ToGray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Cols, g.Rows))
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			img.SetGray(c, r, color.Gray{Y: SaturateUint8(g.Pix[r*g.Cols+c])})
		}
	}
	return img
}

// SaturateUint8 rounds v to the nearest integer and clamps it to 0..255,
// the way 8-bit destination buffers are written.
func SaturateUint8(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.RoundToEven(v))
}
