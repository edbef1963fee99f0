package imaging

import (
	"image"
	"math"
	"testing"
)

// createTestGrid builds a grid from a pattern function
func createTestGrid(rows, cols int, pattern func(r, c int) float64) *Grid {
	g := NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			g.Set(r, c, pattern(r, c))
		}
	}
	return g
}

func TestNormalizeMinMax(t *testing.T) {
	t.Run("Range", func(t *testing.T) {
		g := createTestGrid(4, 4, func(r, c int) float64 { return float64(1000 + r*4 + c) })
		norm := NormalizeMinMax(g)

		if norm.At(0, 0) != 0 {
			t.Errorf("Minimum should map to 0, got %v", norm.At(0, 0))
		}
		if norm.At(3, 3) != 255 {
			t.Errorf("Maximum should map to 255, got %v", norm.At(3, 3))
		}
		for i, v := range norm.Pix {
			if v != math.Trunc(v) {
				t.Fatalf("Sample %d is not an integer: %v", i, v)
			}
		}
	})

	t.Run("Constant", func(t *testing.T) {
		g := createTestGrid(3, 3, func(r, c int) float64 { return 4095 })
		norm := NormalizeMinMax(g)
		for i, v := range norm.Pix {
			if v != 0 {
				t.Fatalf("Constant image should normalize to 0, sample %d = %v", i, v)
			}
		}
	})
}

func TestMatRoundTrip(t *testing.T) {
	g := createTestGrid(3, 4, func(r, c int) float64 { return float64(r*4+c) - 2.5 })

	m := g.ToMat()
	defer m.Close()
	if m.Rows() != 3 || m.Cols() != 4 {
		t.Fatalf("Mat size = %dx%d, want 3x4", m.Rows(), m.Cols())
	}
	back := GridFromMat(m)
	for i := range g.Pix {
		if back.Pix[i] != g.Pix[i] {
			t.Fatalf("Sample %d = %v, want %v", i, back.Pix[i], g.Pix[i])
		}
	}

	m8 := g.ToMat8U()
	defer m8.Close()
	sat := GridFromMat(m8)
	if sat.At(0, 0) != 0 || sat.At(2, 3) != 8 {
		t.Errorf("8-bit copy should saturate and round: %v", sat.Pix)
	}
}

func TestStats(t *testing.T) {
	t.Run("SkewnessConstant", func(t *testing.T) {
		if s := Skewness([]float64{7, 7, 7, 7}); s != 0 {
			t.Errorf("Skewness of constant data = %v, want 0", s)
		}
	})

	t.Run("SkewnessSign", func(t *testing.T) {
		if s := Skewness([]float64{0, 0, 0, 0, 10}); s <= 0 {
			t.Errorf("Right-tailed data should have positive skewness, got %v", s)
		}
	})

	t.Run("CorrelationUndefined", func(t *testing.T) {
		if c := Correlation([]float64{1, 1, 1}, []float64{1, 2, 3}); c != 0 {
			t.Errorf("Zero-variance correlation = %v, want 0", c)
		}
		if c := Correlation(nil, nil); c != 0 {
			t.Errorf("Empty correlation = %v, want 0", c)
		}
	})

	t.Run("CorrelationPerfect", func(t *testing.T) {
		c := Correlation([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8})
		if math.Abs(c-1) > 1e-12 {
			t.Errorf("Correlation = %v, want 1", c)
		}
	})

	t.Run("Median", func(t *testing.T) {
		if m := Median([]float64{3, 1, 2}); m != 2 {
			t.Errorf("Median = %v, want 2", m)
		}
		if m := Median([]float64{4, 1, 3, 2}); m != 2.5 {
			t.Errorf("Median = %v, want 2.5", m)
		}
		if m := Median(nil); m != 0 {
			t.Errorf("Median of empty slice = %v, want 0", m)
		}
	})

	t.Run("PopStdDev", func(t *testing.T) {
		if s := PopStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9}); math.Abs(s-2) > 1e-12 {
			t.Errorf("PopStdDev = %v, want 2", s)
		}
	})
}

func TestGridFlipAndCrop(t *testing.T) {
	g := createTestGrid(2, 3, func(r, c int) float64 { return float64(r*3 + c) })

	h := g.FlipHorizontal()
	if h.At(0, 0) != 2 || h.At(1, 2) != 3 {
		t.Errorf("FlipHorizontal wrong: %v", h.Pix)
	}
	v := g.FlipVertical()
	if v.At(0, 0) != 3 || v.At(1, 2) != 2 {
		t.Errorf("FlipVertical wrong: %v", v.Pix)
	}

	crop := g.Crop(image.Rect(1, 0, 3, 2))
	if crop.Rows != 2 || crop.Cols != 2 || crop.At(1, 1) != 5 {
		t.Errorf("Crop wrong: %+v", crop)
	}
}

func TestFromImageRoundTrip(t *testing.T) {
	g := createTestGrid(4, 5, func(r, c int) float64 { return float64(r*50 + c) })
	back := FromImage(g.ToGray())
	for i := range g.Pix {
		if back.Pix[i] != g.Pix[i] {
			t.Fatalf("Sample %d = %v, want %v", i, back.Pix[i], g.Pix[i])
		}
	}
}
