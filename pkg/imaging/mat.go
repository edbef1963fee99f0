package imaging

import (
	"gocv.io/x/gocv"
)

// ToMat copies the grid into a new single-channel CV64F Mat.
// The caller owns the Mat and must Close it.
func (g *Grid) ToMat() gocv.Mat {
	m := gocv.NewMatWithSize(g.Rows, g.Cols, gocv.MatTypeCV64F)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			m.SetDoubleAt(r, c, g.Pix[r*g.Cols+c])
		}
	}
	return m
}

// ToMat8U copies the grid into a new CV8U Mat, saturating every sample.
func (g *Grid) ToMat8U() gocv.Mat {
	m := gocv.NewMatWithSize(g.Rows, g.Cols, gocv.MatTypeCV8U)
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			m.SetUCharAt(r, c, SaturateUint8(g.Pix[r*g.Cols+c]))
		}
	}
	return m
}

// GridFromMat copies a single-channel Mat into a grid. Depths other than
// 8U, 32S, 32F and 64F are converted to 64F first.
func GridFromMat(m gocv.Mat) *Grid {
	g := NewGrid(m.Rows(), m.Cols())
	if g.Empty() {
		return g
	}

	var at func(r, c int) float64
	switch m.Type() {
	case gocv.MatTypeCV8U:
		at = func(r, c int) float64 { return float64(m.GetUCharAt(r, c)) }
	case gocv.MatTypeCV32S:
		at = func(r, c int) float64 { return float64(m.GetIntAt(r, c)) }
	case gocv.MatTypeCV32F:
		at = func(r, c int) float64 { return float64(m.GetFloatAt(r, c)) }
	case gocv.MatTypeCV64F:
		at = m.GetDoubleAt
	default:
		converted := gocv.NewMat()
		defer converted.Close()
		m.ConvertTo(&converted, gocv.MatTypeCV64F)
		at = converted.GetDoubleAt
	}

	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			g.Pix[r*g.Cols+c] = at(r, c)
		}
	}
	return g
}

// NormalizeMat rescales src linearly so its minimum maps to 0 and its maximum
// to 255 and returns the result as a new CV8U Mat, matching cv::normalize with
// NORM_MINMAX and an 8-bit destination. A constant image maps to all zeros.
func NormalizeMat(src gocv.Mat) gocv.Mat {
	wide := gocv.NewMat()
	defer wide.Close()
	src.ConvertTo(&wide, gocv.MatTypeCV64F)

	scaled := gocv.NewMat()
	defer scaled.Close()
	gocv.Normalize(wide, &scaled, 0, 255, gocv.NormMinMax)

	out := gocv.NewMat()
	scaled.ConvertTo(&out, gocv.MatTypeCV8U)
	return out
}

// NormalizeMinMax is NormalizeMat for grids.
func NormalizeMinMax(g *Grid) *Grid {
	src := g.ToMat()
	defer src.Close()
	norm := NormalizeMat(src)
	defer norm.Close()
	return GridFromMat(norm)
}
