// Package dicomio reads the slices the scorer works on from DICOM files and
// extracts the acquisition metadata it reports.
package dicomio

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"fetalbrainqc/internal/models"
	"fetalbrainqc/pkg/imaging"
)

// ErrNoPixelData is returned for datasets without a decodable image
var ErrNoPixelData = errors.New("no pixel data found")

// Reader loads one slice from a file path
type Reader interface {
	Read(path string) (*models.Slice, error)
}

// FileReader parses DICOM files from disk
type FileReader struct{}

// Read parses the file and returns its middle frame as a slice
func (FileReader) Read(path string) (*models.Slice, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("error parsing DICOM file %s: %w", path, err)
	}
	return SliceFromDataset(ds, path)
}

// SliceFromDataset extracts the image to score from a parsed dataset.
// Multi-frame data yields the middle frame (index frames/2).
func SliceFromDataset(ds dicom.Dataset, path string) (*models.Slice, error) {
	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, ErrNoPixelData
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return nil, ErrNoPixelData
	}

	frameIndex := 0
	if len(info.Frames) > 1 {
		frameIndex = len(info.Frames) / 2
	}

	pixels, err := decodeFrame(ds, info.Frames[frameIndex])
	if err != nil {
		return nil, fmt.Errorf("error decoding frame %d: %w", frameIndex, err)
	}
	if pixels.Empty() {
		return nil, ErrNoPixelData
	}

	slice := &models.Slice{
		Pixels:     pixels,
		Filename:   path,
		NumFrames:  len(info.Frames),
		FrameIndex: frameIndex,
	}

	if bits, ok := firstInt(ds, tag.BitsAllocated); ok {
		rep, _ := firstInt(ds, tag.PixelRepresentation)
		slice.Is8Bit = bits == 8 && rep == 0
	}
	slice.ImageOrientationPatient = floatValues(ds, tag.ImageOrientationPatient)

	return slice, nil
}

// decodeFrame returns the stored sample values of a frame. Native frames are
// read sample by sample so signed and 32-bit data keep their values;
// PixelRepresentation 1 sign-extends each sample from BitsStored bits.
// Encapsulated frames go through their image decoder. Only the first sample
// of multi-sample pixels is kept.
func decodeFrame(ds dicom.Dataset, f *frame.Frame) (*imaging.Grid, error) {
	if f.IsEncapsulated() {
		img, err := f.GetImage()
		if err != nil {
			return nil, err
		}
		return imaging.FromImage(img), nil
	}

	native, err := f.GetNativeFrame()
	if err != nil {
		return nil, err
	}

	bitsStored := native.BitsPerSample()
	if bits, ok := firstInt(ds, tag.BitsStored); ok && bits > 0 {
		bitsStored = bits
	}
	signed := false
	if rep, ok := firstInt(ds, tag.PixelRepresentation); ok {
		signed = rep == 1
	}

	g := imaging.NewGrid(native.Rows(), native.Cols())
	spp := max(native.SamplesPerPixel(), 1)
	switch raw := native.RawDataSlice().(type) {
	case []uint8:
		fillSamples(g, raw, spp, signed, bitsStored)
	case []uint16:
		fillSamples(g, raw, spp, signed, bitsStored)
	case []uint32:
		fillSamples(g, raw, spp, signed, bitsStored)
	case []int:
		fillSamples(g, raw, spp, false, bitsStored)
	default:
		return nil, fmt.Errorf("unsupported sample type %T", raw)
	}
	return g, nil
}

type rawSample interface {
	~uint8 | ~uint16 | ~uint32 | ~int
}

func fillSamples[S rawSample](g *imaging.Grid, raw []S, spp int, signed bool, bitsStored int) {
	for i := range g.Pix {
		idx := i * spp
		if idx >= len(raw) {
			return
		}
		v := int64(raw[idx])
		if signed {
			v = signExtend(v, bitsStored)
		}
		g.Pix[i] = float64(v)
	}
}

// signExtend interprets the low bits of v as a two's complement number
func signExtend(v int64, bits int) int64 {
	if bits <= 0 || bits >= 64 {
		return v
	}
	v &= 1<<bits - 1
	if v&(1<<(bits-1)) != 0 {
		v -= 1 << bits
	}
	return v
}

// MaternalPlane derives the acquisition plane of the maternal scan from the
// ImageOrientationPatient direction cosines. The first cosine of the row
// direction that exceeds 0.9 in magnitude decides the plane.
func MaternalPlane(iop []float64) string {
	planes := []string{"SAGITTAL", "CORONAL", "AXIAL"}
	for i, plane := range planes {
		if i < len(iop) && math.Abs(iop[i]) > 0.9 {
			return plane
		}
	}
	return "UNKNOWN"
}

func firstInt(ds dicom.Dataset, t tag.Tag) (int, bool) {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	ints, ok := elem.Value.GetValue().([]int)
	if !ok || len(ints) == 0 {
		return 0, false
	}
	return ints[0], true
}

// floatValues parses a decimal string element. Unparseable values end the list.
func floatValues(ds dicom.Dataset, t tag.Tag) []float64 {
	elem, err := ds.FindElementByTag(t)
	if err != nil {
		return nil
	}
	strs, ok := elem.Value.GetValue().([]string)
	if !ok {
		return nil
	}
	var out []float64
	for _, s := range strs {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}
