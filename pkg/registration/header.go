package registration

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/henghuang/nifti"
	"github.com/klauspost/compress/gzip"
)

// niftiHeaderSize is the sizeof_hdr value of every NIfTI-1 header
const niftiHeaderSize = 348

// ErrNotNifti is returned for files that do not start with a little-endian
// NIfTI-1 header
var ErrNotNifti = errors.New("not a little-endian NIfTI-1 file")

// VolumeInfo is the part of a NIfTI header checked before registration
type VolumeInfo struct {
	Path    string
	Spacing [3]float64
}

func (v VolumeInfo) String() string {
	return fmt.Sprintf("spacing %gx%gx%g mm", v.Spacing[0], v.Spacing[1], v.Spacing[2])
}

// HeaderFunc reads the header of a NIfTI volume
type HeaderFunc func(path string) (VolumeInfo, error)

// ReadHeader loads the NIfTI-1 header of path and returns its voxel spacing.
// Files whose sizeof_hdr is not 348, headers cut short and volumes without
// positive spacing on all three axes are rejected.
func ReadHeader(path string) (info VolumeInfo, err error) {
	if err := checkHeaderSize(path); err != nil {
		return VolumeInfo{}, fmt.Errorf("invalid NIfTI file %s: %w", path, err)
	}

	// Malformed files can make the nifti package panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid NIfTI file %s: %v", path, r)
		}
	}()

	var header nifti.Nifti1Header
	header.LoadHeader(path)
	if header.SizeofHdr != niftiHeaderSize {
		return VolumeInfo{}, fmt.Errorf("invalid NIfTI file %s: truncated header", path)
	}

	info.Path = path
	for i := range info.Spacing {
		info.Spacing[i] = float64(header.Pixdim[i+1])
		if info.Spacing[i] <= 0 {
			return info, fmt.Errorf("invalid NIfTI file %s: non-positive voxel spacing %v", path, header.Pixdim[1:4])
		}
	}
	return info, nil
}

// checkHeaderSize reads the leading sizeof_hdr field of a plain or gzipped
// volume.
func checkHeaderSize(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotNifti, err)
		}
		defer zr.Close()
		r = zr
	}

	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return fmt.Errorf("%w: reading sizeof_hdr: %v", ErrNotNifti, err)
	}
	switch {
	case binary.LittleEndian.Uint32(size[:]) == niftiHeaderSize:
		return nil
	case binary.BigEndian.Uint32(size[:]) == niftiHeaderSize:
		return fmt.Errorf("%w: big-endian header", ErrNotNifti)
	}
	return fmt.Errorf("%w: sizeof_hdr is %d, want %d", ErrNotNifti, int32(binary.LittleEndian.Uint32(size[:])), niftiHeaderSize)
}
