package registration

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/henghuang/nifti"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fetalbrainqc/pkg/config"
)

type fakeRunner struct {
	calls  []Command
	failOn string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.calls = append(f.calls, Command{Name: name, Args: args})
	if f.failOn != "" && strings.Contains(strings.Join(args, " "), f.failOn) {
		return errors.New("exit status 1")
	}
	return nil
}

func fakeHeader(path string) (VolumeInfo, error) {
	return VolumeInfo{Path: path, Spacing: [3]float64{0.8, 0.8, 0.8}}, nil
}

func createRegistrationDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0644))
	}
	return dir
}

func newTestDriver(runner Runner) (*Driver, *bytes.Buffer) {
	d := NewDriver(config.DefaultConfig(), runner)
	d.SetHeaderFunc(fakeHeader)
	var out bytes.Buffer
	d.SetOutput(&out)
	return d, &out
}

func TestDiscover(t *testing.T) {
	dir := createRegistrationDir(t,
		"t2w_GA37_tissue.nii.gz",
		"t2w_GA35_tissue.nii.gz",
		"srr_deconv.nii.gz",
		"srr_registered.nii.gz",
		"sub_L_pial.nii.gz",
		"sub_R_white.nii.gz",
		"sub_L_pial_rai.nii.gz",
		"notes.txt",
	)
	d, _ := newTestDriver(&fakeRunner{})

	inputs, err := d.Discover(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "t2w_GA35_tissue.nii.gz"), inputs.Atlas, "first match in name order")
	assert.Equal(t, filepath.Join(dir, "srr_deconv.nii.gz"), inputs.Subject)
	assert.Equal(t, []string{
		filepath.Join(dir, "sub_L_pial.nii.gz"),
		filepath.Join(dir, "sub_R_white.nii.gz"),
	}, inputs.Masks)
}

func TestDiscoverMissingInputs(t *testing.T) {
	d, _ := newTestDriver(&fakeRunner{})

	_, err := d.Discover(createRegistrationDir(t, "srr_deconv.nii.gz", "mask.nii.gz"))
	assert.ErrorIs(t, err, ErrAtlasNotFound)

	_, err = d.Discover(createRegistrationDir(t, "t2w_GA30_tissue.nii.gz", "mask.nii.gz"))
	assert.ErrorIs(t, err, ErrSubjectNotFound)
}

func TestMaskOutput(t *testing.T) {
	d, _ := newTestDriver(nil)
	assert.Equal(t, "/reg/sub_L_pial_rai.nii.gz", d.MaskOutput("/reg/sub_L_pial.nii.gz"))
}

func TestRun(t *testing.T) {
	dir := createRegistrationDir(t, "t2w_GA37_tissue.nii.gz", "srr_deconv.nii.gz", "a.nii.gz", "b.nii.gz")
	runner := &fakeRunner{}
	d, out := newTestDriver(runner)

	plan, err := d.Run(context.Background(), dir, false)
	require.NoError(t, err)

	require.Len(t, runner.calls, 3)
	reg := runner.calls[0]
	assert.Equal(t, "antsRegistration", reg.Name)
	assert.Contains(t, reg.Args, "Rigid[0.1]")
	assert.Contains(t, reg.Args, "["+filepath.Join(dir, "srr_to_atlas_")+","+filepath.Join(dir, "srr_registered.nii.gz")+"]")
	assert.NotContains(t, reg.Args, "--initial-moving-transform")

	apply := runner.calls[1]
	assert.Equal(t, "antsApplyTransforms", apply.Name)
	assert.Contains(t, apply.Args, "NearestNeighbor")
	assert.Contains(t, apply.Args, filepath.Join(dir, "a.nii.gz"))
	assert.Contains(t, apply.Args, filepath.Join(dir, "a_rai.nii.gz"))
	assert.Contains(t, apply.Args, plan.TransformPath)
	assert.Contains(t, apply.Args, plan.Atlas)

	assert.Contains(t, out.String(), "Found 2 masks")
	assert.Contains(t, out.String(), "Registration completed for all files.")
}

func TestRunDryRun(t *testing.T) {
	dir := createRegistrationDir(t, "t2w_GA37_tissue.nii.gz", "srr_deconv.nii.gz", "a.nii.gz")
	runner := &fakeRunner{}
	d, out := newTestDriver(runner)

	plan, err := d.Run(context.Background(), dir, true)
	require.NoError(t, err)

	assert.Empty(t, runner.calls)
	assert.Contains(t, out.String(), plan.Registration.String())
	assert.Contains(t, out.String(), plan.MaskJobs[0].Command.String())
	assert.Contains(t, out.String(), "Dry run - no commands executed")
}

func TestRunFailures(t *testing.T) {
	dir := createRegistrationDir(t, "t2w_GA37_tissue.nii.gz", "srr_deconv.nii.gz", "a.nii.gz", "b.nii.gz")

	t.Run("registration", func(t *testing.T) {
		runner := &fakeRunner{failOn: "--metric"}
		d, _ := newTestDriver(runner)
		_, err := d.Run(context.Background(), dir, false)
		assert.Error(t, err)
		assert.Len(t, runner.calls, 1, "masks are not resampled after a failed registration")
	})

	t.Run("mask", func(t *testing.T) {
		runner := &fakeRunner{failOn: "a.nii.gz"}
		d, out := newTestDriver(runner)
		_, err := d.Run(context.Background(), dir, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 2 masks failed")
		assert.Len(t, runner.calls, 3, "remaining masks are still processed")
		assert.Contains(t, out.String(), "Saved registered mask: "+filepath.Join(dir, "b_rai.nii.gz"))
	})

	t.Run("header", func(t *testing.T) {
		d, _ := newTestDriver(&fakeRunner{})
		d.SetHeaderFunc(func(path string) (VolumeInfo, error) {
			return VolumeInfo{}, errors.New("truncated")
		})
		_, err := d.Run(context.Background(), dir, true)
		assert.ErrorContains(t, err, "atlas header")
	})
}

// writeHeader writes hdr to path, gzipped when path ends in .gz, and keeps
// only the first limit bytes when limit is positive.
func writeHeader(t *testing.T, path string, hdr nifti.Nifti1Header, order binary.ByteOrder, limit int) {
	t.Helper()
	var raw bytes.Buffer
	require.NoError(t, binary.Write(&raw, order, &hdr))
	data := raw.Bytes()
	if limit > 0 {
		data = data[:limit]
	}

	if strings.HasSuffix(path, ".gz") {
		var zipped bytes.Buffer
		zw := gzip.NewWriter(&zipped)
		_, err := zw.Write(data)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		data = zipped.Bytes()
	}
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func createHeader(spacing ...float32) nifti.Nifti1Header {
	var hdr nifti.Nifti1Header
	hdr.SizeofHdr = 348
	hdr.Dim = [8]int16{3, 64, 64, 40, 1, 1, 1, 1}
	hdr.Pixdim[0] = 1
	copy(hdr.Pixdim[1:], spacing)
	copy(hdr.Magic[:], "n+1\x00")
	return hdr
}

func TestReadHeader(t *testing.T) {
	dir := t.TempDir()

	t.Run("gzipped", func(t *testing.T) {
		path := filepath.Join(dir, "atlas.nii.gz")
		writeHeader(t, path, createHeader(0.8, 0.8, 1.2), binary.LittleEndian, 0)

		info, err := ReadHeader(path)
		require.NoError(t, err)
		assert.Equal(t, path, info.Path)
		assert.Equal(t, [3]float64{float64(float32(0.8)), float64(float32(0.8)), float64(float32(1.2))}, info.Spacing)
	})

	t.Run("uncompressed", func(t *testing.T) {
		path := filepath.Join(dir, "plain.nii")
		writeHeader(t, path, createHeader(0.5, 0.5, 0.5), binary.LittleEndian, 0)

		info, err := ReadHeader(path)
		require.NoError(t, err)
		assert.Equal(t, [3]float64{0.5, 0.5, 0.5}, info.Spacing)
	})

	t.Run("non-positive spacing", func(t *testing.T) {
		path := filepath.Join(dir, "flat.nii.gz")
		writeHeader(t, path, createHeader(0.8, 0, 1), binary.LittleEndian, 0)

		_, err := ReadHeader(path)
		assert.ErrorContains(t, err, "non-positive voxel spacing")
	})

	t.Run("truncated", func(t *testing.T) {
		path := filepath.Join(dir, "short.nii.gz")
		writeHeader(t, path, createHeader(1, 1, 1), binary.LittleEndian, 100)

		_, err := ReadHeader(path)
		assert.ErrorContains(t, err, "truncated header")
	})

	t.Run("wrong header size", func(t *testing.T) {
		path := filepath.Join(dir, "nifti2.nii.gz")
		hdr := createHeader(1, 1, 1)
		hdr.SizeofHdr = 540
		writeHeader(t, path, hdr, binary.LittleEndian, 0)

		_, err := ReadHeader(path)
		assert.ErrorIs(t, err, ErrNotNifti)
		assert.ErrorContains(t, err, "sizeof_hdr is 540")
	})

	t.Run("big-endian", func(t *testing.T) {
		path := filepath.Join(dir, "big.nii.gz")
		writeHeader(t, path, createHeader(1, 1, 1), binary.BigEndian, 0)

		_, err := ReadHeader(path)
		assert.ErrorIs(t, err, ErrNotNifti)
		assert.ErrorContains(t, err, "big-endian")
	})

	t.Run("not gzipped", func(t *testing.T) {
		path := filepath.Join(dir, "fake.nii.gz")
		require.NoError(t, os.WriteFile(path, []byte("plain text"), 0644))

		_, err := ReadHeader(path)
		assert.ErrorIs(t, err, ErrNotNifti)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ReadHeader(filepath.Join(dir, "missing.nii.gz"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestPlanReadsHeaders(t *testing.T) {
	dir := t.TempDir()
	writeHeader(t, filepath.Join(dir, "t2w_GA33_tissue.nii.gz"), createHeader(0.8, 0.8, 0.8), binary.LittleEndian, 0)
	writeHeader(t, filepath.Join(dir, "srr_deconv.nii.gz"), createHeader(0.5, 0.5, 0.5), binary.LittleEndian, 0)

	d := NewDriver(config.DefaultConfig(), &fakeRunner{})
	d.SetOutput(&bytes.Buffer{})

	plan, err := d.Plan(dir)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{0.5, 0.5, 0.5}, plan.SubjectInfo.Spacing)
	assert.Equal(t, float64(float32(0.8)), plan.AtlasInfo.Spacing[2])
	assert.Empty(t, plan.MaskJobs)
}

func TestCommandString(t *testing.T) {
	c := Command{Name: "antsApplyTransforms", Args: []string{"--output", "[a,b]", "-v"}}
	assert.Equal(t, "antsApplyTransforms --output '[a,b]' -v", c.String())
}
