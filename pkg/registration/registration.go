// Package registration drives a rigid registration of a fetal-brain subject
// volume to an age-matched atlas with the ANTs command-line tools, and
// resamples the subject's segmentation masks into atlas space.
package registration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"fetalbrainqc/pkg/config"
)

const niftiExt = ".nii.gz"

var (
	// ErrAtlasNotFound is returned when no file matches the atlas pattern
	ErrAtlasNotFound = errors.New("no atlas file found")

	// ErrSubjectNotFound is returned when the subject volume is missing
	ErrSubjectNotFound = errors.New("subject volume not found")
)

// Inputs are the volumes found in a registration folder
type Inputs struct {
	Dir     string
	Atlas   string
	Subject string
	Masks   []string
}

// MaskJob resamples one mask into atlas space
type MaskJob struct {
	Mask    string
	Output  string
	Command Command
}

// Plan is the full set of commands for one registration folder
type Plan struct {
	Inputs

	AtlasInfo   VolumeInfo
	SubjectInfo VolumeInfo

	RegisteredPath string
	TransformPath  string
	Registration   Command
	MaskJobs       []MaskJob
}

// Driver plans and runs registrations
type Driver struct {
	cfg    *config.Config
	runner Runner
	header HeaderFunc
	out    io.Writer
}

// NewDriver creates a driver executing commands with runner. A nil runner
// executes the ANTs binaries found on PATH.
func NewDriver(cfg *config.Config, runner Runner) *Driver {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if runner == nil {
		runner = &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr}
	}
	return &Driver{
		cfg:    cfg,
		runner: runner,
		header: ReadHeader,
		out:    os.Stdout,
	}
}

// SetHeaderFunc replaces the NIfTI header reader
func (d *Driver) SetHeaderFunc(fn HeaderFunc) {
	d.header = fn
}

// SetOutput redirects the progress output
func (d *Driver) SetOutput(w io.Writer) {
	d.out = w
}

// Discover finds the atlas, subject and mask volumes in dir. The first atlas
// match in name order is used. Masks are all other NIfTI volumes except the
// atlas, the subject and outputs of an earlier run.
func (d *Driver) Discover(dir string) (*Inputs, error) {
	rc := d.cfg.Registration

	atlases, err := filepath.Glob(filepath.Join(dir, rc.AtlasPattern))
	if err != nil {
		return nil, fmt.Errorf("invalid atlas pattern %q: %w", rc.AtlasPattern, err)
	}
	if len(atlases) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrAtlasNotFound, rc.AtlasPattern, dir)
	}

	subject := filepath.Join(dir, rc.SubjectVolume)
	if info, err := os.Stat(subject); err != nil || info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSubjectNotFound, subject)
	}

	volumes, err := filepath.Glob(filepath.Join(dir, "*"+niftiExt))
	if err != nil {
		return nil, err
	}

	inputs := &Inputs{Dir: dir, Atlas: atlases[0], Subject: subject}
	for _, v := range volumes {
		if d.isMask(filepath.Base(v)) {
			inputs.Masks = append(inputs.Masks, v)
		}
	}
	return inputs, nil
}

func (d *Driver) isMask(name string) bool {
	rc := d.cfg.Registration
	switch {
	case rc.AtlasMarker != "" && strings.Contains(name, rc.AtlasMarker):
		return false
	case rc.SubjectMarker != "" && strings.Contains(name, rc.SubjectMarker):
		return false
	case name == rc.SubjectVolume || name == rc.RegisteredName:
		return false
	case strings.HasSuffix(name, rc.MaskSuffix+niftiExt):
		return false
	}
	return true
}

// MaskOutput returns the resampled mask path for mask
func (d *Driver) MaskOutput(mask string) string {
	return strings.TrimSuffix(mask, niftiExt) + d.cfg.Registration.MaskSuffix + niftiExt
}

// Plan discovers the inputs of dir, checks their headers and builds the
// commands to run.
func (d *Driver) Plan(dir string) (*Plan, error) {
	inputs, err := d.Discover(dir)
	if err != nil {
		return nil, err
	}

	atlasInfo, err := d.header(inputs.Atlas)
	if err != nil {
		return nil, fmt.Errorf("error reading atlas header: %w", err)
	}
	subjectInfo, err := d.header(inputs.Subject)
	if err != nil {
		return nil, fmt.Errorf("error reading subject header: %w", err)
	}

	rc := d.cfg.Registration
	prefix := filepath.Join(dir, rc.TransformPrefix)
	plan := &Plan{
		Inputs:         *inputs,
		AtlasInfo:      atlasInfo,
		SubjectInfo:    subjectInfo,
		RegisteredPath: filepath.Join(dir, rc.RegisteredName),
		TransformPath:  prefix + "0GenericAffine.mat",
	}
	plan.Registration = RegistrationCommand(rc.RegistrationExec, rc.TransformType,
		inputs.Atlas, inputs.Subject, prefix, plan.RegisteredPath)

	for _, mask := range inputs.Masks {
		out := d.MaskOutput(mask)
		plan.MaskJobs = append(plan.MaskJobs, MaskJob{
			Mask:    mask,
			Output:  out,
			Command: ApplyCommand(rc.ApplyExec, inputs.Atlas, mask, out, plan.TransformPath),
		})
	}
	return plan, nil
}

// Run registers the subject of dir to its atlas and resamples every mask.
// With dryRun set the commands are only printed. A failing mask is reported
// and the remaining masks are still processed.
func (d *Driver) Run(ctx context.Context, dir string, dryRun bool) (*Plan, error) {
	fmt.Fprintln(d.out, "Step 1: Identifying input volumes...")
	plan, err := d.Plan(dir)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(d.out, "Using atlas: %s (%s)\n", plan.Atlas, plan.AtlasInfo)
	fmt.Fprintf(d.out, "Using moving volume: %s (%s)\n", plan.Subject, plan.SubjectInfo)
	fmt.Fprintf(d.out, "Found %d masks\n", len(plan.MaskJobs))

	fmt.Fprintf(d.out, "Step 2: Running %s registration...\n", strings.ToLower(d.cfg.Registration.TransformType))
	if dryRun {
		fmt.Fprintf(d.out, "  %s\n", plan.Registration)
	} else {
		if err := d.runner.Run(ctx, plan.Registration.Name, plan.Registration.Args...); err != nil {
			return plan, fmt.Errorf("registration failed: %w", err)
		}
		fmt.Fprintf(d.out, "Saved registered volume: %s\n", plan.RegisteredPath)
	}

	fmt.Fprintln(d.out, "Step 3: Applying transform to masks...")
	var errs []error
	for _, job := range plan.MaskJobs {
		if dryRun {
			fmt.Fprintf(d.out, "  %s\n", job.Command)
			continue
		}
		if err := d.runner.Run(ctx, job.Command.Name, job.Command.Args...); err != nil {
			fmt.Fprintf(d.out, "Warning: Failed to resample %s: %v\n", job.Mask, err)
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(job.Mask), err))
			continue
		}
		fmt.Fprintf(d.out, "Saved registered mask: %s\n", job.Output)
	}

	if dryRun {
		fmt.Fprintln(d.out, "Dry run - no commands executed")
		return plan, nil
	}
	if len(errs) > 0 {
		return plan, fmt.Errorf("%d of %d masks failed: %w", len(errs), len(plan.MaskJobs), errors.Join(errs...))
	}
	fmt.Fprintln(d.out, "Registration completed for all files.")
	return plan, nil
}
