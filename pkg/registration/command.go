package registration

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Command is one external tool invocation
type Command struct {
	Name string
	Args []string
}

// String renders the command as it would be typed in a shell
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	for _, a := range c.Args {
		if strings.ContainsAny(a, " []\t") {
			a = "'" + a + "'"
		}
		parts = append(parts, a)
	}
	return strings.Join(parts, " ")
}

// Runner executes external commands
type Runner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// ExecRunner runs commands with os/exec, streaming their output
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes name with args and waits for it to finish
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// RegistrationCommand builds the antsRegistration call aligning moving to
// fixed with a single transform stage of the given type (Rigid, Affine).
// No initial moving transform is given, so the stage starts from identity.
// The warped moving volume is written to warped and the transform files
// start with outputPrefix.
func RegistrationCommand(exe, transformType, fixed, moving, outputPrefix, warped string) Command {
	return Command{
		Name: exe,
		Args: []string{
			"--dimensionality", "3",
			"--float", "0",
			"--output", fmt.Sprintf("[%s,%s]", outputPrefix, warped),
			"--interpolation", "Linear",
			"--winsorize-image-intensities", "[0.005,0.995]",
			"--use-histogram-matching", "0",
			"--transform", transformType + "[0.1]",
			"--metric", fmt.Sprintf("MI[%s,%s,1,32,Regular,0.25]", fixed, moving),
			"--convergence", "[1000x500x250x100,1e-6,10]",
			"--shrink-factors", "8x4x2x1",
			"--smoothing-sigmas", "3x2x1x0vox",
		},
	}
}

// ApplyCommand builds the antsApplyTransforms call resampling a label mask
// into the reference space with nearest-neighbour interpolation.
func ApplyCommand(exe, reference, mask, output, transform string) Command {
	return Command{
		Name: exe,
		Args: []string{
			"--dimensionality", "3",
			"--input", mask,
			"--reference-image", reference,
			"--output", output,
			"--interpolation", "NearestNeighbor",
			"--transform", transform,
		},
	}
}
