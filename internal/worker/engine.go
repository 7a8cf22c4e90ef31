package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fabseal/fabseal/internal/worker/domain"
)

const (
	// DefaultTool is the Blender binary used when none is configured.
	DefaultTool = "/usr/bin/blender"

	blendTemplate = "src/empty.blend"
	driverScript  = "src/displacementMapToStl.py"

	// keep only the tail of the engine's console output for diagnostics
	maxOutputTail = 4 << 10
)

// EngineConfig locates the conversion tool and its resources.
type EngineConfig struct {
	Tool        string
	ResourceDir string
}

// BlenderEngine converts a height map into an STL model by running Blender
// headless with a fixed template scene and driver script.
type BlenderEngine struct {
	tool       string
	blendPath  string
	scriptPath string
	logger     *slog.Logger
}

// NewBlenderEngine resolves the resource directory to absolute paths and
// checks that the template and driver exist.
func NewBlenderEngine(cfg EngineConfig, logger *slog.Logger) (*BlenderEngine, error) {
	tool := cfg.Tool
	if tool == "" {
		tool = DefaultTool
	}

	dir, err := filepath.Abs(cfg.ResourceDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve resource directory %q: %w", cfg.ResourceDir, err)
	}

	e := &BlenderEngine{
		tool:       tool,
		blendPath:  filepath.Join(dir, blendTemplate),
		scriptPath: filepath.Join(dir, driverScript),
		logger:     logger,
	}

	for _, path := range []string{e.blendPath, e.scriptPath} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("conversion resource missing: %w", err)
		}
	}

	logger.Info("Conversion engine configured",
		slog.String("tool", e.tool),
		slog.String("template", e.blendPath),
		slog.String("driver", e.scriptPath),
	)
	return e, nil
}

// Args returns the engine arguments for one conversion.
func (e *BlenderEngine) Args(input, output string) []string {
	return []string{
		"--background", e.blendPath,
		"--python", e.scriptPath,
		"--log-level", "0",
		"--",
		input, output,
	}
}

// Convert runs the engine to completion. No timeout is applied and ctx is
// not used to kill the process: a started conversion always runs to the end.
func (e *BlenderEngine) Convert(_ context.Context, input, output string) error {
	cmd := exec.Command(e.tool, e.Args(input, output)...)

	var console bytes.Buffer
	cmd.Stdout = &console
	cmd.Stderr = &console

	e.logger.Debug("Running conversion engine",
		slog.String("command", cmd.String()),
	)

	err := cmd.Run()
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &domain.ConversionError{
			ExitCode: exitErr.ExitCode(),
			Output:   tail(console.String(), maxOutputTail),
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrConversionFailed, err)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
