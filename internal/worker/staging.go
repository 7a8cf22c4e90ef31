package worker

import (
	"errors"
	"fmt"
	"os"

	"github.com/fabseal/fabseal/internal/worker/domain"
)

// Staging pairs the temporary input and output files handed to the
// conversion engine. Both files are removed by Finish or Abort, whichever
// comes first.
type Staging struct {
	input   string
	output  string
	cleaned bool
}

// NewStaging writes payload to a fresh input file and reserves an empty
// output file next to it. dir "" means the OS temp directory.
func NewStaging(dir string, payload []byte) (*Staging, error) {
	in, err := os.CreateTemp(dir, "fabseal-input-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create input file: %w", err)
	}
	s := &Staging{input: in.Name()}

	_, err = in.Write(payload)
	if closeErr := in.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.cleanup()
		return nil, fmt.Errorf("failed to write input file: %w", err)
	}

	out, err := os.CreateTemp(dir, "fabseal-output-*")
	if err != nil {
		_ = s.cleanup()
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	s.output = out.Name()
	if err := out.Close(); err != nil {
		_ = s.cleanup()
		return nil, fmt.Errorf("failed to close output file: %w", err)
	}

	return s, nil
}

// InputPath returns the path of the staged input.
func (s *Staging) InputPath() string { return s.input }

// OutputPath returns the path the engine should write to.
func (s *Staging) OutputPath() string { return s.output }

// Finish reads the output fully and removes both files. An empty output is
// reported as domain.ErrEmptyOutput.
func (s *Staging) Finish() ([]byte, error) {
	if s.cleaned {
		return nil, errors.New("staging already cleaned up")
	}

	data, readErr := os.ReadFile(s.output)
	cleanErr := s.cleanup()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read output file: %w", readErr)
	}
	if len(data) == 0 {
		return nil, domain.ErrEmptyOutput
	}
	if cleanErr != nil {
		return nil, cleanErr
	}
	return data, nil
}

// Abort removes both files without reading the output.
func (s *Staging) Abort() error {
	return s.cleanup()
}

func (s *Staging) cleanup() error {
	if s.cleaned {
		return nil
	}
	s.cleaned = true

	var errs []error
	for _, path := range []string{s.input, s.output} {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to remove staging files: %w", errors.Join(errs...))
	}
	return nil
}
