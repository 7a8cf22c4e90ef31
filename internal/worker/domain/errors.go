package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrImageExpired is returned when the image key is absent at fetch time
	ErrImageExpired = errors.New("image expired before processing")

	// ErrConversionFailed is returned when the conversion engine fails
	ErrConversionFailed = errors.New("conversion failed")

	// ErrEmptyOutput is returned when the engine exits cleanly but writes nothing
	ErrEmptyOutput = errors.New("conversion produced empty output")

	// ErrProtocolViolation is returned when a queue entry breaks the wire contract
	ErrProtocolViolation = errors.New("protocol violation")
)

// ConversionError reports a non-zero exit of the conversion engine
type ConversionError struct {
	ExitCode int
	Output   string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("conversion engine exited with status %d", e.ExitCode)
}

// Unwrap lets errors.Is match ErrConversionFailed
func (e *ConversionError) Unwrap() error {
	return ErrConversionFailed
}

// IsConversionFailure reports whether err means the engine did not produce a result
func IsConversionFailure(err error) bool {
	return errors.Is(err, ErrConversionFailed) || errors.Is(err, ErrEmptyOutput)
}
