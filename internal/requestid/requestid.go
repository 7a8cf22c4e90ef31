// Package requestid implements the 32-bit correlation key shared by every
// stored artifact and every submission queue entry of one conversion job.
package requestid

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"strconv"
)

// Size is the length of the wire form in bytes.
const Size = 4

// ID identifies one upload/conversion/result triple.
//
// IDs are drawn uniformly at random and are not checked for collisions.
type ID uint32

// LengthError is returned when decoding a wire form of the wrong size.
type LengthError struct {
	Len int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("invalid request id length %d, expected %d bytes", e.Len, Size)
}

// New generates a random ID.
func New() ID {
	return ID(rand.Uint32())
}

// FromBytes decodes the 4-byte little-endian wire form.
func FromBytes(b []byte) (ID, error) {
	if len(b) != Size {
		return 0, &LengthError{Len: len(b)}
	}
	return ID(binary.LittleEndian.Uint32(b)), nil
}

// Parse decodes the hexadecimal text form produced by String.
func Parse(s string) (ID, error) {
	if len(s) != 2*Size {
		return 0, fmt.Errorf("invalid request id %q: expected %d hex digits", s, 2*Size)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid request id %q: %w", s, err)
	}
	return ID(v), nil
}

// Bytes returns the 4-byte little-endian wire form.
func (id ID) Bytes() []byte {
	b := make([]byte, Size)
	binary.LittleEndian.PutUint32(b, uint32(id))
	return b
}

// String returns the fixed-width uppercase hexadecimal form.
func (id ID) String() string {
	return fmt.Sprintf("%08X", uint32(id))
}

func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ID) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}
