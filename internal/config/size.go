package config

import (
	"fmt"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count that unmarshals from either a plain integer or a
// human-readable string such as "4KiB" or "16 MB".
type ByteSize int64

// ParseByteSize parses s with go-humanize. Plain digit strings are bytes.
func ParseByteSize(s string) (ByteSize, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("config: negative size %d", n)
		}
		return ByteSize(n), nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("config: size %q: %w", s, err)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("config: size %q overflows", s)
	}
	return ByteSize(n), nil
}

// Int returns the size as an int, saturating on platforms with 32-bit int.
func (b ByteSize) Int() int {
	if int64(b) > int64(math.MaxInt) {
		return math.MaxInt
	}
	return int(b)
}

// String renders the size in IEC units (for example "4.0 KiB").
func (b ByteSize) String() string {
	if b < 0 {
		return strconv.FormatInt(int64(b), 10)
	}
	return humanize.IBytes(uint64(b))
}

// UnmarshalYAML accepts integers and humanized strings.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("config: line %d: size must be a scalar", value.Line)
	}
	n, err := ParseByteSize(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*b = n
	return nil
}

// MarshalYAML writes the size in IEC units.
func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}

// Set implements pflag.Value so sizes can be given on the command line.
func (b *ByteSize) Set(s string) error {
	n, err := ParseByteSize(s)
	if err != nil {
		return err
	}
	*b = n
	return nil
}

// Type implements pflag.Value.
func (b *ByteSize) Type() string { return "size" }
