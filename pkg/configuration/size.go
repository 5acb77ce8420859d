package configuration

import (
	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a uint64 value that supports unmarshalling from both
// human-friendly string representations ("2 GB") and plain numeric byte
// counts. It can be cast to a uint64, where it represents a byte count.
type ByteSize uint64

// UnmarshalYAML implements yaml.Unmarshaler, accepting either a bare integer
// or a human-friendly size string.
func (s *ByteSize) UnmarshalYAML(node *yaml.Node) error {
	var asUint64 uint64
	if err := node.Decode(&asUint64); err == nil {
		*s = ByteSize(asUint64)
		return nil
	}

	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	value, err := humanize.ParseBytes(text)
	if err != nil {
		return err
	}
	*s = ByteSize(value)
	return nil
}

// String renders the size in human-friendly form, e.g. for log messages.
func (s ByteSize) String() string {
	return humanize.Bytes(uint64(s))
}
