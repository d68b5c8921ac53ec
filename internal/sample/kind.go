// Package sample defines the numeric formats handled by the batch decoder
// and the saturating conversions between them.
package sample

import "fmt"

// Kind identifies a numeric sample format.
type Kind uint8

const (
	// U8 is raw unsigned byte data, the only accepted input format.
	U8 Kind = iota
	// Int16 is signed 16-bit PCM.
	Int16
	// Int32 is signed 32-bit PCM.
	Int32
	// Float32 is 32-bit floating point PCM normalized to [-1, 1].
	Float32
)

// Size returns the width of one sample in bytes, or 0 for an unknown kind.
func (k Kind) Size() int {
	switch k {
	case U8:
		return 1
	case Int16:
		return 2
	case Int32, Float32:
		return 4
	default:
		return 0
	}
}

func (k Kind) String() string {
	switch k {
	case U8:
		return "uint8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Float32:
		return "float32"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps a configuration string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "uint8", "u8":
		return U8, nil
	case "int16", "s16":
		return Int16, nil
	case "int32", "s32":
		return Int32, nil
	case "float32", "float", "f32":
		return Float32, nil
	default:
		return 0, fmt.Errorf("unknown sample kind %q", s)
	}
}
