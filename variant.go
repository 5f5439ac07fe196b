package efilz

import (
	"fmt"
	"strings"
)

// Variant selects the flavour of the format.
type Variant int

// Variant constants.
const (
	Classic Variant = iota // EFI/UEFI decompression, 4-bit Position Set count.
	Tiano                  // Tiano decompression, 5-bit Position Set count.
)

// positionCountBits is the width of the Position Set length-array count field.
func (v Variant) positionCountBits() (uint, error) {
	switch v {
	case Classic:
		return 4, nil
	case Tiano:
		return 5, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownVariant, int(v))
}

func (v Variant) String() string {
	switch v {
	case Classic:
		return "uefi"
	case Tiano:
		return "tiano"
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// ParseVariant maps a name to a Variant. Accepted names are "uefi", "efi"
// and "classic" for Classic, and "tiano" for Tiano; case is ignored.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uefi", "efi", "classic":
		return Classic, nil
	case "tiano":
		return Tiano, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownVariant, s)
}
