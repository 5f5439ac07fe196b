package efilz

import "fmt"

// bitReader reads a byte slice as a most-significant-bit-first bit sequence.
type bitReader struct {
	src []byte
	pos int // bit offset of the next unread bit
}

func (br *bitReader) remaining() int {
	return len(br.src)*8 - br.pos
}

// peek returns the next n bits without consuming them. n must be <= 32.
func (br *bitReader) peek(n uint) (uint32, error) {
	if n == 0 {
		return 0, nil
	}
	if int(n) > br.remaining() {
		return 0, br.short(n)
	}

	off := br.pos >> 3
	shift := uint(br.pos & 7)
	nbytes := int((shift + n + 7) >> 3)

	var acc uint64
	for _, b := range br.src[off : off+nbytes] {
		acc = acc<<8 | uint64(b)
	}

	acc >>= uint(nbytes)*8 - shift - n
	return uint32(acc & (1<<n - 1)), nil
}

// pop returns the next n bits and advances past them.
func (br *bitReader) pop(n uint) (uint32, error) {
	v, err := br.peek(n)
	if err != nil {
		return 0, err
	}
	br.pos += int(n)
	return v, nil
}

// bit returns the bit off positions after the cursor without consuming it.
func (br *bitReader) bit(off uint) (uint32, error) {
	p := br.pos + int(off)
	if p >= len(br.src)*8 {
		return 0, br.short(off + 1)
	}
	return uint32(br.src[p>>3]>>(7-uint(p&7))) & 1, nil
}

func (br *bitReader) short(n uint) error {
	return fmt.Errorf("%w: need %d bits at bit offset %d, have %d", ErrMalformedSrcData, n, br.pos, br.remaining())
}
