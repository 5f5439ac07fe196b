package efilz

import (
	"encoding/binary"
	"fmt"
	"math"
)

// HeaderSize is the size of the fixed stream header.
const HeaderSize = 8

// Header is the fixed prefix of a compressed stream.
type Header struct {
	CompressedSize uint32 // size of the compressed payload
	OriginalSize   uint32 // size of the decompressed data
}

// ReadHeader parses and checks the header of src.
func ReadHeader(src []byte) (Header, error) {
	if len(src) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidSrcSize, len(src))
	}

	h := Header{
		CompressedSize: binary.LittleEndian.Uint32(src[0:4]),
		OriginalSize:   binary.LittleEndian.Uint32(src[4:8]),
	}
	if uint64(h.CompressedSize) > uint64(len(src)) {
		return Header{}, fmt.Errorf("%w: compressed size %d exceeds input size %d", ErrInvalidSrcSize, h.CompressedSize, len(src))
	}

	return h, nil
}

// DecompressInto decompresses src into dst, which must be exactly as long
// as the original size recorded in the header. A zero original size
// succeeds without reading the payload. On error the contents of dst are
// unspecified.
func DecompressInto(src, dst []byte, v Variant) error {
	pbits, err := v.positionCountBits()
	if err != nil {
		return err
	}

	h, err := ReadHeader(src)
	if err != nil {
		return err
	}
	if h.OriginalSize == 0 {
		return nil
	}
	if uint64(h.OriginalSize) != uint64(len(dst)) {
		return fmt.Errorf("%w: header says %d bytes, destination has %d", ErrInvalidDstSize, h.OriginalSize, len(dst))
	}

	var s session
	s.br = bitReader{src: src[HeaderSize:]}
	s.pbits = pbits

	pos := 0
	for pos < len(dst) {
		sym, err := s.next()
		if err != nil {
			return err
		}

		if sym.kind == literalSymbol {
			dst[pos] = sym.literal
			pos++
			continue
		}

		start := pos - sym.distance - 1
		if start < 0 {
			return fmt.Errorf("%w: match distance %d reaches before output start at %d", ErrMalformedSrcData, sym.distance, pos)
		}

		// Byte at a time: the match may overlap the bytes it produces.
		for i := 0; i < sym.length && pos < len(dst); i++ {
			dst[pos] = dst[start+i]
			pos++
		}
	}

	return nil
}

// Decompress appends the decompressed form of src to dst and returns the
// extended slice, reusing dst's spare capacity when it is large enough.
//
// The output is allocated at the size the header claims before any of the
// payload is read. Callers handling untrusted input should check
// ReadHeader against their own limit first.
func Decompress(src, dst []byte, v Variant) ([]byte, error) {
	if _, err := v.positionCountBits(); err != nil {
		return nil, err
	}

	h, err := ReadHeader(src)
	if err != nil {
		return nil, err
	}

	if !outputFits(h.OriginalSize, len(dst)) {
		return nil, fmt.Errorf("%w: original size %d does not fit in memory", ErrInvalidDstSize, h.OriginalSize)
	}

	n := len(dst)
	dst = grow(dst, int(h.OriginalSize))
	if err := DecompressInto(src, dst[n:], v); err != nil {
		return nil, err
	}

	return dst, nil
}

// outputFits reports whether n more bytes can follow used bytes in a slice.
func outputFits(n uint32, used int) bool {
	return uint64(n) <= uint64(math.MaxInt-used)
}

func grow(b []byte, n int) []byte {
	if cap(b)-len(b) >= n {
		return b[:len(b)+n]
	}
	nb := make([]byte, len(b)+n)
	copy(nb, b)
	return nb
}

type symbolKind uint8

const (
	literalSymbol symbolKind = iota
	backReference
)

// codeSymbol is one decoded instruction: a literal byte, or a match of
// length bytes starting distance+1 bytes behind the output position.
type codeSymbol struct {
	kind     symbolKind
	literal  byte
	distance int
	length   int
}

// session holds the state of one decode. Tables are rebuilt for every
// block; left and right are shared by all three sets.
type session struct {
	br        bitReader
	pbits     uint // width of the Position Set count field
	remaining int  // coded symbols left in the current block

	left  [2*numChars - 1]uint16
	right [2*numChars - 1]uint16

	cLen    [numChars]uint8
	ptLen   [numPT]uint8
	cTable  [1 << cTableBits]uint16
	ptTable [1 << ptTableBits]uint16
}

// readBlockHeader reads the symbol count and the three code tables that
// start a block. The Extra Set table in s.ptTable is consumed by readCLen
// before the Position Set replaces it.
func (s *session) readBlockHeader() error {
	n, err := s.br.pop(16)
	if err != nil {
		return err
	}
	s.remaining = int(n)

	if err := s.readPTLen(numExtra, extraBits, true); err != nil {
		return err
	}
	if err := s.readCLen(); err != nil {
		return err
	}
	return s.readPTLen(numPositions, s.pbits, false)
}

// next decodes the next symbol, starting a new block when the current one
// is exhausted.
func (s *session) next() (codeSymbol, error) {
	if s.remaining == 0 {
		if err := s.readBlockHeader(); err != nil {
			return codeSymbol{}, err
		}
	}
	// A zero count never reaches zero again: the tables serve the rest of the output.
	s.remaining--

	c, err := s.decodeSymbol(s.cTable[:], cTableBits, numChars, s.cLen[:])
	if err != nil {
		return codeSymbol{}, err
	}

	if c < 256 {
		return codeSymbol{kind: literalSymbol, literal: byte(c)}, nil
	}

	d, err := s.decodePosition()
	if err != nil {
		return codeSymbol{}, err
	}

	return codeSymbol{kind: backReference, distance: d, length: c - (256 - 3)}, nil
}

// decodePosition reads a match distance: a Position Set symbol v giving the
// bit length of the distance, then v-1 raw bits below the implicit leading
// one. Distances 0 and 1 have no extra bits.
func (s *session) decodePosition() (int, error) {
	v, err := s.decodeSymbol(s.ptTable[:], ptTableBits, numPositions, s.ptLen[:])
	if err != nil {
		return 0, err
	}
	if v <= 1 {
		return v, nil
	}

	bits, err := s.br.pop(uint(v - 1))
	if err != nil {
		return 0, err
	}
	return 1<<(v-1) + int(bits), nil
}
