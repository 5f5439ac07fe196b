package efilz

import "fmt"

const maxCodeLen = 16

var (
	errCodeLength   = fmt.Errorf("%w: code length exceeds %d bits", ErrMalformedSrcData, maxCodeLen)
	errCodeSpace    = fmt.Errorf("%w: code lengths do not form a complete prefix code", ErrMalformedSrcData)
	errArenaFull    = fmt.Errorf("%w: huffman tree node arena exhausted", ErrMalformedSrcData)
	errCodeTooLong  = fmt.Errorf("%w: huffman code longer than %d bits", ErrMalformedSrcData, maxCodeLen)
	errTableOverrun = fmt.Errorf("%w: huffman lookup table overrun", ErrMalformedSrcData)
)

// buildTable builds a canonical Huffman decode table from per-symbol code
// lengths. See https://en.wikipedia.org/wiki/Canonical_Huffman_code.
//
// Codes of at most tableBits bits fill every table slot they prefix. A
// longer code stores a node id in the slot addressed by its first
// tableBits bits; the remaining bits walk the left/right arena, where ids
// below numSymbols are leaves and nodes are allocated from numSymbols up.
//
// Tables for different alphabets share one arena, but each build only
// touches nodes it allocates, and a table is always rebuilt before use.
func buildTable(numSymbols int, lengths []uint8, tableBits uint, table, left, right []uint16) error {
	var count [maxCodeLen + 1]int
	for _, l := range lengths[:numSymbols] {
		if l > maxCodeLen {
			return errCodeLength
		}
		count[l]++
	}

	// Left-aligned 16-bit first code of each length.
	var start [maxCodeLen + 2]int
	for l := 1; l <= maxCodeLen; l++ {
		start[l+1] = start[l] + count[l]<<(maxCodeLen-l)
	}
	if start[maxCodeLen+1] != 1<<maxCodeLen {
		return errCodeSpace
	}

	ext := maxCodeLen - tableBits

	var weight [maxCodeLen + 1]int
	for l := uint(1); l <= tableBits; l++ {
		start[l] >>= ext
		weight[l] = 1 << (tableBits - l)
	}
	for l := tableBits + 1; l <= maxCodeLen; l++ {
		weight[l] = 1 << (maxCodeLen - l)
	}

	size := 1 << tableBits

	// Slots past the short codes are tree roots; clear them so stale ids
	// from an earlier block are not mistaken for allocated nodes.
	if i := start[tableBits+1] >> ext; i < size {
		clear(table[i:size])
	}

	avail := numSymbols
	mask := 1 << (maxCodeLen - 1 - tableBits)

	for sym, l := range lengths[:numSymbols] {
		if l == 0 {
			continue
		}

		next := start[l] + weight[l]

		if uint(l) <= tableBits {
			if next > size {
				return errTableOverrun
			}
			for i := start[l]; i < next; i++ {
				table[i] = uint16(sym)
			}
		} else {
			code := start[l]
			p := &table[code>>ext]

			for i := uint(l) - tableBits; i > 0; i-- {
				if *p == 0 {
					if avail >= len(left) {
						return errArenaFull
					}
					*p = uint16(avail)
					left[avail] = 0
					right[avail] = 0
					avail++
				}

				node := int(*p)
				if code&mask != 0 {
					p = &right[node]
				} else {
					p = &left[node]
				}
				code <<= 1
			}

			*p = uint16(sym)
		}

		start[l] = next
	}

	return nil
}

// fillTable makes every lookup resolve to sym; used when a set carries a
// single implicit symbol and no code lengths.
func fillTable(table []uint16, sym uint16) {
	for i := range table {
		table[i] = sym
	}
}

// decodeSymbol reads one symbol of a numSymbols-sized alphabet and consumes
// exactly its code length.
func (s *session) decodeSymbol(table []uint16, tableBits uint, numSymbols int, lengths []uint8) (int, error) {
	idx, err := s.br.peek(tableBits)
	if err != nil {
		return 0, err
	}

	sym := int(table[idx])
	for off := tableBits; sym >= numSymbols; off++ {
		if off >= maxCodeLen {
			return 0, errCodeTooLong
		}
		b, err := s.br.bit(off)
		if err != nil {
			return 0, err
		}
		if b == 1 {
			sym = int(s.right[sym])
		} else {
			sym = int(s.left[sym])
		}
	}

	if _, err := s.br.pop(uint(lengths[sym])); err != nil {
		return 0, err
	}
	return sym, nil
}
