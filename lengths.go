package efilz

import "fmt"

// Alphabet sizes and table geometry.
const (
	numChars     = 510 // Char&Length Set: 256 literals + 254 match lengths
	charBits     = 9   // width of the Char&Length count field
	cTableBits   = 12
	numExtra     = 19 // Extra Set
	extraBits    = 5  // width of the Extra Set count field
	numPositions = 31 // Position Set slots, large enough for both variants
	ptTableBits  = 8

	numPT = numPositions // ptLen serves both the Extra and the Position Set
)

var (
	errTooManyLengths = fmt.Errorf("%w: code length array overflows its alphabet", ErrMalformedSrcData)
	errZeroRun        = fmt.Errorf("%w: zero run overflows char&length alphabet", ErrMalformedSrcData)
)

// readPTLen reads the code lengths of the Extra Set or the Position Set
// into s.ptLen and builds s.ptTable from them.
//
// A count field of countBits bits gives the number of lengths. A length
// below 7 is a 3-bit value; 7 or more is 111b followed by one 1 bit per
// unit above 7 and a terminating 0. With extra set, a 2-bit run of zero
// lengths follows the third length.
//
// A zero count means the set has a single implicit symbol, read with the
// same width as the count.
func (s *session) readPTLen(numSymbols int, countBits uint, extra bool) error {
	count, err := s.br.pop(countBits)
	if err != nil {
		return err
	}

	if count == 0 {
		sym, err := s.br.pop(countBits)
		if err != nil {
			return err
		}
		clear(s.ptLen[:numSymbols])
		fillTable(s.ptTable[:], uint16(sym))
		return nil
	}

	i := 0
	for i < int(count) && i < numPT {
		l, err := s.br.pop(3)
		if err != nil {
			return err
		}
		if l == 7 {
			for {
				b, err := s.br.pop(1)
				if err != nil {
					return err
				}
				if b == 0 {
					break
				}
				l++
				if l > maxCodeLen {
					return errCodeLength
				}
			}
		}
		s.ptLen[i] = uint8(l)
		i++

		if extra && i == 3 {
			zeros, err := s.br.pop(2)
			if err != nil {
				return err
			}
			for ; zeros > 0; zeros-- {
				s.ptLen[i] = 0
				i++
			}
		}
	}

	if i > numSymbols {
		return errTooManyLengths
	}
	clear(s.ptLen[i:numSymbols])

	return buildTable(numSymbols, s.ptLen[:], ptTableBits, s.ptTable[:], s.left[:], s.right[:])
}

// readCLen reads the Char&Length Set code lengths into s.cLen and builds
// s.cTable. Each length is coded as an Extra Set symbol, so s.ptTable must
// hold the Extra Set table:
//
//	0        one zero length
//	1        4 more bits, 3..18 zero lengths
//	2        9 more bits, 20..531 zero lengths
//	v >= 3   one length of v-2
func (s *session) readCLen() error {
	count, err := s.br.pop(charBits)
	if err != nil {
		return err
	}

	if count == 0 {
		sym, err := s.br.pop(charBits)
		if err != nil {
			return err
		}
		clear(s.cLen[:])
		fillTable(s.cTable[:], uint16(sym))
		return nil
	}

	i := 0
	for i < int(count) {
		sym, err := s.decodeSymbol(s.ptTable[:], ptTableBits, numExtra, s.ptLen[:])
		if err != nil {
			return err
		}

		if sym > 2 {
			if i >= numChars {
				return errTooManyLengths
			}
			s.cLen[i] = uint8(sym - 2)
			i++
			continue
		}

		run := uint32(1)
		switch sym {
		case 1:
			if run, err = s.br.pop(4); err != nil {
				return err
			}
			run += 3
		case 2:
			if run, err = s.br.pop(charBits); err != nil {
				return err
			}
			run += 20
		}

		if i+int(run) > numChars {
			return errZeroRun
		}
		clear(s.cLen[i : i+int(run)])
		i += int(run)
	}
	clear(s.cLen[i:])

	return buildTable(numChars, s.cLen[:], cTableBits, s.cTable[:], s.left[:], s.right[:])
}
