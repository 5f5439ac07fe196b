package efilz

import (
	"encoding/binary"
	"math/bits"
	"sort"
)

// This file builds well-formed streams for the tests. It makes no attempt
// at good compression: code lengths are balanced (or deliberately skewed
// to reach the long-code paths), not derived from symbol frequencies.

// bitWriter appends bits most significant first.
type bitWriter struct {
	buf  []byte
	n    int // bits written
	need int // furthest bit the decoder will look at
}

func (w *bitWriter) write(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		if w.n&7 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 == 1 {
			w.buf[w.n>>3] |= 0x80 >> uint(w.n&7)
		}
		w.n++
	}
}

// lookahead records that the decoder peeks n bits at the current position.
func (w *bitWriter) lookahead(n int) {
	if w.n+n > w.need {
		w.need = w.n + n
	}
}

// bytes pads with zero bits up to the furthest peek and returns the buffer.
func (w *bitWriter) bytes() []byte {
	for w.n < w.need {
		w.write(0, 1)
	}
	return w.buf
}

const (
	minMatch = 3
	maxMatch = 256
)

// token is a literal when length is zero, a match otherwise.
type token struct {
	lit      byte
	length   int
	distance int
}

func (t token) code() int {
	if t.length == 0 {
		return int(t.lit)
	}
	return t.length + 256 - minMatch
}

// tokenize does a greedy longest-match search over the previous window
// bytes. Matches may overlap the bytes they produce.
func tokenize(data []byte, window int) []token {
	var toks []token

	for pos := 0; pos < len(data); {
		bestLen, bestDist := 0, 0

		for d := 0; d < window && d < pos; d++ {
			start := pos - d - 1
			l := 0
			for l < maxMatch && pos+l < len(data) && data[start+l] == data[pos+l] {
				l++
			}
			if l > bestLen {
				bestLen, bestDist = l, d
			}
		}

		if bestLen >= minMatch {
			toks = append(toks, token{length: bestLen, distance: bestDist})
			pos += bestLen
		} else {
			toks = append(toks, token{lit: data[pos]})
			pos++
		}
	}

	return toks
}

// balancedLengths gives a complete code over used: with k symbols and
// b = ceil(log2 k), the first 2^b-k symbols get b-1 bits and the rest b.
func balancedLengths(n int, used []int) []uint8 {
	lens := make([]uint8, n)
	k := len(used)
	b := bits.Len(uint(k - 1))
	short := 1<<b - k
	for i, sym := range used {
		if i < short {
			lens[sym] = uint8(b - 1)
		} else {
			lens[sym] = uint8(b)
		}
	}
	return lens
}

// chainLengths gives lengths 1, 2, ..., k-1, k-1, which reaches 16 bits
// with 17 symbols. It falls back to balancedLengths for larger sets.
func chainLengths(n int, used []int) []uint8 {
	if len(used) > maxCodeLen+1 {
		return balancedLengths(n, used)
	}
	lens := make([]uint8, n)
	for i, sym := range used {
		lens[sym] = uint8(min(i+1, len(used)-1))
	}
	return lens
}

// canonicalCodes assigns codes by length, then by symbol.
func canonicalCodes(lens []uint8) []uint32 {
	var count [maxCodeLen + 1]uint32
	for _, l := range lens {
		if l != 0 {
			count[l]++
		}
	}

	var next [maxCodeLen + 1]uint32
	code := uint32(0)
	for l := 1; l <= maxCodeLen; l++ {
		code = (code + count[l-1]) << 1
		next[l] = code
	}

	codes := make([]uint32, len(lens))
	for sym, l := range lens {
		if l != 0 {
			codes[sym] = next[l]
			next[l]++
		}
	}
	return codes
}

// codeSet is the encoder side of one alphabet. A set with fewer than two
// used symbols is sent as a single implicit symbol.
type codeSet struct {
	lens       []uint8
	codes      []uint32
	single     int
	degenerate bool
}

func newCodeSet(n int, used []int, assign func(int, []int) []uint8) codeSet {
	if len(used) < 2 {
		cs := codeSet{lens: make([]uint8, n), degenerate: true}
		if len(used) == 1 {
			cs.single = used[0]
		}
		return cs
	}
	lens := assign(n, used)
	return codeSet{lens: lens, codes: canonicalCodes(lens)}
}

func (cs codeSet) emit(w *bitWriter, sym int, tableBits int) {
	w.lookahead(tableBits)
	if cs.degenerate {
		return
	}
	w.write(cs.codes[sym], int(cs.lens[sym]))
}

func trimmed(lens []uint8) int {
	n := len(lens)
	for n > 0 && lens[n-1] == 0 {
		n--
	}
	return n
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// lenToken is one Extra Set symbol of a Char&Length length array plus
// its raw suffix.
type lenToken struct {
	sym   int
	extra uint32
	nbits int
}

func cLenTokens(lens []uint8) []lenToken {
	var toks []lenToken
	n := trimmed(lens)

	for i := 0; i < n; {
		if lens[i] != 0 {
			toks = append(toks, lenToken{sym: int(lens[i]) + 2})
			i++
			continue
		}

		run := 0
		for i+run < n && lens[i+run] == 0 {
			run++
		}

		switch {
		case run <= 2:
			for j := 0; j < run; j++ {
				toks = append(toks, lenToken{sym: 0})
			}
		case run <= 18:
			toks = append(toks, lenToken{sym: 1, extra: uint32(run - 3), nbits: 4})
		case run == 19:
			toks = append(toks, lenToken{sym: 0}, lenToken{sym: 1, extra: 15, nbits: 4})
		default:
			toks = append(toks, lenToken{sym: 2, extra: uint32(run - 20), nbits: charBits})
		}
		i += run
	}

	return toks
}

type buildOptions struct {
	variant   Variant
	window    int  // match search window, 0 for literals only
	blockSize int  // coded symbols per block, 0 for one block
	chainC    bool // skew Char&Length lengths up to 16 bits
	chainP    bool // skew Position Set lengths, exercising the 7+ length escape
}

type streamBuilder struct {
	w    bitWriter
	opts buildOptions
}

func (b *streamBuilder) writePTLens(cs codeSet, countBits int, extra bool) {
	if cs.degenerate {
		b.w.write(0, countBits)
		b.w.write(uint32(cs.single), countBits)
		return
	}

	n := trimmed(cs.lens)
	b.w.write(uint32(n), countBits)

	for i := 0; i < n; {
		l := cs.lens[i]
		if l < 7 {
			b.w.write(uint32(l), 3)
		} else {
			b.w.write(7, 3)
			for j := uint8(7); j < l; j++ {
				b.w.write(1, 1)
			}
			b.w.write(0, 1)
		}
		i++

		if extra && i == 3 {
			z := 0
			for z < 3 && i+z < n && cs.lens[i+z] == 0 {
				z++
			}
			b.w.write(uint32(z), 2)
			i += z
		}
	}
}

func (b *streamBuilder) block(toks []token) {
	b.w.write(uint32(len(toks)), 16)

	cUsed := map[int]bool{}
	pUsed := map[int]bool{}
	for _, t := range toks {
		cUsed[t.code()] = true
		if t.length > 0 {
			pUsed[bits.Len(uint(t.distance))] = true
		}
	}

	assignC, assignP := balancedLengths, balancedLengths
	if b.opts.chainC {
		assignC = chainLengths
	}
	if b.opts.chainP {
		assignP = chainLengths
	}

	cSet := newCodeSet(numChars, sortedKeys(cUsed), assignC)
	pSet := newCodeSet(numPositions, sortedKeys(pUsed), assignP)

	var lenToks []lenToken
	if !cSet.degenerate {
		lenToks = cLenTokens(cSet.lens)
	}
	tUsed := map[int]bool{}
	for _, lt := range lenToks {
		tUsed[lt.sym] = true
	}
	tSet := newCodeSet(numExtra, sortedKeys(tUsed), balancedLengths)

	pbits, err := b.opts.variant.positionCountBits()
	if err != nil {
		panic(err)
	}

	b.writePTLens(tSet, extraBits, true)

	if cSet.degenerate {
		b.w.write(0, charBits)
		b.w.write(uint32(cSet.single), charBits)
	} else {
		b.w.write(uint32(trimmed(cSet.lens)), charBits)
		for _, lt := range lenToks {
			tSet.emit(&b.w, lt.sym, ptTableBits)
			b.w.write(lt.extra, lt.nbits)
		}
	}

	b.writePTLens(pSet, int(pbits), false)

	for _, t := range toks {
		cSet.emit(&b.w, t.code(), cTableBits)
		if t.length == 0 {
			continue
		}
		v := bits.Len(uint(t.distance))
		pSet.emit(&b.w, v, ptTableBits)
		if v > 1 {
			b.w.write(uint32(t.distance-1<<(v-1)), v-1)
		}
	}
}

// buildStream encodes data as a complete stream, header included.
func buildStream(data []byte, opts buildOptions) []byte {
	return buildTokens(tokenize(data, opts.window), len(data), opts)
}

func buildTokens(toks []token, origLen int, opts buildOptions) []byte {
	b := &streamBuilder{opts: opts}

	size := opts.blockSize
	if size <= 0 {
		size = 1<<16 - 1
	}
	for len(toks) > 0 {
		n := min(size, len(toks))
		b.block(toks[:n])
		toks = toks[n:]
	}

	payload := b.w.bytes()
	out := make([]byte, HeaderSize, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:], uint32(len(payload)))
	binary.LittleEndian.PutUint32(out[4:], uint32(origLen))
	return append(out, payload...)
}
