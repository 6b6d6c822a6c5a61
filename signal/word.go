package signal

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrUnresolvable is returned when a word that carries unknown bits is
// converted to bytes or to an integer.
var ErrUnresolvable = errors.New("word has unknown bits")

// A Word is a fixed-width 4-state bit vector. Each bit is 0, 1, or unknown.
// Words are immutable.
type Word struct {
	width   int
	value   []byte
	unknown []byte
}

func numBytes(width int) int {
	return (width + 7) / 8
}

func newWord(width int) Word {
	if width <= 0 {
		panic("word width must be positive")
	}

	return Word{
		width:   width,
		value:   make([]byte, numBytes(width)),
		unknown: make([]byte, numBytes(width)),
	}
}

// Zero returns a word with all the bits set to 0.
func Zero(width int) Word {
	return newWord(width)
}

// Unknown returns a word with all the bits unknown.
func Unknown(width int) Word {
	w := newWord(width)
	for i := 0; i < width; i++ {
		w.unknown[i/8] |= 1 << (i % 8)
	}

	return w
}

// Ones returns a word with all the bits set to 1.
func Ones(width int) Word {
	w := newWord(width)
	for i := 0; i < width; i++ {
		w.value[i/8] |= 1 << (i % 8)
	}

	return w
}

// FromUint64 creates a word from an unsigned integer. Bits of v above the
// width are dropped.
func FromUint64(width int, v uint64) Word {
	w := newWord(width)
	for i := 0; i < width && i < 64; i++ {
		if v&(1<<uint(i)) != 0 {
			w.value[i/8] |= 1 << (i % 8)
		}
	}

	return w
}

// FromBytes packs a sequence of byte symbols into a word. If highFirst is
// true, data[0] takes the most significant byte of the word and unused
// low-order bits are 0. Otherwise data[0] takes the least significant byte
// and unused high-order bits are 0.
func FromBytes(width int, data []byte, highFirst bool) Word {
	w := newWord(width)
	n := width / 8

	if len(data) > n {
		panic("too many bytes for the word width")
	}

	for i, b := range data {
		if highFirst {
			w.setByte(width-8*(i+1), b)
		} else {
			w.setByte(8*i, b)
		}
	}

	return w
}

// ParseBinary parses a string of '0', '1', 'x' and 'z' characters, most
// significant bit first. 'x' and 'z' are unknown bits. '_' separators are
// ignored.
func ParseBinary(s string) (Word, error) {
	s = strings.ReplaceAll(s, "_", "")
	if len(s) == 0 {
		return Word{}, errors.New("empty binary string")
	}

	w := newWord(len(s))
	for i, c := range s {
		bit := len(s) - 1 - i

		switch c {
		case '0':
		case '1':
			w.value[bit/8] |= 1 << (bit % 8)
		case 'x', 'X', 'z', 'Z':
			w.unknown[bit/8] |= 1 << (bit % 8)
		default:
			return Word{}, errors.Errorf("invalid bit %q in %q", c, s)
		}
	}

	return w, nil
}

func (w Word) setByte(lsb int, b byte) {
	for i := 0; i < 8; i++ {
		bit := lsb + i
		if b&(1<<uint(i)) != 0 {
			w.value[bit/8] |= 1 << (bit % 8)
		}
	}
}

// Width returns the number of bits in the word.
func (w Word) Width() int {
	return w.width
}

// BitKnown reports the value of the i-th bit and whether it is known.
func (w Word) BitKnown(i int) (bit bool, known bool) {
	if i < 0 || i >= w.width {
		panic("bit index out of range")
	}

	known = w.unknown[i/8]&(1<<(i%8)) == 0
	bit = w.value[i/8]&(1<<(i%8)) != 0

	return bit && known, known
}

// IsResolvable returns true if no bit is unknown.
func (w Word) IsResolvable() bool {
	for _, b := range w.unknown {
		if b != 0 {
			return false
		}
	}

	return true
}

// IsTrue returns true if the word is resolvable and not zero.
func (w Word) IsTrue() bool {
	if !w.IsResolvable() {
		return false
	}

	for _, b := range w.value {
		if b != 0 {
			return true
		}
	}

	return false
}

// Uint64 returns the integer value of the word. Bits above 64 must be 0.
func (w Word) Uint64() (uint64, error) {
	if !w.IsResolvable() {
		return 0, errors.Wrap(ErrUnresolvable, w.String())
	}

	var v uint64
	for i, b := range w.value {
		if i >= 8 {
			if b != 0 {
				return 0, errors.Errorf("word %s does not fit in 64 bits", w)
			}

			continue
		}

		v |= uint64(b) << (8 * uint(i))
	}

	return v, nil
}

// Bytes unpacks the word into byte symbols, the reverse of FromBytes. The
// width must be a multiple of 8.
func (w Word) Bytes(highFirst bool) ([]byte, error) {
	if !w.IsResolvable() {
		return nil, errors.Wrap(ErrUnresolvable, w.String())
	}

	if w.width%8 != 0 {
		return nil, errors.Errorf(
			"cannot split a %d-bit word into bytes", w.width)
	}

	n := w.width / 8
	out := make([]byte, n)

	for i := 0; i < n; i++ {
		if highFirst {
			out[i] = w.value[n-1-i]
		} else {
			out[i] = w.value[i]
		}
	}

	return out, nil
}

// Truncate drops n bits from the word. If lowOrder is true, the n least
// significant bits are dropped and the rest are shifted down. Otherwise the n
// most significant bits are dropped.
func (w Word) Truncate(n int, lowOrder bool) Word {
	if n < 0 || n >= w.width {
		panic("cannot truncate the whole word")
	}

	out := newWord(w.width - n)
	offset := 0

	if lowOrder {
		offset = n
	}

	for i := 0; i < out.width; i++ {
		src := i + offset
		if w.value[src/8]&(1<<(src%8)) != 0 {
			out.value[i/8] |= 1 << (i % 8)
		}

		if w.unknown[src/8]&(1<<(src%8)) != 0 {
			out.unknown[i/8] |= 1 << (i % 8)
		}
	}

	return out
}

// Equal returns true if the two words have the same width and the same bits,
// unknown bits included.
func (w Word) Equal(o Word) bool {
	if w.width != o.width {
		return false
	}

	for i := range w.value {
		if w.unknown[i] != o.unknown[i] {
			return false
		}

		if w.value[i]&^w.unknown[i] != o.value[i]&^o.unknown[i] {
			return false
		}
	}

	return true
}

// String returns the bits, most significant first, with 'x' for unknown bits.
func (w Word) String() string {
	var sb strings.Builder

	for i := w.width - 1; i >= 0; i-- {
		bit, known := w.BitKnown(i)

		switch {
		case !known:
			sb.WriteByte('x')
		case bit:
			sb.WriteByte('1')
		default:
			sb.WriteByte('0')
		}
	}

	return sb.String()
}
