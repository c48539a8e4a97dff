package grammar

import (
	"math/bits"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Whitespace is the set of characters JSON treats as insignificant
// whitespace.
const Whitespace = " \t\n\r"

// Charset is a set of runes. The zero value is the empty set.
//
// ASCII membership is a bitmap; other runes are either listed explicitly
// or covered by the printable flag, which admits every valid non-control
// rune at or above utf8.RuneSelf. Charsets are values: operations return new sets and
// never modify their operands.
type Charset struct {
	ascii     [2]uint64
	extra     map[rune]struct{}
	printable bool
}

// NewCharset returns the set of runes in s.
func NewCharset(s string) Charset {
	var c Charset
	for _, r := range s {
		c.add(r)
	}
	return c
}

// Printable returns the set of printable ASCII runes, optionally extended
// with every non-ASCII rune that is not a control character.
func Printable(unicode bool) Charset {
	var c Charset
	for r := rune(0x20); r < 0x7f; r++ {
		c.add(r)
	}
	c.printable = unicode
	return c
}

func (c *Charset) add(r rune) {
	if r < utf8.RuneSelf {
		c.ascii[r/64] |= 1 << (r % 64)
		return
	}
	if c.printable && wide(r) {
		return
	}
	if c.extra == nil {
		c.extra = make(map[rune]struct{})
	}
	c.extra[r] = struct{}{}
}

// wide reports whether the printable flag covers r, which must be at or
// above utf8.RuneSelf. Format and space separator runes such as U+00A0 and
// U+200B are legal in JSON strings, so only control characters are left out.
func wide(r rune) bool {
	return utf8.ValidRune(r) && !unicode.IsControl(r)
}

// Contains reports whether r is in the set.
func (c Charset) Contains(r rune) bool {
	if r < 0 {
		return false
	}
	if r < utf8.RuneSelf {
		return c.ascii[r/64]&(1<<(r%64)) != 0
	}
	if c.printable && wide(r) {
		return true
	}
	_, ok := c.extra[r]
	return ok
}

// Union returns the set of runes in either c or o.
func (c Charset) Union(o Charset) Charset {
	u := Charset{
		ascii:     [2]uint64{c.ascii[0] | o.ascii[0], c.ascii[1] | o.ascii[1]},
		printable: c.printable || o.printable,
	}
	if len(c.extra) == 0 && !o.printable {
		u.extra = o.extra
		return u
	}
	if len(o.extra) == 0 && !c.printable {
		u.extra = c.extra
		return u
	}
	for _, extra := range []map[rune]struct{}{c.extra, o.extra} {
		for r := range extra {
			u.add(r)
		}
	}
	return u
}

// Without returns c minus the runes in s. Only ASCII runes are removed
// from the printable range.
func (c Charset) Without(s string) Charset {
	w := Charset{ascii: c.ascii, printable: c.printable}
	var drop map[rune]struct{}
	for _, r := range s {
		if r < utf8.RuneSelf {
			w.ascii[r/64] &^= 1 << (r % 64)
			continue
		}
		if drop == nil {
			drop = make(map[rune]struct{})
		}
		drop[r] = struct{}{}
	}
	for r := range c.extra {
		if _, ok := drop[r]; !ok {
			w.add(r)
		}
	}
	return w
}

// IsEmpty reports whether the set has no members.
func (c Charset) IsEmpty() bool {
	return c.ascii[0] == 0 && c.ascii[1] == 0 && len(c.extra) == 0 && !c.printable
}

// Len returns the number of explicitly listed runes. Runes admitted by the
// printable flag are not counted.
func (c Charset) Len() int {
	return bits.OnesCount64(c.ascii[0]) + bits.OnesCount64(c.ascii[1]) + len(c.extra)
}

// Runes returns the explicitly listed runes in ascending order.
func (c Charset) Runes() []rune {
	rs := make([]rune, 0, c.Len())
	for r := rune(0); r < utf8.RuneSelf; r++ {
		if c.Contains(r) {
			rs = append(rs, r)
		}
	}
	for r := range c.extra {
		rs = append(rs, r)
	}
	slices.Sort(rs[bits.OnesCount64(c.ascii[0])+bits.OnesCount64(c.ascii[1]):])
	return rs
}

// Equal reports whether c and o have the same members.
func (c Charset) Equal(o Charset) bool {
	return c.printable == o.printable && slices.Equal(c.Runes(), o.Runes())
}

func (c Charset) String() string {
	var sb strings.Builder
	sb.WriteString(string(c.Runes()))
	if c.printable {
		sb.WriteString("…")
	}
	return sb.String()
}
