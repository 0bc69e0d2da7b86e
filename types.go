package pdf

import (
	"fmt"
	"unicode/utf16"

	"golang.org/x/exp/maps"
	"golang.org/x/text/encoding/unicode"
)

// Object is implemented by every PDF value type the value-capture sink
// (see valuecapture.go) can reconstruct: [Bool], [Integer], [Real],
// [String], [Name], [Array], [Dict], [Reference], and [Null].
type Object interface {
	isObject()
}

// Bool is a PDF boolean value.
type Bool bool

func (Bool) isObject() {}

// Integer is a PDF integer value, with 64-bit signed capacity.
type Integer int64

func (Integer) isObject() {}

// Real is a PDF real (floating point) value.
type Real float64

func (Real) isObject() {}

// String holds the raw decoded bytes of a PDF literal or hex string.
// No text encoding is assumed; use [String.AsTextString] to interpret
// the bytes as a PDF text string.
type String []byte

func (String) isObject() {}

// AsTextString decodes s as a PDF text string: UTF-16BE with a leading
// byte-order mark, or PDFDocEncoding otherwise. This mirrors the
// behavior the teacher's AsTextString/TextString pair implements by
// hand, expressed here with the standard text-encoding library.
func (s String) AsTextString() (string, error) {
	if len(s) >= 2 && s[0] == 0xFE && s[1] == 0xFF {
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		out, err := dec.String(string(s))
		if err != nil {
			return "", err
		}
		return out, nil
	}
	runes := make([]rune, len(s))
	for i, b := range s {
		runes[i] = pdfDocEncoding[b]
	}
	return string(runes), nil
}

// pdfDocEncoding maps the low 128 code points identically to ASCII and
// leaves the upper half as Latin-1, which covers the common case; the
// full PDFDocEncoding glyph table is out of scope (no rendering, per
// the parser's non-goals).
var pdfDocEncoding = func() [256]rune {
	var table [256]rune
	for i := range table {
		table[i] = rune(i)
	}
	return table
}()

// encodeUTF16BE is used only by tests that need to construct text-string
// fixtures; it is not part of the public decode-only surface.
func encodeUTF16BE(s string) []byte {
	units := utf16.Encode([]rune(s))
	out := make([]byte, 2+2*len(units))
	out[0], out[1] = 0xFE, 0xFF
	for i, u := range units {
		out[2+2*i] = byte(u >> 8)
		out[2+2*i+1] = byte(u)
	}
	return out
}

// Name is a case-sensitive, non-null byte sequence naming a PDF
// construct (a dictionary key, a filter, an operator, …).
type Name string

func (Name) isObject() {}

// Null is the PDF null value.
type Null struct{}

func (Null) isObject() {}

// Array is an ordered sequence of values.
type Array []Object

func (Array) isObject() {}

// Dict is a mapping from Name to value. Per spec.md §9's open question
// on duplicate keys, the last-seen mapping for a key wins; Go's map
// assignment already gives this semantics.
type Dict map[Name]Object

func (Dict) isObject() {}

// ObjectId identifies an indirect object by (object number, generation).
// It is comparable and usable as a map key.
type ObjectId struct {
	Number     uint32
	Generation uint16
}

// String renders the textual form "N G R".
func (id ObjectId) String() string {
	return fmt.Sprintf("%d %d R", id.Number, id.Generation)
}

// Reference is the PDF "N G R" token: a reference to an indirect
// object, distinct from the object itself.
type Reference ObjectId

func (Reference) isObject() {}

// String renders the textual form "N G R".
func (r Reference) String() string { return ObjectId(r).String() }

// CrossReferenceEntryKind tags the three cases of [CrossReferenceEntry].
type CrossReferenceEntryKind int

const (
	// Free marks an object number as available for reuse.
	Free CrossReferenceEntryKind = iota
	// InUse marks an object as live at a byte offset.
	InUse
	// Compressed marks an object as living inside an object stream.
	Compressed
)

// CrossReferenceEntry is the tagged variant described in spec.md §3.
// Use [FreeEntry], [InUseEntry], or [CompressedEntry] to construct one;
// the accessors panic if called on the wrong kind, mirroring the
// type-checked accessors of the Java original this is grounded on.
type CrossReferenceEntry struct {
	kind CrossReferenceEntryKind

	// offset valid for InUse; generation valid for InUse and Free
	offset     int64
	generation uint16

	// valid for Free
	nextFree uint32

	// valid for Compressed
	container uint32
	index     int
}

// FreeEntry constructs a Free cross-reference entry.
func FreeEntry(nextFreeObject uint32, generation uint16) CrossReferenceEntry {
	return CrossReferenceEntry{kind: Free, nextFree: nextFreeObject, generation: generation}
}

// InUseEntry constructs an InUse cross-reference entry.
func InUseEntry(byteOffset int64, generation uint16) CrossReferenceEntry {
	return CrossReferenceEntry{kind: InUse, offset: byteOffset, generation: generation}
}

// CompressedEntry constructs a Compressed cross-reference entry.
// Its generation is forced to 0, per the PDF specification.
func CompressedEntry(containerObjectNumber uint32, indexWithinContainer int) CrossReferenceEntry {
	return CrossReferenceEntry{kind: Compressed, container: containerObjectNumber, index: indexWithinContainer}
}

// Kind reports which of Free, InUse, or Compressed this entry is.
func (e CrossReferenceEntry) Kind() CrossReferenceEntryKind { return e.kind }

// Offset returns the byte offset of an InUse entry. It panics if e is
// not InUse.
func (e CrossReferenceEntry) Offset() int64 {
	if e.kind != InUse {
		panic("pdf: Offset called on non-InUse cross-reference entry")
	}
	return e.offset
}

// Generation returns the generation of a Free or InUse entry. It
// panics if e is Compressed (whose generation is always 0).
func (e CrossReferenceEntry) Generation() uint16 {
	if e.kind == Compressed {
		panic("pdf: Generation called on Compressed cross-reference entry")
	}
	return e.generation
}

// NextFreeObject returns the next free object number of a Free entry.
// It panics if e is not Free.
func (e CrossReferenceEntry) NextFreeObject() uint32 {
	if e.kind != Free {
		panic("pdf: NextFreeObject called on non-Free cross-reference entry")
	}
	return e.nextFree
}

// ContainerObjectNumber returns the containing object-stream's object
// number of a Compressed entry. It panics if e is not Compressed.
func (e CrossReferenceEntry) ContainerObjectNumber() uint32 {
	if e.kind != Compressed {
		panic("pdf: ContainerObjectNumber called on non-Compressed cross-reference entry")
	}
	return e.container
}

// IndexWithinContainer returns the index within the object stream of a
// Compressed entry. It panics if e is not Compressed.
func (e CrossReferenceEntry) IndexWithinContainer() int {
	if e.kind != Compressed {
		panic("pdf: IndexWithinContainer called on non-Compressed cross-reference entry")
	}
	return e.index
}

// CrossReferenceTable maps ObjectId to CrossReferenceEntry.
type CrossReferenceTable struct {
	entries map[ObjectId]CrossReferenceEntry
	maxObj  uint32
}

// NewCrossReferenceTable returns an empty table.
func NewCrossReferenceTable() *CrossReferenceTable {
	return &CrossReferenceTable{entries: make(map[ObjectId]CrossReferenceEntry)}
}

// Get looks up the entry for id.
func (t *CrossReferenceTable) Get(id ObjectId) (CrossReferenceEntry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// MaxObjectNumber returns the highest object number seen.
func (t *CrossReferenceTable) MaxObjectNumber() uint32 { return t.maxObj }

// Len reports the number of entries in the table.
func (t *CrossReferenceTable) Len() int { return len(t.entries) }

// AddIfAbsent installs entry for id only if no entry exists yet, giving
// newest-wins merge semantics when sections are applied from newest to
// oldest across a /Prev chain (spec.md §4.5).
func (t *CrossReferenceTable) AddIfAbsent(id ObjectId, entry CrossReferenceEntry) {
	if _, exists := t.entries[id]; exists {
		return
	}
	t.entries[id] = entry
	if id.Number > t.maxObj {
		t.maxObj = id.Number
	}
}

// Keys returns every ObjectId currently present in the table, in no
// particular order.
func (t *CrossReferenceTable) Keys() []ObjectId {
	return maps.Keys(t.entries)
}
