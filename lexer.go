package pdf

import (
	"strconv"
)

// isSpace and isDelimiter classify the bytes spec.md §4.2 names as
// whitespace and delimiters, grounded on the teacher's scanner.go byte
// tables.
var isSpace = [256]bool{0: true, 9: true, 10: true, 12: true, 13: true, 32: true}

var isDelimiter = func() [256]bool {
	var t [256]bool
	for _, b := range []byte("()<>[]{}/%") {
		t[b] = true
	}
	return t
}()

func isRegular(b int) bool {
	return b >= 0 && !isSpace[b] && !isDelimiter[b]
}

// LengthResolver resolves an indirect reference to an integer value,
// used by the Lexer to look up a stream's /Length when it is given as
// a reference rather than a literal (spec.md §4.2). Implemented by the
// Parser, which can consult both InUse and Compressed xref entries.
type LengthResolver interface {
	ResolveInteger(id ObjectId) (int64, error)
}

// Lexer is a recursive-descent parser over a ByteSource that emits
// events to an explicitly supplied sink at every call, rather than
// switching a shared "active sink" field by reassignment (spec.md §9's
// re-architecture guidance). It never retains parsed values itself;
// composite reconstruction, when needed, is the caller's job via the
// value-capture sink.
type Lexer struct {
	src ByteSource
}

// NewLexer returns a Lexer reading from src.
func NewLexer(src ByteSource) *Lexer {
	return &Lexer{src: src}
}

func (lx *Lexer) offset() int64 { return lx.src.Position() }

func (lx *Lexer) skipWhiteSpace() error {
	for {
		b, err := lx.src.Peek()
		if err != nil {
			return err
		}
		if b == '%' {
			for {
				b, err := lx.src.ReadByte()
				if err != nil {
					return err
				}
				if b == -1 || b == 10 || b == 13 {
					break
				}
			}
			continue
		}
		if b == -1 || !isSpace[b] {
			return nil
		}
		if _, err := lx.src.ReadByte(); err != nil {
			return err
		}
	}
}

// expectKeyword consumes exactly the given ASCII keyword, or fails
// Malformed at the offset where the mismatch was found.
func (lx *Lexer) expectKeyword(kw string) error {
	start := lx.offset()
	for i := 0; i < len(kw); i++ {
		b, err := lx.src.ReadByte()
		if err != nil {
			return err
		}
		if b != int(kw[i]) {
			return Malformed(start, "expected keyword "+kw)
		}
	}
	return nil
}

// peekKeyword reports whether the next len(kw) bytes equal kw, without
// consuming them.
func (lx *Lexer) peekKeyword(kw string) (bool, error) {
	for i := 0; i < len(kw); i++ {
		b, err := lx.src.PeekAt(i)
		if err != nil {
			return false, err
		}
		if b != int(kw[i]) {
			return false, nil
		}
	}
	return true, nil
}

// ReadValue parses exactly one PDF value (atomic or composite,
// including object references) at the current position and emits its
// events to sink.
func (lx *Lexer) ReadValue(sink DocumentSink) error {
	if err := lx.skipWhiteSpace(); err != nil {
		return err
	}
	b, err := lx.src.Peek()
	if err != nil {
		return err
	}
	start := lx.offset()
	switch {
	case b == -1:
		return Truncated(start)
	case b == '/':
		name, err := lx.readName()
		if err != nil {
			return err
		}
		sink.NameValue(name)
		return nil
	case b == '(':
		s, err := lx.readLiteralString()
		if err != nil {
			return err
		}
		sink.StringValue(s)
		return nil
	case b == '<':
		next, err := lx.src.PeekAt(1)
		if err != nil {
			return err
		}
		if next == '<' {
			return lx.readDict(sink)
		}
		s, err := lx.readHexString()
		if err != nil {
			return err
		}
		sink.StringValue(s)
		return nil
	case b == '[':
		return lx.readArray(sink)
	case b == '+' || b == '-' || b == '.' || (b >= '0' && b <= '9'):
		return lx.readNumberOrReference(sink)
	default:
		if ok, _ := lx.peekKeyword("true"); ok {
			if err := lx.expectKeyword("true"); err != nil {
				return err
			}
			sink.BooleanValue(true)
			return nil
		}
		if ok, _ := lx.peekKeyword("false"); ok {
			if err := lx.expectKeyword("false"); err != nil {
				return err
			}
			sink.BooleanValue(false)
			return nil
		}
		if ok, _ := lx.peekKeyword("null"); ok {
			if err := lx.expectKeyword("null"); err != nil {
				return err
			}
			sink.NullValue()
			return nil
		}
		return Malformed(start, "unexpected byte while reading value")
	}
}

// readName parses a /Name token, applying #hh escapes (spec.md §4.2).
// The leading solidus is consumed but not part of the name.
func (lx *Lexer) readName() (Name, error) {
	start := lx.offset()
	b, err := lx.src.ReadByte()
	if err != nil {
		return "", err
	}
	if b != '/' {
		return "", Malformed(start, "expected name to start with /")
	}
	var buf []byte
	for {
		b, err := lx.src.Peek()
		if err != nil {
			return "", err
		}
		if !isRegular(b) {
			break
		}
		lx.src.ReadByte()
		if b == '#' {
			h1, err := lx.src.PeekAt(0)
			h2, err2 := lx.src.PeekAt(1)
			if err != nil {
				return "", err
			}
			if err2 != nil {
				return "", err2
			}
			if isHexDigit(h1) && isHexDigit(h2) {
				lx.src.ReadByte()
				lx.src.ReadByte()
				buf = append(buf, byte(hexVal(h1)<<4|hexVal(h2)))
				continue
			}
		}
		buf = append(buf, byte(b))
	}
	return Name(buf), nil
}

func isHexDigit(b int) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexVal(b int) int {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	default:
		return b - 'A' + 10
	}
}

// readLiteralString parses a "( … )" string with balanced parentheses
// and the escapes listed in spec.md §4.2.
func (lx *Lexer) readLiteralString() (String, error) {
	start := lx.offset()
	if b, _ := lx.src.ReadByte(); b != '(' {
		return nil, Malformed(start, "expected (")
	}
	var buf []byte
	depth := 1
	for {
		b, err := lx.src.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == -1 {
			return nil, Truncated(lx.offset())
		}
		switch b {
		case '(':
			depth++
			buf = append(buf, '(')
		case ')':
			depth--
			if depth == 0 {
				return String(buf), nil
			}
			buf = append(buf, ')')
		case '\\':
			e, err := lx.src.ReadByte()
			if err != nil {
				return nil, err
			}
			switch e {
			case 'n':
				buf = append(buf, '\n')
			case 'r':
				buf = append(buf, '\r')
			case 't':
				buf = append(buf, '\t')
			case 'b':
				buf = append(buf, '\b')
			case 'f':
				buf = append(buf, '\f')
			case '(':
				buf = append(buf, '(')
			case ')':
				buf = append(buf, ')')
			case '\\':
				buf = append(buf, '\\')
			case 13: // CR, possibly CRLF: line continuation
				if p, _ := lx.src.Peek(); p == 10 {
					lx.src.ReadByte()
				}
			case 10: // LF: line continuation
			default:
				if e >= '0' && e <= '7' {
					val := e - '0'
					for i := 0; i < 2; i++ {
						p, _ := lx.src.Peek()
						if p < '0' || p > '7' {
							break
						}
						lx.src.ReadByte()
						val = val*8 + (p - '0')
					}
					buf = append(buf, byte(val))
				} else if e == -1 {
					return nil, Truncated(lx.offset())
				} else {
					buf = append(buf, byte(e))
				}
			}
		default:
			buf = append(buf, byte(b))
		}
	}
}

// readHexString parses a "< … >" string; invalid hex characters are
// ignored, and a trailing odd nibble is zero-padded (spec.md §4.2).
func (lx *Lexer) readHexString() (String, error) {
	start := lx.offset()
	if b, _ := lx.src.ReadByte(); b != '<' {
		return nil, Malformed(start, "expected <")
	}
	var nibbles []byte
	for {
		b, err := lx.src.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == -1 {
			return nil, Truncated(lx.offset())
		}
		if b == '>' {
			break
		}
		if isHexDigit(b) {
			nibbles = append(nibbles, byte(hexVal(b)))
		}
		// all other characters, including whitespace, are ignored
	}
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, 0)
	}
	out := make([]byte, len(nibbles)/2)
	for i := range out {
		out[i] = nibbles[2*i]<<4 | nibbles[2*i+1]
	}
	return String(out), nil
}

// readArray parses "[ … ]", emitting StartArray, each element's events,
// and EndArray.
func (lx *Lexer) readArray(sink DocumentSink) error {
	start := lx.offset()
	if b, _ := lx.src.ReadByte(); b != '[' {
		return Malformed(start, "expected [")
	}
	sink.StartArray()
	for {
		if err := lx.skipWhiteSpace(); err != nil {
			return err
		}
		b, err := lx.src.Peek()
		if err != nil {
			return err
		}
		if b == -1 {
			return Truncated(lx.offset())
		}
		if b == ']' {
			lx.src.ReadByte()
			sink.EndArray()
			return nil
		}
		if err := lx.ReadValue(sink); err != nil {
			return err
		}
	}
}

// readDict parses "<< … >>", emitting StartDictionary, alternating Key
// and value events, and EndDictionary.
func (lx *Lexer) readDict(sink DocumentSink) error {
	start := lx.offset()
	if err := lx.expectKeyword("<<"); err != nil {
		return Malformed(start, "expected <<")
	}
	sink.StartDictionary()
	for {
		if err := lx.skipWhiteSpace(); err != nil {
			return err
		}
		if ok, err := lx.peekKeyword(">>"); err != nil {
			return err
		} else if ok {
			lx.src.ReadByte()
			lx.src.ReadByte()
			sink.EndDictionary()
			return nil
		}
		b, err := lx.src.Peek()
		if err != nil {
			return err
		}
		if b != '/' {
			return Malformed(lx.offset(), "expected dictionary key")
		}
		key, err := lx.readName()
		if err != nil {
			return err
		}
		sink.Key(key)
		if err := lx.skipWhiteSpace(); err != nil {
			return err
		}
		if err := lx.ReadValue(sink); err != nil {
			return err
		}
	}
}

// readNumberOrReference implements the speculative "N G R" lookahead of
// spec.md §4.2: after parsing an integer, it tries whitespace + a
// second integer + the literal R, restoring position on any deviation.
func (lx *Lexer) readNumberOrReference(sink DocumentSink) error {
	n, err := lx.readNumber()
	if err != nil {
		return err
	}
	if n1, ok := n.(Integer); ok && n1 >= 0 {
		mark := lx.offset()
		if ok, n2 := lx.tryReadReferenceTail(); ok {
			sink.ObjectReference(ObjectId{Number: uint32(n1), Generation: uint16(n2)})
			return nil
		}
		if err := lx.src.Seek(mark); err != nil {
			return err
		}
	}
	sink.NumberValue(n)
	return nil
}

// tryReadReferenceTail attempts to parse "G R" at the current position
// (immediately after an already-read integer n1), returning the
// generation on success. On failure it does not restore position
// itself; the caller does that from its own saved mark.
func (lx *Lexer) tryReadReferenceTail() (bool, int64) {
	if err := lx.skipWhiteSpace(); err != nil {
		return false, 0
	}
	n2, err := lx.readNumber()
	if err != nil {
		return false, 0
	}
	gen, ok := n2.(Integer)
	if !ok || gen < 0 {
		return false, 0
	}
	if err := lx.skipWhiteSpace(); err != nil {
		return false, 0
	}
	b, err := lx.src.Peek()
	if err != nil || b != 'R' {
		return false, 0
	}
	next, err := lx.src.PeekAt(1)
	if err != nil || isRegular(next) {
		// "Rx" is not the R keyword; e.g. a name Rate would false-match.
		return false, 0
	}
	lx.src.ReadByte()
	return true, int64(gen)
}

// readNumber parses an integer or real literal (spec.md §4.2), returning
// an Integer or a Real.
func (lx *Lexer) readNumber() (Object, error) {
	start := lx.offset()
	var buf []byte
	b, e := lx.src.Peek()
	if e != nil {
		return nil, e
	}
	if b == '+' || b == '-' {
		lx.src.ReadByte()
		buf = append(buf, byte(b))
	}
	hasDot := false
	for {
		b, e := lx.src.Peek()
		if e != nil {
			return nil, e
		}
		if b >= '0' && b <= '9' {
			lx.src.ReadByte()
			buf = append(buf, byte(b))
		} else if b == '.' && !hasDot {
			hasDot = true
			lx.src.ReadByte()
			buf = append(buf, byte(b))
		} else {
			break
		}
	}
	if len(buf) == 0 || (len(buf) == 1 && !isDigitByte(buf[0])) {
		return nil, Malformed(start, "invalid number")
	}
	if hasDot {
		f, err := strconv.ParseFloat(string(buf), 64)
		if err != nil {
			return nil, Malformed(start, "invalid real number")
		}
		return Real(f), nil
	}
	n, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		return nil, Malformed(start, "invalid integer")
	}
	return Integer(n), nil
}

func isDigitByte(b byte) bool { return b >= '0' && b <= '9' }

// ReadIndirectObject parses "N G obj … endobj" at the current position,
// emitting StartObject(id)/…/EndObject to sink. If the object body is a
// dictionary immediately followed by "stream", it first parses the
// dictionary once through a value-capture sink to resolve /Length and
// detect /Type /ObjStm (spec.md §4.2), then re-parses the dictionary
// into sink, then streams exactly length raw bytes through pipe.
//
// resolveLength is consulted only when /Length is an indirect reference.
func (lx *Lexer) ReadIndirectObject(sink DocumentSink, resolveLength LengthResolver, pipeFor StreamPipeFactory) (ObjectId, error) {
	start := lx.offset()
	if err := lx.skipWhiteSpace(); err != nil {
		return ObjectId{}, err
	}
	numObj, err := lx.readNumber()
	num, isInt := numObj.(Integer)
	if err != nil || !isInt || num < 0 {
		return ObjectId{}, Malformed(start, "expected object number")
	}
	if err := lx.skipWhiteSpace(); err != nil {
		return ObjectId{}, err
	}
	genObj, err := lx.readNumber()
	gen, isInt := genObj.(Integer)
	if err != nil || !isInt || gen < 0 {
		return ObjectId{}, Malformed(lx.offset(), "expected generation number")
	}
	if err := lx.skipWhiteSpace(); err != nil {
		return ObjectId{}, err
	}
	if err := lx.expectKeyword("obj"); err != nil {
		return ObjectId{}, err
	}
	id := ObjectId{Number: uint32(num), Generation: uint16(gen)}

	sink.StartObject(id)

	if err := lx.skipWhiteSpace(); err != nil {
		return id, err
	}
	b, err := lx.src.Peek()
	if err != nil {
		return id, err
	}
	next, err := lx.src.PeekAt(1)
	if err != nil {
		return id, err
	}
	if b == '<' && next == '<' {
		dictStart := lx.offset()
		capture := newValueCaptureSink()
		if err := lx.readDict(capture); err != nil {
			return id, err
		}
		dictEnd := lx.offset()

		if err := lx.src.Seek(dictStart); err != nil {
			return id, err
		}
		if err := lx.readDict(sink); err != nil {
			return id, err
		}
		if err := lx.src.Seek(dictEnd); err != nil {
			return id, err
		}

		if err := lx.skipWhiteSpace(); err != nil {
			return id, err
		}
		if ok, err := lx.peekKeyword("stream"); err != nil {
			return id, err
		} else if ok {
			captured, _ := capture.Result()
			dict, _ := captured.(Dict)
			length, err := lx.resolveStreamLength(dict, resolveLength)
			if err != nil {
				return id, err
			}
			var pipe StreamPipe
			if pipeFor != nil {
				pipe, err = pipeFor(dict)
				if err != nil {
					return id, err
				}
			}
			if err := lx.readStream(sink, dict, length, pipe); err != nil {
				return id, err
			}
		}
	} else {
		if err := lx.ReadValue(sink); err != nil {
			return id, err
		}
	}

	if err := lx.skipWhiteSpace(); err != nil {
		return id, err
	}
	if err := lx.expectKeyword("endobj"); err != nil {
		return id, err
	}
	sink.EndObject()
	return id, nil
}

func (lx *Lexer) resolveStreamLength(dict Dict, resolveLength LengthResolver) (int64, error) {
	v, ok := dict["Length"]
	if !ok {
		return 0, Malformed(lx.offset(), "stream dictionary missing /Length")
	}
	switch l := v.(type) {
	case Integer:
		return int64(l), nil
	case Reference:
		if resolveLength == nil {
			return 0, UnresolvedReference(ObjectId(l))
		}
		return resolveLength.ResolveInteger(ObjectId(l))
	default:
		return 0, Malformed(lx.offset(), "invalid /Length value")
	}
}

// StreamPipe accepts the raw encoded bytes of a stream body. It is
// implemented by the FilterPipeline (see internal/filter/pipeline).
type StreamPipe interface {
	Write(chunk []byte) error
	Close() error
}

// StreamPipeFactory builds the StreamPipe for a stream once its
// dictionary is known (the filter chain depends on /Filter and
// /DecodeParms, which are only available after the dictionary has been
// parsed). With a nil factory or a nil StreamPipe the raw bytes are read
// and discarded: sink still receives StartStream and EndStream, but no
// StreamContent events.
type StreamPipeFactory func(dict Dict) (StreamPipe, error)

// readStream consumes "stream<EOL>" + length raw bytes + optional
// whitespace + "endstream" (spec.md §4.2), delivering the raw bytes to
// pipe and bracketing them with StartStream/EndStream on sink.
func (lx *Lexer) readStream(sink DocumentSink, dict Dict, length int64, pipe StreamPipe) error {
	if err := lx.expectKeyword("stream"); err != nil {
		return err
	}
	b, err := lx.src.ReadByte()
	if err != nil {
		return err
	}
	switch b {
	case 13:
		if p, _ := lx.src.Peek(); p == 10 {
			lx.src.ReadByte()
		}
	case 10:
	default:
		return Malformed(lx.offset(), "expected EOL after stream keyword")
	}

	sink.StartStream()
	if length > 0 {
		const chunkSize = 8192
		remaining := length
		for remaining > 0 {
			n := int64(chunkSize)
			if remaining < n {
				n = remaining
			}
			buf, err := lx.src.ReadExact(int(n))
			if err != nil {
				return err
			}
			if pipe != nil {
				if err := pipe.Write(buf); err != nil {
					return wrapFilterError(err)
				}
			}
			remaining -= n
		}
	}
	if pipe != nil {
		if err := pipe.Close(); err != nil {
			return wrapFilterError(err)
		}
	}
	sink.EndStream()

	if err := lx.skipWhiteSpace(); err != nil {
		return err
	}
	return lx.expectKeyword("endstream")
}
