package pdf

import (
	"bytes"
	"strconv"
)

// xrefEngine locates and parses the cross-reference chain and trailer
// dictionary, merging sections with newest-wins precedence across
// /Prev (and the hybrid-file /XRefStm) links (spec.md §4.5).
type xrefEngine struct {
	src   ByteSource
	lexer *Lexer
	table *CrossReferenceTable

	trailer     Dict
	haveTrailer bool
	rootID      ObjectId
	seenOffsets map[int64]bool

	// Location of the first (newest) trailer encountered, recorded so
	// TraversalController can re-seek and replay it directly into the
	// document sink in source order (spec.md §4.6's synthetic trailer
	// object), the same two-pass pattern used for every other object.
	trailerDictOffset   int64
	trailerIsStream     bool
	trailerObjectID     ObjectId
	trailerObjectOffset int64
}

func newXRefEngine(src ByteSource) *xrefEngine {
	return &xrefEngine{
		src:         src,
		lexer:       NewLexer(src),
		table:       NewCrossReferenceTable(),
		seenOffsets: make(map[int64]bool),
	}
}

// Load runs the full /Prev chain starting from the startxref offset.
func (x *xrefEngine) Load() error {
	offset, err := x.findStartXref()
	if err != nil {
		return err
	}
	return x.readChain(offset)
}

// findStartXref scans the last 1024 bytes of the source for the
// literal "startxref" and reads the decimal offset that follows
// (spec.md §4.5).
func (x *xrefEngine) findStartXref() (int64, error) {
	size := x.src.Size()
	windowStart := size - 1024
	if windowStart < 0 {
		windowStart = 0
	}
	if err := x.src.Seek(windowStart); err != nil {
		return 0, err
	}
	tail, err := x.src.ReadExact(int(size - windowStart))
	if err != nil {
		return 0, err
	}

	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, Malformed(windowStart, "startxref not found in final 1024 bytes")
	}
	if err := x.src.Seek(windowStart + int64(idx) + int64(len("startxref"))); err != nil {
		return 0, err
	}
	if err := x.lexer.skipWhiteSpace(); err != nil {
		return 0, err
	}

	start := x.src.Position()
	var digits []byte
	for {
		b, err := x.src.Peek()
		if err != nil {
			return 0, err
		}
		if b < '0' || b > '9' {
			break
		}
		x.src.ReadByte()
		digits = append(digits, byte(b))
	}
	if len(digits) == 0 {
		return 0, Malformed(start, "expected decimal offset after startxref")
	}
	n, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return 0, Malformed(start, "invalid startxref offset")
	}
	return n, nil
}

// readChain dispatches on the byte at offset, then recurses via /Prev
// (and /XRefStm) until the chain is exhausted, guarding against cycles
// with seenOffsets.
func (x *xrefEngine) readChain(offset int64) error {
	if x.seenOffsets[offset] {
		return nil
	}
	x.seenOffsets[offset] = true

	if err := x.src.Seek(offset); err != nil {
		return err
	}
	if err := x.lexer.skipWhiteSpace(); err != nil {
		return err
	}
	b, err := x.src.Peek()
	if err != nil {
		return err
	}

	var sectionTrailer Dict
	switch {
	case b == 'x':
		var dictOffset int64
		sectionTrailer, dictOffset, err = x.readXRefTable()
		if err == nil && !x.haveTrailer {
			x.trailerDictOffset = dictOffset
			x.trailerIsStream = false
		}
	case b >= '0' && b <= '9':
		var objID ObjectId
		sectionTrailer, objID, err = x.readXRefStream(offset)
		if err == nil && !x.haveTrailer {
			x.trailerIsStream = true
			x.trailerObjectID = objID
			x.trailerObjectOffset = offset
		}
	default:
		return Malformed(offset, "expected 'xref' or an xref-stream object header")
	}
	if err != nil {
		return err
	}

	if !x.haveTrailer {
		x.trailer = sectionTrailer
		x.haveTrailer = true
		if r, ok := sectionTrailer["Root"].(Reference); ok {
			x.rootID = ObjectId(r)
		}
	}

	if hybrid, ok := sectionTrailer["XRefStm"].(Integer); ok {
		if err := x.readChain(int64(hybrid)); err != nil {
			return err
		}
	}
	if prev, ok := sectionTrailer["Prev"].(Integer); ok {
		return x.readChain(int64(prev))
	}
	return nil
}

// readXRefTable parses a legacy "xref" section followed by its trailer
// dictionary (spec.md §4.5).
func (x *xrefEngine) readXRefTable() (Dict, int64, error) {
	if err := x.lexer.expectKeyword("xref"); err != nil {
		return nil, 0, err
	}
	for {
		if err := x.lexer.skipWhiteSpace(); err != nil {
			return nil, 0, err
		}
		if ok, err := x.lexer.peekKeyword("trailer"); err != nil {
			return nil, 0, err
		} else if ok {
			break
		}

		startObj, err := x.readDecimal()
		if err != nil {
			return nil, 0, err
		}
		if err := x.lexer.skipWhiteSpace(); err != nil {
			return nil, 0, err
		}
		count, err := x.readDecimal()
		if err != nil {
			return nil, 0, err
		}

		for i := int64(0); i < count; i++ {
			if err := x.lexer.skipWhiteSpace(); err != nil {
				return nil, 0, err
			}
			entry, err := x.readLegacyRecord()
			if err != nil {
				return nil, 0, err
			}
			id := ObjectId{Number: uint32(startObj + i)}
			switch entry.kind {
			case recInUse:
				id.Generation = entry.generation
				x.table.AddIfAbsent(id, InUseEntry(entry.offset, entry.generation))
			case recFree:
				id.Generation = entry.generation
				x.table.AddIfAbsent(id, FreeEntry(uint32(entry.offset), entry.generation))
			}
		}
	}

	if err := x.lexer.expectKeyword("trailer"); err != nil {
		return nil, 0, err
	}
	if err := x.lexer.skipWhiteSpace(); err != nil {
		return nil, 0, err
	}
	dictOffset := x.src.Position()
	capture := newValueCaptureSink()
	if err := x.lexer.readDict(capture); err != nil {
		return nil, 0, err
	}
	v, _ := capture.Result()
	d, _ := v.(Dict)
	return d, dictOffset, nil
}

func (x *xrefEngine) readDecimal() (int64, error) {
	start := x.src.Position()
	var digits []byte
	for {
		b, err := x.src.Peek()
		if err != nil {
			return 0, err
		}
		if b < '0' || b > '9' {
			break
		}
		x.src.ReadByte()
		digits = append(digits, byte(b))
	}
	if len(digits) == 0 {
		return 0, Malformed(start, "expected decimal integer")
	}
	return strconv.ParseInt(string(digits), 10, 64)
}

type recordKind int

const (
	recInUse recordKind = iota
	recFree
)

type legacyRecord struct {
	kind       recordKind
	offset     int64
	generation uint16
}

// readLegacyRecord parses one fixed 20-byte xref record: 10-digit
// offset, space, 5-digit generation, space, type byte 'n'/'f',
// terminator (spec.md §4.5). A free-list head record with an
// overflowed generation field of 65536 is repaired to 65535, carrying
// forward the teacher's tolerance for this common producer bug
// (SPEC_FULL.md §D.3).
func (x *xrefEngine) readLegacyRecord() (legacyRecord, error) {
	raw, err := x.src.ReadExact(20)
	if err != nil {
		return legacyRecord{}, err
	}
	offsetField := string(bytes.TrimSpace(raw[0:10]))
	genField := string(bytes.TrimSpace(raw[11:16]))
	typ := raw[17]

	offset, err := strconv.ParseInt(offsetField, 10, 64)
	if err != nil {
		return legacyRecord{}, Malformed(x.src.Position()-20, "invalid xref record offset")
	}
	gen, err := strconv.ParseInt(genField, 10, 64)
	if err != nil {
		return legacyRecord{}, Malformed(x.src.Position()-20, "invalid xref record generation")
	}
	if gen == 65536 {
		gen = 65535
	}

	switch typ {
	case 'n':
		return legacyRecord{kind: recInUse, offset: offset, generation: uint16(gen)}, nil
	case 'f':
		return legacyRecord{kind: recFree, offset: offset, generation: uint16(gen)}, nil
	default:
		return legacyRecord{}, Malformed(x.src.Position()-20, "invalid xref record type")
	}
}

// readXRefStream parses "N G obj <<dict>> stream …" for a cross-reference
// stream, decodes it, and installs its binary entries (spec.md §4.5).
func (x *xrefEngine) readXRefStream(objOffset int64) (Dict, ObjectId, error) {
	capture := newValueCaptureSink()
	var decoded bytes.Buffer

	objID, err := x.lexer.ReadIndirectObject(capture, nil, decodeStreamToBuffer(&decoded))
	if err != nil {
		return nil, ObjectId{}, err
	}
	v, _ := capture.Result()
	dict, _ := v.(Dict)
	if dict == nil {
		return nil, ObjectId{}, Malformed(objOffset, "xref stream has no dictionary")
	}

	widths, ok := dict["W"].(Array)
	if !ok || len(widths) != 3 {
		return nil, ObjectId{}, Malformed(objOffset, "xref stream missing /W")
	}
	w0 := intOf(widths[0])
	w1 := intOf(widths[1])
	w2 := intOf(widths[2])

	var index []int64
	if idx, ok := dict["Index"].(Array); ok {
		for _, v := range idx {
			index = append(index, int64(intOf(v)))
		}
	} else {
		size := int64(intOf(dict["Size"]))
		index = []int64{0, size}
	}

	body := decoded.Bytes()
	pos := 0
	recSize := w0 + w1 + w2
	for i := 0; i+1 < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for j := int64(0); j < count; j++ {
			if pos+recSize > len(body) {
				return nil, ObjectId{}, Malformed(objOffset, "xref stream truncated")
			}
			rec := body[pos : pos+recSize]
			pos += recSize

			typ := int64(1)
			off := 0
			if w0 > 0 {
				typ = beInt(rec[off : off+w0])
				off += w0
			}
			field2 := beInt(rec[off : off+w1])
			off += w1
			field3 := beInt(rec[off : off+w2])

			id := ObjectId{Number: uint32(first + j)}
			switch typ {
			case 0:
				id.Generation = uint16(field3)
				x.table.AddIfAbsent(id, FreeEntry(uint32(field2), uint16(field3)))
			case 1:
				id.Generation = uint16(field3)
				x.table.AddIfAbsent(id, InUseEntry(field2, uint16(field3)))
			case 2:
				x.table.AddIfAbsent(id, CompressedEntry(uint32(field2), int(field3)))
			default:
				// types outside {0,1,2} are ignored, per spec.md §7
			}
		}
	}

	return dict, objID, nil
}

func intOf(v Object) int {
	if i, ok := v.(Integer); ok {
		return int(i)
	}
	return 0
}

func beInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

// Trailer returns the merged trailer dictionary, available after Load.
func (x *xrefEngine) Trailer() Dict { return x.trailer }

// RootID returns the trailer's /Root object id.
func (x *xrefEngine) RootID() ObjectId { return x.rootID }

// Table returns the merged cross-reference table, available after Load.
func (x *xrefEngine) Table() *CrossReferenceTable { return x.table }
