package pdf

import (
	"bytes"
	"container/list"
)

// decodedObjectStream is the fully decoded body of one compressed
// object stream (/Type /ObjStm, spec.md §4.6), plus its /N + /First
// index table: objectNumbers[i] starts at byte offset
// first+byteOffsets[i] of the decoded body, which is byteOffsets[i]
// within data.
type decodedObjectStream struct {
	objectNumbers []uint32
	byteOffsets   []int
	data          []byte // already sliced from /First onward
}

type objStreamCacheEntry struct {
	container uint32
	stream    *decodedObjectStream
}

// objectStreamCache is a bounded, lazily-populated cache of decoded
// object streams, evicting least-recently-used containers once
// capacity is exceeded (spec.md §4.6, §5's bounded-memory requirement).
// Grounded on the object cache in Geek0x0-pdf/read.go (objCache +
// cacheList via container/list, MoveToFront on hit, evict from Back on
// overflow), generalized from whole-object caching to object-stream
// caching.
type objectStreamCache struct {
	src           ByteSource
	lexer         *Lexer
	table         *CrossReferenceTable
	resolveLength LengthResolver
	capacity      int

	entries map[uint32]*list.Element
	order   *list.List
}

func newObjectStreamCache(src ByteSource, table *CrossReferenceTable, resolveLength LengthResolver, capacity int) *objectStreamCache {
	return &objectStreamCache{
		src:           src,
		lexer:         NewLexer(src),
		table:         table,
		resolveLength: resolveLength,
		capacity:      capacity,
		entries:       make(map[uint32]*list.Element),
		order:         list.New(),
	}
}

// Get returns the decoded object stream for the given container object
// number, loading and parsing it on first access.
func (c *objectStreamCache) Get(container uint32) (*decodedObjectStream, error) {
	if elem, ok := c.entries[container]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(objStreamCacheEntry).stream, nil
	}

	ds, err := c.load(container)
	if err != nil {
		return nil, err
	}

	elem := c.order.PushFront(objStreamCacheEntry{container: container, stream: ds})
	c.entries[container] = elem
	if c.capacity > 0 && c.order.Len() > c.capacity {
		back := c.order.Back()
		if back != nil {
			c.order.Remove(back)
			delete(c.entries, back.Value.(objStreamCacheEntry).container)
		}
	}
	return ds, nil
}

// load seeks to the container object's offset, parses and decodes its
// stream body, and builds the /N + /First index table.
func (c *objectStreamCache) load(container uint32) (*decodedObjectStream, error) {
	id := ObjectId{Number: container}
	entry, ok := c.table.Get(id)
	if !ok {
		return nil, UnresolvedReference(id)
	}
	if entry.Kind() != InUse {
		return nil, Malformed(0, "object stream container "+id.String()+" is not an in-use object")
	}

	if err := c.src.Seek(entry.Offset()); err != nil {
		return nil, err
	}
	capture := newValueCaptureSink()
	var decoded bytes.Buffer
	objID, err := c.lexer.ReadIndirectObject(capture, c.resolveLength, decodeStreamToBuffer(&decoded))
	if err != nil {
		return nil, err
	}
	if objID.Number != container {
		return nil, InconsistentObject(id, objID)
	}

	v, _ := capture.Result()
	dict, _ := v.(Dict)
	if dict == nil {
		return nil, Malformed(entry.Offset(), "object stream missing dictionary")
	}

	n := intOf(dict["N"])
	first := intOf(dict["First"])
	body := decoded.Bytes()
	if first < 0 || first > len(body) {
		return nil, Malformed(entry.Offset(), "object stream /First out of range")
	}

	objNums := make([]uint32, 0, n)
	offsets := make([]int, 0, n)
	pos := 0
	for i := 0; i < n; i++ {
		pos = skipHeaderWhiteSpace(body, pos)
		num, next, ok := parseHeaderUint(body, pos)
		if !ok {
			return nil, Malformed(entry.Offset(), "malformed object stream index table")
		}
		pos = skipHeaderWhiteSpace(body, next)
		off, next2, ok := parseHeaderUint(body, pos)
		if !ok {
			return nil, Malformed(entry.Offset(), "malformed object stream index table")
		}
		pos = next2

		objNums = append(objNums, uint32(num))
		offsets = append(offsets, int(off))
	}

	return &decodedObjectStream{
		objectNumbers: objNums,
		byteOffsets:   offsets,
		data:          body[first:],
	}, nil
}

func skipHeaderWhiteSpace(b []byte, i int) int {
	for i < len(b) && isSpace[b[i]] {
		i++
	}
	return i
}

func parseHeaderUint(b []byte, i int) (value int64, next int, ok bool) {
	start := i
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		value = value*10 + int64(b[i]-'0')
		i++
	}
	if i == start {
		return 0, i, false
	}
	return value, i, true
}

// ParseObject parses the index-th object embedded in container via a
// fresh in-memory lexer over the already-decoded stream body, emitting
// StartObject/value/EndObject without the obj/endobj wrapper (spec.md
// §4.6: compressed objects carry no indirect-object framing of their
// own).
func (c *objectStreamCache) ParseObject(container uint32, index int, sink DocumentSink) (ObjectId, error) {
	ds, err := c.Get(container)
	if err != nil {
		return ObjectId{}, err
	}
	if index < 0 || index >= len(ds.objectNumbers) {
		return ObjectId{}, Malformed(0, "object stream index out of range")
	}
	if ds.byteOffsets[index] < 0 || ds.byteOffsets[index] > len(ds.data) {
		return ObjectId{}, Malformed(0, "object stream entry offset out of range")
	}

	id := ObjectId{Number: ds.objectNumbers[index]}
	sub := NewMemoryByteSource(ds.data)
	if err := sub.Seek(int64(ds.byteOffsets[index])); err != nil {
		return id, err
	}
	lx := NewLexer(sub)

	sink.StartObject(id)
	if err := lx.ReadValue(sink); err != nil {
		return id, err
	}
	sink.EndObject()
	return id, nil
}
