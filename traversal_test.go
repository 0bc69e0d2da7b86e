package pdf

import (
	"strconv"
	"testing"
)

// TestResolveIntegerInUseLengthTarget covers the ordinary case: a
// stream's /Length points at a plain InUse indirect object.
func TestResolveIntegerInUseLengthTarget(t *testing.T) {
	src := NewMemoryByteSource([]byte("2 0 obj\n99\nendobj\n"))
	table := NewCrossReferenceTable()
	table.AddIfAbsent(ObjectId{Number: 2}, InUseEntry(0, 0))

	tc := NewTraversalController(src, &recordingSink{})
	tc.xref = &xrefEngine{table: table}

	n, err := tc.ResolveInteger(ObjectId{Number: 2})
	if err != nil {
		t.Fatalf("ResolveInteger: %v", err)
	}
	if n != 99 {
		t.Fatalf("ResolveInteger = %d, want 99", n)
	}
}

// TestResolveIntegerCompressedLengthTarget exercises spec.md §8's
// boundary behavior: "/Length supplied as an indirect reference whose
// target is itself compressed in an object stream". The target object
// 7 lives inside object-stream container 10, and ResolveInteger must
// pull it out via the same objectStreamCache the traversal itself uses
// rather than failing with UnresolvedReference.
func TestResolveIntegerCompressedLengthTarget(t *testing.T) {
	indexTable := "7 0\n" // object 7 at byte offset 0 past /First
	objectData := "99"
	streamBody := indexTable + objectData

	container := "10 0 obj\n" +
		"<< /Type /ObjStm /N 1 /First 4 /Length " + strconv.Itoa(len(streamBody)) + " >>\n" +
		"stream\n" + streamBody + "\nendstream\nendobj\n"

	src := NewMemoryByteSource([]byte(container))
	table := NewCrossReferenceTable()
	table.AddIfAbsent(ObjectId{Number: 10}, InUseEntry(0, 0))
	table.AddIfAbsent(ObjectId{Number: 7}, CompressedEntry(10, 0))

	tc := NewTraversalController(src, &recordingSink{})
	tc.xref = &xrefEngine{table: table}
	tc.objs = newObjectStreamCache(src, table, tc, objectStreamCacheCapacity)

	n, err := tc.ResolveInteger(ObjectId{Number: 7})
	if err != nil {
		t.Fatalf("ResolveInteger: %v", err)
	}
	if n != 99 {
		t.Fatalf("ResolveInteger = %d, want 99", n)
	}
}

// positionCapturingSink records every byte offset Positioner.Locator()
// reports while a NumberValue event is being handled, so the test can
// confirm the parser actually hands over a live, advancing cursor
// rather than a dead interface.
type positionCapturingSink struct {
	recordingSink
	positioner Positioner
	locations  []int64
}

func (s *positionCapturingSink) SetPositioner(p Positioner) { s.positioner = p }

func (s *positionCapturingSink) NumberValue(n Object) {
	s.recordingSink.NumberValue(n)
	if s.positioner != nil {
		s.locations = append(s.locations, s.positioner.Locator())
	}
}

var _ PositionAware = (*positionCapturingSink)(nil)
var _ DocumentSink = (*positionCapturingSink)(nil)

// TestTraversalControllerWiresPositioner exercises SPEC_FULL.md §D.1:
// a sink that implements PositionAware must actually receive a working
// Positioner, not just declare the capability.
func TestTraversalControllerWiresPositioner(t *testing.T) {
	header := "%PDF-1.4\n"

	obj1Offset := int64(len(header))
	obj1 := "1 0 obj\n<< /Type /Catalog /Count 3 >>\nendobj\n"

	xrefOffset := obj1Offset + int64(len(obj1))
	data := header + obj1 +
		"xref\n0 2\n" +
		legacyXRefRecord(0, 65535, 'f') +
		legacyXRefRecord(obj1Offset, 0, 'n') +
		"trailer\n<< /Size 2 /Root 1 0 R >>\n" +
		"startxref\n" + strconv.FormatInt(xrefOffset, 10) + "\n%%EOF\n"

	sink := &positionCapturingSink{}
	p := New(sink)
	if err := p.Parse(NewMemoryByteSource([]byte(data))); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if sink.positioner == nil {
		t.Fatal("sink implementing PositionAware never received a Positioner")
	}
	if len(sink.locations) == 0 {
		t.Fatal("Locator() was never exercised during parsing")
	}
	for _, loc := range sink.locations {
		if loc <= 0 {
			t.Fatalf("Locator() returned %d mid-parse, want a positive offset into the source", loc)
		}
	}
}
