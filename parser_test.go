package pdf

import (
	"fmt"
	"testing"

	"codeberg.org/jvoss/streampdf/cmap"
	"seehuhn.de/go/postscript"
)

// TestParserMinimalDocument exercises spec.md's S1 scenario: a push
// traversal of a minimal catalog/pages document emits the synthetic
// trailer object first, then the catalog, then the pages object, in
// breadth-first discovery order.
func TestParserMinimalDocument(t *testing.T) {
	header := "%PDF-1.4\n"

	obj1Offset := int64(len(header))
	obj1 := "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n"

	obj2Offset := obj1Offset + int64(len(obj1))
	obj2 := "2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n"

	xrefOffset := obj2Offset + int64(len(obj2))
	data := header + obj1 + obj2 +
		"xref\n0 3\n" +
		legacyXRefRecord(0, 65535, 'f') +
		legacyXRefRecord(obj1Offset, 0, 'n') +
		legacyXRefRecord(obj2Offset, 0, 'n') +
		"trailer\n<< /Size 3 /Root 1 0 R >>\n" +
		fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset)

	sink := &recordingSink{}
	p := New(sink)
	if err := p.Parse(NewMemoryByteSource([]byte(data))); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	want := []string{
		"start_object(0 0 R)",
		"start_dictionary",
		"key(Size)",
		"number_value(3)",
		"key(Root)",
		"object_reference(1 0 R)",
		"end_dictionary",
		"end_object",

		"start_object(1 0 R)",
		"start_dictionary",
		"key(Type)",
		"name_value(Catalog)",
		"key(Pages)",
		"object_reference(2 0 R)",
		"end_dictionary",
		"end_object",

		"start_object(2 0 R)",
		"start_dictionary",
		"key(Type)",
		"name_value(Pages)",
		"key(Kids)",
		"start_array",
		"end_array",
		"key(Count)",
		"number_value(0)",
		"end_dictionary",
		"end_object",
	}
	if !equalTrace(sink.trace(), want) {
		t.Fatalf("trace = %v,\nwant   %v", sink.trace(), want)
	}
	if p.CatalogID() != (ObjectId{Number: 1, Generation: 0}) {
		t.Fatalf("CatalogID() = %+v", p.CatalogID())
	}
}

// TestParserLengthReferenceDoesNotDoubleFire exercises spec.md's S2
// scenario: a stream's /Length points at a separate integer object.
// Resolving it during the dictionary's first (speculative) capture pass
// must not emit any events at all, and the second (real) pass must
// deliver exactly one object_reference event for that object, which is
// then visited exactly once later in the traversal.
func TestParserLengthReferenceDoesNotDoubleFire(t *testing.T) {
	header := "%PDF-1.4\n"

	obj1Offset := int64(len(header))
	obj1 := "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n"

	obj2Offset := obj1Offset + int64(len(obj1))
	obj2 := "2 0 obj\n<< /Type /Pages /Kids [] /Count 0 >>\nendobj\n"

	streamBody := "hello, this is a stream body of forty-two!" // 42 bytes, matching object 5's value below
	obj3Offset := obj2Offset + int64(len(obj2))
	obj3 := "3 0 obj\n<< /Length 5 0 R >>\nstream\n" + streamBody + "\nendstream\nendobj\n"

	obj5Offset := obj3Offset + int64(len(obj3))
	obj5 := "5 0 obj\n42\nendobj\n"

	xrefOffset := obj5Offset + int64(len(obj5))
	data := header + obj1 + obj2 + obj3 + obj5 +
		"xref\n0 6\n" +
		legacyXRefRecord(0, 65535, 'f') +
		legacyXRefRecord(obj1Offset, 0, 'n') +
		legacyXRefRecord(obj2Offset, 0, 'n') +
		legacyXRefRecord(obj3Offset, 0, 'n') +
		legacyXRefRecord(0, 0, 'f') +
		legacyXRefRecord(obj5Offset, 0, 'n') +
		"trailer\n<< /Size 6 /Root 1 0 R /Info 3 0 R >>\n" +
		fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset)

	sink := &recordingSink{}
	p := New(sink)
	if err := p.Parse(NewMemoryByteSource([]byte(data))); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	refCount := 0
	obj5Events := 0
	for _, e := range sink.trace() {
		if e == "object_reference(5 0 R)" {
			refCount++
		}
	}
	for i, e := range sink.trace() {
		if e == "start_object(5 0 R)" {
			obj5Events++
			rest := sink.trace()[i : i+3]
			want := []string{"start_object(5 0 R)", "number_value(42)", "end_object"}
			if !equalTrace(rest, want) {
				t.Fatalf("object 5 events = %v, want %v", rest, want)
			}
		}
	}
	if refCount != 1 {
		t.Fatalf("object_reference(5 0 R) fired %d times, want exactly 1 (trace: %v)", refCount, sink.trace())
	}
	if obj5Events != 1 {
		t.Fatalf("object (5,0) visited %d times, want exactly 1", obj5Events)
	}
}

// capturingStreamParser is a StreamParser test double that records every
// byte it is handed and whether Close was called.
type capturingStreamParser struct {
	data   []byte
	closed bool
}

func (c *capturingStreamParser) Write(chunk []byte) (int, error) {
	c.data = append(c.data, chunk...)
	return len(chunk), nil
}

func (c *capturingStreamParser) Close() error {
	c.closed = true
	return nil
}

// TestParserContentStreamTypeInference exercises spec.md's S4 scenario:
// a Page's /Contents stream is inferred as a content stream and, when a
// content sink factory is registered, its decoded bytes reach the
// StreamParser built by that factory, independently of the plain
// stream_content events delivered to the document sink.
func TestParserContentStreamTypeInference(t *testing.T) {
	header := "%PDF-1.4\n"

	obj1Offset := int64(len(header))
	obj1 := "1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n"

	obj2Offset := obj1Offset + int64(len(obj1))
	obj2 := "2 0 obj\n<< /Type /Pages /Kids [3 0 R] /Count 1 >>\nendobj\n"

	obj3Offset := obj2Offset + int64(len(obj2))
	obj3 := "3 0 obj\n<< /Type /Page /Contents 4 0 R >>\nendobj\n"

	content := "BT ET"
	obj4Offset := obj3Offset + int64(len(obj3))
	obj4 := fmt.Sprintf("4 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(content), content)

	xrefOffset := obj4Offset + int64(len(obj4))
	data := header + obj1 + obj2 + obj3 + obj4 +
		"xref\n0 5\n" +
		legacyXRefRecord(0, 65535, 'f') +
		legacyXRefRecord(obj1Offset, 0, 'n') +
		legacyXRefRecord(obj2Offset, 0, 'n') +
		legacyXRefRecord(obj3Offset, 0, 'n') +
		legacyXRefRecord(obj4Offset, 0, 'n') +
		"trailer\n<< /Size 5 /Root 1 0 R >>\n" +
		fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset)

	sink := &recordingSink{}
	p := New(sink)

	var built *capturingStreamParser
	p.SetContentSinkFactory(func() StreamParser {
		built = &capturingStreamParser{}
		return built
	})

	if err := p.Parse(NewMemoryByteSource([]byte(data))); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if built == nil {
		t.Fatal("content sink factory was never invoked")
	}
	if string(built.data) != content {
		t.Fatalf("content sink saw %q, want %q", built.data, content)
	}
	if !built.closed {
		t.Fatal("content sink was never closed")
	}

	want := fmt.Sprintf("stream_content(%s)", content)
	found := false
	for _, e := range sink.trace() {
		if e == want {
			found = true
		}
	}
	if !found {
		t.Fatalf("document sink did not receive %q; trace = %v", want, sink.trace())
	}
}

// TestParserWiresRealCMapAdapter exercises the /ToUnicode stream-type
// inference rule end to end against the real cmap.Sink adapter (not a
// local test double), confirming SetCMapSinkFactory's registered
// factory actually receives the decoded CMap bytes and can parse them.
func TestParserWiresRealCMapAdapter(t *testing.T) {
	header := "%PDF-1.4\n"

	cmapBody := `/CIDInit /ProcSet findresource begin
12 dict begin
begincmap

/CMapName /TestH def
/CMapType 2 def

1 begincodespacerange
<00> <FF>
endcodespacerange

1 begincidchar
<20> 1
endcidchar

endcmap
CMapName currentdict /CMap defineresource pop
end
end
`

	obj2Offset := int64(len(header))
	obj2 := fmt.Sprintf("2 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", len(cmapBody), cmapBody)

	obj1Offset := obj2Offset + int64(len(obj2))
	obj1 := "1 0 obj\n<< /Type /Font /ToUnicode 2 0 R >>\nendobj\n"

	xrefOffset := obj1Offset + int64(len(obj1))
	data := header + obj2 + obj1 +
		"xref\n0 3\n" +
		legacyXRefRecord(0, 65535, 'f') +
		legacyXRefRecord(obj1Offset, 0, 'n') +
		legacyXRefRecord(obj2Offset, 0, 'n') +
		"trailer\n<< /Size 3 /Root 1 0 R >>\n" +
		fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset)

	sink := &recordingSink{}
	p := New(sink)

	var built *cmap.Sink
	p.SetCMapSinkFactory(func() StreamParser {
		built = cmap.New()
		return built
	})

	if err := p.Parse(NewMemoryByteSource([]byte(data))); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if built == nil {
		t.Fatal("cmap sink factory was never invoked")
	}
	if err := built.Err(); err != nil {
		t.Fatalf("cmap adapter failed to parse the decoded stream: %v", err)
	}
	name, ok := built.Result()["CMapName"].(postscript.Name)
	if !ok || name != "TestH" {
		t.Fatalf("CMapName = %#v, want postscript.Name(%q)", built.Result()["CMapName"], "TestH")
	}
}
