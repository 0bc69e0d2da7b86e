package pdf

import (
	"fmt"
	"testing"
)

func TestXRefEngineLegacyTableAndTrailer(t *testing.T) {
	header := "%PDF-1.4\n"
	xrefOffset := int64(len(header))
	data := header +
		"xref\n0 3\n" +
		legacyXRefRecord(0, 65535, 'f') +
		legacyXRefRecord(9, 0, 'n') +
		legacyXRefRecord(74, 0, 'n') +
		"trailer\n<< /Size 3 /Root 1 0 R >>\n" +
		fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset)

	src := NewMemoryByteSource([]byte(data))
	x := newXRefEngine(src)
	if err := x.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	obj1, ok := x.table.Get(ObjectId{Number: 1, Generation: 0})
	if !ok || obj1.Kind() != InUse || obj1.Offset() != 9 {
		t.Fatalf("object (1,0) = %+v, ok=%v", obj1, ok)
	}
	obj2, ok := x.table.Get(ObjectId{Number: 2, Generation: 0})
	if !ok || obj2.Kind() != InUse || obj2.Offset() != 74 {
		t.Fatalf("object (2,0) = %+v, ok=%v", obj2, ok)
	}
	if x.RootID() != (ObjectId{Number: 1, Generation: 0}) {
		t.Fatalf("RootID() = %+v", x.RootID())
	}
}

func TestXRefEngineLegacyRecordGenerationRepair(t *testing.T) {
	header := "%PDF-1.4\n"
	xrefOffset := int64(len(header))
	data := header +
		"xref\n0 1\n" +
		legacyXRefRecord(0, 65536, 'f') + // overflowed free-list head generation
		"trailer\n<< /Size 1 >>\n" +
		fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset)

	src := NewMemoryByteSource([]byte(data))
	x := newXRefEngine(src)
	if err := x.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	e, ok := x.table.Get(ObjectId{Number: 0, Generation: 65535})
	if !ok || e.Kind() != Free {
		t.Fatalf("expected repaired free entry at generation 65535, got %+v, ok=%v", e, ok)
	}
}

func TestXRefEngineIncrementalUpdateNewestWins(t *testing.T) {
	header := "%PDF-1.4\n"

	trunkOffset := int64(len(header))
	trunk := "xref\n4 1\n" + legacyXRefRecord(1000, 0, 'n') +
		"trailer\n<< /Size 5 >>\n"

	appendedOffset := trunkOffset + int64(len(trunk))
	appended := fmt.Sprintf("xref\n4 1\n%strailer\n<< /Size 5 /Root 9 0 R /Prev %d >>\n",
		legacyXRefRecord(2000, 1, 'n'), trunkOffset)

	data := header + trunk + appended +
		fmt.Sprintf("startxref\n%d\n%%%%EOF\n", appendedOffset)

	src := NewMemoryByteSource([]byte(data))
	x := newXRefEngine(src)
	if err := x.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	newer, ok := x.table.Get(ObjectId{Number: 4, Generation: 1})
	if !ok || newer.Kind() != InUse || newer.Offset() != 2000 {
		t.Fatalf("(4,1) = %+v, ok=%v", newer, ok)
	}
	older, ok := x.table.Get(ObjectId{Number: 4, Generation: 0})
	if !ok || older.Kind() != InUse || older.Offset() != 1000 {
		t.Fatalf("(4,0) = %+v, ok=%v", older, ok)
	}
	if x.RootID() != (ObjectId{Number: 9, Generation: 0}) {
		t.Fatalf("RootID() = %+v, want the appended trailer's Root", x.RootID())
	}
}

func TestXRefEngineXRefStream(t *testing.T) {
	header := "%PDF-1.4\n"

	// W = [1 2 1]: 1-byte type, 2-byte offset/next-free, 1-byte
	// generation/index field. Three records for objects 0, 1, 2.
	records := []byte{
		0, 0, 0, 0, // object 0: free, next-free 0, generation 0
		1, 0, 9, 0, // object 1: in-use at offset 9, generation 0
		1, 0, 74, 0, // object 2: in-use at offset 74, generation 0
	}
	objBody := fmt.Sprintf("<< /Type /XRef /W [1 2 1] /Index [0 3] /Size 3 /Root 1 0 R /Length %d >>\nstream\n",
		len(records))
	obj := "3 0 obj\n" + objBody + string(records) + "\nendstream\nendobj\n"

	xrefOffset := int64(len(header))
	data := header + obj + fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset)

	src := NewMemoryByteSource([]byte(data))
	x := newXRefEngine(src)
	if err := x.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	obj1, ok := x.table.Get(ObjectId{Number: 1, Generation: 0})
	if !ok || obj1.Kind() != InUse || obj1.Offset() != 9 {
		t.Fatalf("object (1,0) = %+v, ok=%v", obj1, ok)
	}
	obj2, ok := x.table.Get(ObjectId{Number: 2, Generation: 0})
	if !ok || obj2.Kind() != InUse || obj2.Offset() != 74 {
		t.Fatalf("object (2,0) = %+v, ok=%v", obj2, ok)
	}
	obj0, ok := x.table.Get(ObjectId{Number: 0})
	if !ok || obj0.Kind() != Free {
		t.Fatalf("object 0 = %+v, ok=%v", obj0, ok)
	}
}

func TestXRefEngineXRefStreamZeroWidthField(t *testing.T) {
	header := "%PDF-1.4\n"

	// W = [0 4 0]: type field omitted (defaults to 1, in-use);
	// generation field omitted (defaults to 0). Records carry only a
	// 4-byte big-endian offset.
	records := []byte{
		0, 0, 0, 9,
		0, 0, 0, 74,
	}
	objBody := fmt.Sprintf("<< /Type /XRef /W [0 4 0] /Index [1 2] /Size 3 /Root 1 0 R /Length %d >>\nstream\n",
		len(records))
	obj := "3 0 obj\n" + objBody + string(records) + "\nendstream\nendobj\n"

	xrefOffset := int64(len(header))
	data := header + obj + fmt.Sprintf("startxref\n%d\n%%%%EOF\n", xrefOffset)

	src := NewMemoryByteSource([]byte(data))
	x := newXRefEngine(src)
	if err := x.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	obj1, ok := x.table.Get(ObjectId{Number: 1, Generation: 0})
	if !ok || obj1.Kind() != InUse || obj1.Offset() != 9 {
		t.Fatalf("object (1,0) = %+v, ok=%v", obj1, ok)
	}
	obj2, ok := x.table.Get(ObjectId{Number: 2, Generation: 0})
	if !ok || obj2.Kind() != InUse || obj2.Offset() != 74 {
		t.Fatalf("object (2,0) = %+v, ok=%v", obj2, ok)
	}
}
