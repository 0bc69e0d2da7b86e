package pdf

import (
	"bytes"
	"testing"
)

func TestMemoryByteSourceReadSeekPeek(t *testing.T) {
	src := NewMemoryByteSource([]byte("abcdef"))

	if b, _ := src.Peek(); b != 'a' {
		t.Fatalf("Peek() = %c, want a", b)
	}
	if b, _ := src.PeekAt(2); b != 'c' {
		t.Fatalf("PeekAt(2) = %c, want c", b)
	}

	got, err := src.ReadExact(3)
	if err != nil || string(got) != "abc" {
		t.Fatalf("ReadExact(3) = %q, %v", got, err)
	}
	if src.Position() != 3 {
		t.Fatalf("Position() = %d, want 3", src.Position())
	}

	if err := src.Seek(0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	b, _ := src.ReadByte()
	if b != 'a' {
		t.Fatalf("ReadByte() after Seek(0) = %c, want a", b)
	}

	if err := src.Seek(6); err != nil {
		t.Fatalf("Seek(size): %v", err)
	}
	if b, _ := src.Peek(); b != -1 {
		t.Fatalf("Peek() at end = %d, want -1", b)
	}
}

func TestMemoryByteSourceReadExactTruncated(t *testing.T) {
	src := NewMemoryByteSource([]byte("ab"))
	if _, err := src.ReadExact(3); err == nil {
		t.Fatal("expected a truncation error")
	} else if _, ok := err.(*TruncatedError); !ok {
		t.Fatalf("expected *TruncatedError, got %T: %v", err, err)
	}
}

func TestFileByteSourceWindowedReadAndReseek(t *testing.T) {
	// Build a payload longer than one 8 KiB window to exercise refill.
	payload := bytes.Repeat([]byte("0123456789"), windowSize/5)
	src, err := NewFileByteSource(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		t.Fatalf("NewFileByteSource: %v", err)
	}

	got, err := src.ReadExact(10)
	if err != nil || string(got) != "0123456789" {
		t.Fatalf("ReadExact(10) = %q, %v", got, err)
	}

	// Seek far past the first window and read again; this must force a
	// refill rather than silently return stale bytes.
	far := int64(len(payload) - 10)
	if err := src.Seek(far); err != nil {
		t.Fatalf("Seek(far): %v", err)
	}
	got, err = src.ReadExact(10)
	if err != nil || string(got) != string(payload[far:far+10]) {
		t.Fatalf("ReadExact(10) after far seek = %q, %v", got, err)
	}

	// Seek back within the same already-buffered window: Position must
	// reflect the new location without error.
	if err := src.Seek(far); err != nil {
		t.Fatalf("re-seek: %v", err)
	}
	if src.Position() != far {
		t.Fatalf("Position() = %d, want %d", src.Position(), far)
	}
}

func TestFileByteSourcePeekAtEndOfSource(t *testing.T) {
	src, err := NewFileByteSource(bytes.NewReader([]byte("xy")), 2)
	if err != nil {
		t.Fatalf("NewFileByteSource: %v", err)
	}
	if err := src.Seek(2); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if b, err := src.Peek(); err != nil || b != -1 {
		t.Fatalf("Peek() at EOF = %d, %v; want -1, nil", b, err)
	}
}
