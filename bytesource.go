package pdf

import (
	"io"
)

// windowSize is the size of the chunk-buffered read window, per spec.md §4.1.
const windowSize = 8 * 1024

// ByteSource is a seekable, chunk-buffered byte reader over a
// random-access source (a file or an in-memory slice).
//
// ByteSource implementations are not safe for concurrent use; a parser
// owns its byte source exclusively while a call is in flight (spec.md §5).
type ByteSource interface {
	// Seek sets the absolute read position and refills the window.
	Seek(offset int64) error
	// ReadByte advances and returns the next byte, or -1 at end of source.
	ReadByte() (int, error)
	// Peek inspects the next byte without advancing, or -1 at end of source.
	Peek() (int, error)
	// PeekAt inspects the byte delta positions ahead of the current
	// position without advancing, or -1 if that position is past the end.
	PeekAt(delta int) (int, error)
	// ReadExact reads exactly n bytes, advancing the position. It fails
	// with a *TruncatedError if fewer than n bytes remain.
	ReadExact(n int) ([]byte, error)
	// Position reports the current absolute offset.
	Position() int64
	// Size reports the total length of the underlying source.
	Size() int64
}

// fileByteSource is a ByteSource backed by an io.ReaderAt (typically an
// *os.File), buffering an 8 KiB window, grounded on the teacher's
// scanner.go refill/Peek/Discard buffering scheme.
type fileByteSource struct {
	r    io.ReaderAt
	size int64

	buf     []byte // window contents
	bufBase int64  // absolute offset of buf[0]
	cursor  int    // index into buf of the current position
}

// NewFileByteSource wraps r (of total length size) as a ByteSource.
func NewFileByteSource(r io.ReaderAt, size int64) (ByteSource, error) {
	s := &fileByteSource{r: r, size: size}
	if err := s.Seek(0); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *fileByteSource) Seek(offset int64) error {
	if offset < 0 {
		return Malformed(offset, "negative seek offset")
	}
	if offset >= s.bufBase && offset-s.bufBase <= int64(len(s.buf)) {
		// target already within the buffered window: O(1) reposition,
		// grounded on the teacher's scanner.go Peek/Discard fast path.
		s.cursor = int(offset - s.bufBase)
		return nil
	}
	s.bufBase = offset
	s.cursor = 0
	return s.refill()
}

func (s *fileByteSource) refill() error {
	if s.bufBase >= s.size {
		s.buf = nil
		return nil
	}
	n := windowSize
	if remaining := s.size - s.bufBase; remaining < int64(n) {
		n = int(remaining)
	}
	buf := make([]byte, n)
	read, err := s.r.ReadAt(buf, s.bufBase)
	if err != nil && err != io.EOF {
		return Io(err)
	}
	s.buf = buf[:read]
	return nil
}

// ensure makes sure that index cursor+delta is either available in buf,
// or that position is genuinely past the end of the source.
func (s *fileByteSource) ensure(delta int) error {
	for {
		if s.cursor+delta < len(s.buf) {
			return nil
		}
		if s.bufBase+int64(s.cursor)+int64(delta) >= s.size {
			return nil
		}
		s.bufBase += int64(s.cursor)
		s.cursor = 0
		if err := s.refill(); err != nil {
			return err
		}
		if len(s.buf) == 0 {
			return nil
		}
	}
}

func (s *fileByteSource) ReadByte() (int, error) {
	if err := s.ensure(0); err != nil {
		return 0, err
	}
	if s.cursor >= len(s.buf) {
		return -1, nil
	}
	b := s.buf[s.cursor]
	s.cursor++
	return int(b), nil
}

func (s *fileByteSource) Peek() (int, error) {
	return s.PeekAt(0)
}

func (s *fileByteSource) PeekAt(delta int) (int, error) {
	if err := s.ensure(delta); err != nil {
		return 0, err
	}
	if s.cursor+delta >= len(s.buf) {
		return -1, nil
	}
	return int(s.buf[s.cursor+delta]), nil
}

func (s *fileByteSource) ReadExact(n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		b, err := s.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == -1 {
			return nil, Truncated(s.Position())
		}
		out = append(out, byte(b))
	}
	return out, nil
}

func (s *fileByteSource) Position() int64 {
	return s.bufBase + int64(s.cursor)
}

func (s *fileByteSource) Size() int64 { return s.size }

// memoryByteSource is a ByteSource over an in-memory byte slice, used
// by the ObjectStreamCache to parse objects out of a decoded object
// stream without touching the file (spec.md §4.1, §4.7).
type memoryByteSource struct {
	data []byte
	pos  int64
}

// NewMemoryByteSource wraps data as a ByteSource with the same
// semantics as the file-backed implementation.
func NewMemoryByteSource(data []byte) ByteSource {
	return &memoryByteSource{data: data}
}

func (s *memoryByteSource) Seek(offset int64) error {
	if offset < 0 {
		return Malformed(offset, "negative seek offset")
	}
	s.pos = offset
	return nil
}

func (s *memoryByteSource) ReadByte() (int, error) {
	b, err := s.Peek()
	if err != nil || b == -1 {
		return b, err
	}
	s.pos++
	return b, nil
}

func (s *memoryByteSource) Peek() (int, error) {
	return s.PeekAt(0)
}

func (s *memoryByteSource) PeekAt(delta int) (int, error) {
	i := s.pos + int64(delta)
	if i < 0 || i >= int64(len(s.data)) {
		return -1, nil
	}
	return int(s.data[i]), nil
}

func (s *memoryByteSource) ReadExact(n int) ([]byte, error) {
	if s.pos+int64(n) > int64(len(s.data)) {
		return nil, Truncated(s.pos)
	}
	out := s.data[s.pos : s.pos+int64(n)]
	s.pos += int64(n)
	return append([]byte(nil), out...), nil
}

func (s *memoryByteSource) Position() int64 { return s.pos }
func (s *memoryByteSource) Size() int64     { return int64(len(s.data)) }
