// Package opentype adapts seehuhn.de/go/sfnt's font reader to the
// pdf.StreamParser contract, used for FontFile2 (TrueType) and
// FontFile3 (OpenType/CFF, bare CFF) embedded font program streams.
//
// Grounded on seehuhn-go-pdf/font/truetype/cid.go, which calls
// sfnt.Read on the decoded stream body of an embedded font program.
package opentype

import (
	"bytes"

	"seehuhn.de/go/sfnt"
)

// Sink buffers a font program stream's decoded bytes and parses them
// with sfnt.Read once the stream is complete.
type Sink struct {
	buf    bytes.Buffer
	result *sfnt.Font
	err    error
}

// New returns a fresh Sink, suitable as the return value of a
// func() pdf.StreamParser factory.
func New() *Sink {
	return &Sink{}
}

func (s *Sink) Write(chunk []byte) (int, error) {
	s.buf.Write(chunk)
	return len(chunk), nil
}

func (s *Sink) Close() error {
	f, err := sfnt.Read(bytes.NewReader(s.buf.Bytes()))
	if err != nil {
		s.err = err
		return err
	}
	s.result = f
	return nil
}

// Result returns the parsed font, valid after Close returns a nil
// error.
func (s *Sink) Result() *sfnt.Font {
	return s.result
}

// Err returns the error from the most recent Close, if any.
func (s *Sink) Err() error {
	return s.err
}
