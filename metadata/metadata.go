// Package metadata adapts seehuhn.de/go/xmp's packet reader to the
// pdf.StreamParser contract, used for /Metadata (XMP) streams.
//
// Grounded on seehuhn-go-pdf/metadata/metadata.go, which calls xmp.Read
// on the decoded stream body of a Metadata stream.
package metadata

import (
	"bytes"

	"seehuhn.de/go/xmp"
)

// Sink buffers an XMP metadata stream's decoded bytes and parses them
// with xmp.Read once the stream is complete.
type Sink struct {
	buf    bytes.Buffer
	result *xmp.Packet
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
	p, err := xmp.Read(bytes.NewReader(s.buf.Bytes()))
	if err != nil {
		s.err = err
		return err
	}
	s.result = p
	return nil
}

// Result returns the parsed XMP packet, valid after Close returns a nil
// error.
func (s *Sink) Result() *xmp.Packet {
	return s.result
}

// Err returns the error from the most recent Close, if any.
func (s *Sink) Err() error {
	return s.err
}
