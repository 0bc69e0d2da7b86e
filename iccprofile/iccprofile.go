// Package iccprofile adapts seehuhn.de/go/icc's profile decoder to the
// pdf.StreamParser contract, used for ICCBased color space stream
// bodies.
//
// Grounded on seehuhn-go-pdf/graphics/color/icc.go, which calls
// icc.Decode on the raw bytes of an ICC profile stream.
package iccprofile

import (
	"bytes"

	"seehuhn.de/go/icc"
)

// Sink buffers an ICC profile stream's decoded bytes and decodes them
// with icc.Decode once the stream is complete.
type Sink struct {
	buf    bytes.Buffer
	result *icc.Profile
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
	p, err := icc.Decode(s.buf.Bytes())
	if err != nil {
		s.err = err
		return err
	}
	s.result = p
	return nil
}

// Result returns the decoded profile, valid after Close returns a nil
// error.
func (s *Sink) Result() *icc.Profile {
	return s.result
}

// Err returns the error from the most recent Close, if any.
func (s *Sink) Err() error {
	return s.err
}
