// Package cmap adapts seehuhn.de/go/postscript's CMap reader to the
// pdf.StreamParser contract, so a decoded ToUnicode (or other embedded)
// CMap stream can be parsed as soon as its bytes are fully delivered.
//
// Grounded on seehuhn-go-pdf/font/cmap/tu-read.go, which calls
// postscript.ReadCMap on the decoded stream body of a ToUnicode CMap.
package cmap

import (
	"bytes"

	"seehuhn.de/go/postscript"
)

// Sink buffers a CMap stream's decoded bytes and parses them with
// postscript.ReadCMap once the stream is complete. A Sink is single use:
// construct one per stream via a factory passed to
// pdf.Parser.SetCMapSinkFactory.
type Sink struct {
	buf    bytes.Buffer
	result postscript.Dict
	err    error
}

// New returns a fresh Sink, suitable as the return value of a
// func() pdf.StreamParser factory.
func New() *Sink {
	return &Sink{}
}

// Write accumulates chunk; the CMap grammar is not resumable mid-stream,
// so nothing is parsed until Close.
func (s *Sink) Write(chunk []byte) (int, error) {
	s.buf.Write(chunk)
	return len(chunk), nil
}

// Close parses the accumulated bytes as a PostScript CMap. The result is
// available afterwards via Result.
func (s *Sink) Close() error {
	d, err := postscript.ReadCMap(bytes.NewReader(s.buf.Bytes()))
	if err != nil {
		s.err = err
		return err
	}
	s.result = d
	return nil
}

// Result returns the parsed CMap dictionary, valid after Close returns a
// nil error.
func (s *Sink) Result() postscript.Dict {
	return s.result
}

// Err returns the error from the most recent Close, if any.
func (s *Sink) Err() error {
	return s.err
}
