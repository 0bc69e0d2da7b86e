// seehuhn.de/go/pdf - a library for reading and writing PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package predict

import (
	"bytes"
	"io"
	"testing"
)

type nopCloser struct{ io.Reader }

func (nopCloser) Close() error { return nil }

func TestNewReaderNoPrediction(t *testing.T) {
	data := []byte("hello, world")
	r, err := NewReader(nopCloser{bytes.NewReader(data)}, &Params{Predictor: 1})
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}
}

func TestNewReaderPNGUp(t *testing.T) {
	// Two 2-byte rows, 1 color component, 8 bits per component.
	// Row 1: filter byte 2 (Up), raw bytes {10, 20}; previous row is
	// all zero, so the decoded row is {10, 20}.
	// Row 2: filter byte 2 (Up), raw bytes {1, 1}; decoded row adds the
	// previous decoded row: {11, 21}.
	encoded := []byte{
		2, 10, 20,
		2, 1, 1,
	}
	p := &Params{Colors: 1, BitsPerComponent: 8, Columns: 2, Predictor: 12}
	r, err := NewReader(nopCloser{bytes.NewReader(encoded)}, p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{10, 20, 11, 21}
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNewReaderInvalidParams(t *testing.T) {
	p := &Params{Colors: 1, BitsPerComponent: 3, Columns: 2, Predictor: 12}
	_, err := NewReader(nopCloser{bytes.NewReader(nil)}, p)
	if err == nil {
		t.Error("expected validation error for BitsPerComponent=3")
	}
}
