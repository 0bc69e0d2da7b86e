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

// Package lzw decodes the PDF LZWDecode stream filter.
//
// The PDF variant uses variable-length codes starting at 9 bits and
// growing to 12 bits, with a clear-table code (256) and an end-of-data
// code (257), exactly as described in ISO 32000-1 section 7.4.4.
package lzw

import (
	"errors"
	"io"
)

const (
	clearTable       = 256
	endOfData        = 257
	initialCodeWidth = 9
	maxCodeWidth     = 12
	maxTableSize     = 4096
)

// Decode returns a ReadCloser that decodes LZW-compressed data read from r.
//
// earlyChange controls whether the code width increases one code early,
// matching the stream's /EarlyChange parameter (default true in PDF).
func Decode(r io.Reader, earlyChange bool) io.ReadCloser {
	d := &reader{
		r:           r,
		earlyChange: earlyChange,
	}
	d.initTable()
	return d
}

type reader struct {
	r           io.Reader
	earlyChange bool
	err         error

	table     [][]byte
	codeWidth int
	nextCode  int
	prev      []byte
	ended     bool

	bitBuf  uint32
	bitCnt  int
	inByte  [1]byte
	pending []byte
}

func (d *reader) initTable() {
	d.table = make([][]byte, maxTableSize)
	for i := 0; i < 256; i++ {
		d.table[i] = []byte{byte(i)}
	}
	d.nextCode = endOfData + 1
	d.codeWidth = initialCodeWidth
	d.prev = nil
}

func (d *reader) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(d.pending) == 0 {
		if d.err != nil {
			return 0, d.err
		}
		if d.ended {
			d.err = io.EOF
			return 0, d.err
		}
		if err := d.step(); err != nil {
			d.err = err
			if len(d.pending) == 0 {
				return 0, err
			}
			break
		}
	}
	n = copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// step reads one code from the bit stream and, if it decodes to an output
// sequence, appends it to d.pending.
func (d *reader) step() error {
	code, err := d.readCode()
	if err != nil {
		return err
	}

	if code == endOfData {
		d.ended = true
		return nil
	}
	if code == clearTable {
		d.initTable()
		return nil
	}

	var sequence []byte
	switch {
	case code < d.nextCode:
		sequence = d.table[code]
		if sequence == nil {
			return errors.New("lzw: invalid code")
		}
	case code == d.nextCode && d.prev != nil:
		sequence = append(append([]byte(nil), d.prev...), d.prev[0])
	default:
		return errors.New("lzw: invalid code")
	}

	d.pending = append(d.pending, sequence...)

	if d.prev != nil && d.nextCode < maxTableSize {
		entry := append(append([]byte(nil), d.prev...), sequence[0])
		d.table[d.nextCode] = entry
		d.nextCode++

		threshold := d.nextCode
		if d.earlyChange {
			threshold++
		}
		if threshold >= 1<<d.codeWidth && d.codeWidth < maxCodeWidth {
			d.codeWidth++
		}
	}

	d.prev = sequence
	return nil
}

func (d *reader) readCode() (int, error) {
	for d.bitCnt < d.codeWidth {
		_, err := io.ReadFull(d.r, d.inByte[:])
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}
		d.bitBuf = d.bitBuf<<8 | uint32(d.inByte[0])
		d.bitCnt += 8
	}
	code := int(d.bitBuf>>uint(d.bitCnt-d.codeWidth)) & (1<<d.codeWidth - 1)
	d.bitCnt -= d.codeWidth
	return code, nil
}

// Close is a no-op.
func (d *reader) Close() error {
	return nil
}
