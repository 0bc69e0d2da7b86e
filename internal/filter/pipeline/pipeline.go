// Package pipeline builds and drives the ordered chain of stream
// filters described in spec.md §4.4: zero or more decoders (Flate,
// LZW, ASCIIHex, ASCII85, RunLength) feeding a terminal dispatcher that
// tees decoded bytes to the document sink and, when present, a
// specialized sub-parser.
//
// Grounded on original_source/.../FilterPipeline.java (chain
// construction from /Filter + /DecodeParms, built in reverse order)
// and original_source/.../StreamDispatcher.java (carry-over buffering
// for a sub-parser that cannot consume a whole chunk).
package pipeline

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"codeberg.org/jvoss/streampdf/internal/filter/ascii85"
	"codeberg.org/jvoss/streampdf/internal/filter/asciihex"
	"codeberg.org/jvoss/streampdf/internal/filter/lzw"
	"codeberg.org/jvoss/streampdf/internal/filter/predict"
	"codeberg.org/jvoss/streampdf/internal/filter/runlength"
)

// StageError reports a decoder-specific failure tagged with the name of
// the filter stage that produced it (a deflate data-format error, an
// invalid LZW code, and similar). This package cannot itself construct
// the root package's FilterErrorInfo (that would be an import cycle);
// callers at the pipeline boundary — where a StreamPipe's Write/Close
// error crosses back into the pdf package — recognize a *StageError via
// errors.As and rewrap it into their own error taxonomy.
type StageError struct {
	FilterName string
	Err        error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.FilterName, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// taggedStageError wraps err with name, unless it is nil or already a
// *StageError from a downstream stage (which already names its own
// origin and should not be re-tagged with an unrelated name).
func taggedStageError(name string, err error) error {
	if err == nil {
		return nil
	}
	if se, ok := err.(*StageError); ok {
		return se
	}
	return &StageError{FilterName: name, Err: err}
}

// Params mirrors the subset of a stream dictionary relevant to
// filter construction: the abbreviated or spelled-out filter name and
// its decode parameters. Callers supply one Params per filter name, in
// the order named by /Filter.
type Params struct {
	Name   string
	Colors int
	BPC    int // BitsPerComponent
	Cols   int // Columns
	Pred   int // Predictor
	Early  int // EarlyChange, default 1
	HasEC  bool
}

// Sink is the terminal receiver of decoded bytes: the document sink's
// stream_content event plus, optionally, a specialized sub-parser and
// an object-stream byte collector. It is a minimal capability set so
// the pipeline package need not import the root pdf package.
type Sink interface {
	// StreamContent delivers a duplicate view of decoded bytes; the
	// sink must copy if it retains them.
	StreamContent(chunk []byte)
}

// SubParser matches pdf.StreamParser without importing the root
// package (which in turn would import this one for stream decoding).
type SubParser interface {
	Write(chunk []byte) (consumed int, err error)
	Close() error
}

// Pipeline is a constructed chain of filters plus the terminal
// dispatcher. Raw encoded bytes are written to Pipeline via Write;
// Close flushes every stage in turn.
type Pipeline struct {
	head io.WriteCloser
}

// dispatcher is the terminal consumer: it always forwards decoded bytes
// to sink.StreamContent, and, when a SubParser is attached, feeds it
// with carry-over buffering of any unconsumed suffix. When collect is
// non-nil (the stream dictionary declared /Type /ObjStm), the full
// decoded body is also accumulated there (the "object-stream tee").
type dispatcher struct {
	sink    Sink
	parser  SubParser
	pending []byte
	collect *bytes.Buffer
}

func (d *dispatcher) Write(p []byte) (int, error) {
	d.sink.StreamContent(p)
	if d.collect != nil {
		d.collect.Write(p)
	}
	if d.parser == nil {
		return len(p), nil
	}
	return len(p), d.feedParser(p)
}

func (d *dispatcher) feedParser(newData []byte) error {
	var toProcess []byte
	if len(d.pending) > 0 {
		toProcess = append(d.pending, newData...)
		d.pending = nil
	} else {
		toProcess = newData
	}
	for len(toProcess) > 0 {
		consumed, err := d.parser.Write(toProcess)
		if err != nil {
			return err
		}
		if consumed == 0 {
			break
		}
		toProcess = toProcess[consumed:]
	}
	if len(toProcess) > 0 {
		d.pending = append([]byte(nil), toProcess...)
	}
	return nil
}

func (d *dispatcher) Close() error {
	if d.parser != nil {
		if len(d.pending) > 0 {
			if _, err := d.parser.Write(d.pending); err != nil {
				return err
			}
			d.pending = nil
		}
		return d.parser.Close()
	}
	return nil
}

// Build constructs a Pipeline from the stream dictionary's filter
// names (already resolved from /Filter, spelled out or abbreviated,
// outermost first) and per-filter parameters. sink receives decoded
// bytes; subParser, if non-nil, additionally receives them with
// carry-over buffering; collect, if non-nil, receives the full decoded
// body (the object-stream tee, used when /Type /ObjStm).
//
// Filters are built in reverse order so each filter's downstream
// receiver is already constructed, per FilterPipeline.java. Unknown
// filter names are skipped: bytes pass through unchanged.
func Build(names []string, params []Params, sink Sink, subParser SubParser, collect *bytes.Buffer) (*Pipeline, error) {
	term := &dispatcher{sink: sink, parser: subParser, collect: collect}
	var current io.WriteCloser = term

	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]
		var p Params
		if i < len(params) {
			p = params[i]
		}
		next, err := wrap(name, p, current)
		if err != nil {
			return nil, err
		}
		if next != nil {
			current = next
		}
		// unrecognized filter: pass through unchanged, current stays as-is
	}

	return &Pipeline{head: current}, nil
}

func (p *Pipeline) Write(chunk []byte) error {
	_, err := p.head.Write(chunk)
	return err
}

func (p *Pipeline) Close() error {
	return p.head.Close()
}

// wrap constructs the single stage for name, downstream of next, or
// returns (nil, nil) if name is not a recognized filter (it should then
// be skipped, per spec.md §4.4's "unknown filters are skipped").
func wrap(name string, p Params, next io.WriteCloser) (io.WriteCloser, error) {
	switch name {
	case "FlateDecode", "Fl":
		return newFlateStage(name, p, next)
	case "ASCIIHexDecode", "AHx":
		return newPipeStage(name, asciihex.Decode, next), nil
	case "ASCII85Decode", "A85":
		return newPipeStage(name, ascii85.Decode, next), nil
	case "LZWDecode", "LZW":
		early := p.Early != 0
		if !p.HasEC {
			early = true
		}
		return newPipeStage(name, func(r io.Reader) io.ReadCloser { return lzw.Decode(r, early) }, next), nil
	case "RunLengthDecode", "RL":
		return newPipeStage(name, runlength.Decode, next), nil
	default:
		return nil, nil
	}
}

// pipeStage adapts a decode function of the shape func(io.Reader)
// io.ReadCloser into a push-style io.WriteCloser stage: writes are fed
// into an internal pipe, and the decoded output is pumped to next in a
// goroutine, so each filter can "tolerate incremental input at any
// byte boundary" as spec.md §4.4 requires without buffering the whole
// stream in memory.
type pipeStage struct {
	pw   *io.PipeWriter
	done chan error
}

func newPipeStage(name string, decode func(io.Reader) io.ReadCloser, next io.WriteCloser) *pipeStage {
	pr, pw := io.Pipe()
	s := &pipeStage{pw: pw, done: make(chan error, 1)}
	dec := decode(pr)
	go func() {
		buf := make([]byte, 8192)
		for {
			n, err := dec.Read(buf)
			if n > 0 {
				if _, werr := next.Write(buf[:n]); werr != nil {
					pr.CloseWithError(werr)
					s.done <- werr
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					s.done <- next.Close()
				} else {
					s.done <- taggedStageError(name, err)
				}
				return
			}
		}
	}()
	return s
}

func (s *pipeStage) Write(p []byte) (int, error) {
	return s.pw.Write(p)
}

func (s *pipeStage) Close() error {
	s.pw.Close()
	return <-s.done
}

// flateStage wraps compress/zlib with the PNG/TIFF predictor
// post-processing stage, honoring the Columns/Colors/BitsPerComponent/
// Predictor parameters (spec.md §4.4's predictor details).
func newFlateStage(name string, p Params, next io.WriteCloser) (io.WriteCloser, error) {
	decode := func(r io.Reader) io.ReadCloser {
		zr, err := zlib.NewReader(r)
		if err != nil {
			return errReadCloser{err}
		}
		if p.Pred == 0 || p.Pred == 1 {
			return zr
		}
		pp := &predict.Params{Colors: p.Colors, BitsPerComponent: p.BPC, Columns: p.Cols, Predictor: p.Pred}
		if pp.Colors == 0 {
			pp.Colors = 1
		}
		if pp.BitsPerComponent == 0 {
			pp.BitsPerComponent = 8
		}
		if pp.Columns == 0 {
			pp.Columns = 1
		}
		rc, err := predict.NewReader(zr, pp)
		if err != nil {
			return errReadCloser{err}
		}
		return rc
	}
	return newPipeStage(name, decode, next), nil
}

type errReadCloser struct{ err error }

func (e errReadCloser) Read([]byte) (int, error) { return 0, e.err }
func (e errReadCloser) Close() error             { return nil }
