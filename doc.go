// Package pdf implements a streaming, event-driven parser for the
// Portable Document Format.
//
// The parser exposes a push-based contract: as lexical and structural
// constructs are recognized, typed events are delivered to an
// application-supplied [DocumentSink]. No document tree is built or
// retained by the core; callers materialize only what they need from
// the event stream.
//
//	f, err := os.Open("in.pdf")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer f.Close()
//
//	fi, err := f.Stat()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	src, err := NewFileByteSource(f, fi.Size())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p := New(sink)
//	if err := p.Parse(src); err != nil {
//	    log.Fatal(err)
//	}
//
// A [Parser] may instead be driven in pull mode via [Parser.Load] and
// repeated calls to [Parser.ParseObject], resolving only the objects the
// caller asks for.
//
// This package performs no rendering, layout, or graphics-state
// evaluation, no encryption or signature validation, and writes no PDF
// files: it only reads.
package pdf
