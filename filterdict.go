package pdf

import (
	"bytes"
	"errors"

	"codeberg.org/jvoss/streampdf/internal/filter/pipeline"
)

// filterChain extracts the ordered filter names and per-filter
// parameters named by a stream dictionary's /Filter and /DecodeParms
// entries (spec.md §4.4). /Filter may be a single Name or an Array of
// Names; /DecodeParms may be absent, a single Dict (which, per
// FilterPipeline.java, applies only to the first filter in the chain),
// or a parallel Array of Dicts (possibly containing Null entries for
// filters with no parameters).
func filterChain(dict Dict) ([]string, []pipeline.Params) {
	var names []string
	switch f := dict["Filter"].(type) {
	case Name:
		names = []string{string(f)}
	case Array:
		for _, v := range f {
			if n, ok := v.(Name); ok {
				names = append(names, string(n))
			}
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	var parmsList []Dict
	switch p := dict["DecodeParms"].(type) {
	case Dict:
		parmsList = []Dict{p}
	case Array:
		for _, v := range p {
			d, _ := v.(Dict)
			parmsList = append(parmsList, d)
		}
	}

	params := make([]pipeline.Params, len(names))
	for i, name := range names {
		params[i] = pipeline.Params{Name: name}
		var d Dict
		switch {
		case len(parmsList) == 1 && len(names) > 1:
			if i == 0 {
				d = parmsList[0]
			}
		case i < len(parmsList):
			d = parmsList[i]
		}
		if d != nil {
			params[i] = paramsFromDict(name, d)
		}
	}
	return names, params
}

func paramsFromDict(name string, d Dict) pipeline.Params {
	p := pipeline.Params{Name: name}
	if v, ok := d["Colors"].(Integer); ok {
		p.Colors = int(v)
	}
	if v, ok := d["BitsPerComponent"].(Integer); ok {
		p.BPC = int(v)
	}
	if v, ok := d["Columns"].(Integer); ok {
		p.Cols = int(v)
	}
	if v, ok := d["Predictor"].(Integer); ok {
		p.Pred = int(v)
	}
	if v, ok := d["EarlyChange"].(Integer); ok {
		p.Early = int(v)
		p.HasEC = true
	}
	return p
}

// bufferSink is a minimal pipeline.Sink that accumulates decoded bytes
// into a buffer, used wherever a stream's fully-decoded body must be
// read into memory before further parsing (cross-reference streams,
// object streams).
type bufferSink struct {
	buf *bytes.Buffer
}

func (s *bufferSink) StreamContent(chunk []byte) {
	s.buf.Write(chunk)
}

var _ pipeline.Sink = (*bufferSink)(nil)

// decodeStreamToBuffer builds the filter chain named by dict and drives
// it with ReadIndirectObject via the returned pipe factory, collecting
// the fully decoded body into buf.
func decodeStreamToBuffer(buf *bytes.Buffer) StreamPipeFactory {
	return func(dict Dict) (StreamPipe, error) {
		names, params := filterChain(dict)
		return pipeline.Build(names, params, &bufferSink{buf: buf}, nil, nil)
	}
}

// wrapFilterError recognizes a *pipeline.StageError crossing back from
// a StreamPipe's Write/Close into the pdf package and rewraps it as a
// [*FilterErrorInfo] (spec.md §7's error taxonomy), so a decoder-stage
// failure (a deflate data-format error, an invalid LZW code) is
// reported through the same taxonomy as every other parse error
// instead of leaking a raw filter-package error value. Errors that
// don't originate from a filter stage pass through unchanged.
func wrapFilterError(err error) error {
	var se *pipeline.StageError
	if errors.As(err, &se) {
		return FilterError(se.FilterName, se.Err.Error(), se.Err)
	}
	return err
}
