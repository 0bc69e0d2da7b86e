package pdf

import (
	"bytes"

	"codeberg.org/jvoss/streampdf/internal/filter/pipeline"
)

// objectStreamCacheCapacity bounds how many decoded object streams are
// retained at once (spec.md Non-goal #4: "a small, bounded cache").
const objectStreamCacheCapacity = 16

// referenceContext decorates an application-provided DocumentSink while
// a single object (or the synthetic trailer) is being parsed, tracking
// current_key and current_object_type so that an about-to-be-emitted
// object_reference can be tagged with its inferred StreamType (spec.md
// §4.6) before being forwarded to the real sink. Each call to visit an
// object gets its own referenceContext, so nested reentrant
// parse_object calls never clobber an outer call's context — the
// "saved and restored traversal context" spec.md §5 requires falls out
// of that locality rather than needing explicit save/restore code.
type referenceContext struct {
	DocumentSink
	currentKey        Name
	currentObjectType Name
	onReference       func(id ObjectId, inferred StreamType)
}

func (c *referenceContext) Key(name Name) {
	c.currentKey = name
	c.DocumentSink.Key(name)
}

func (c *referenceContext) NameValue(n Name) {
	if c.currentKey == "Type" {
		c.currentObjectType = n
	}
	c.DocumentSink.NameValue(n)
}

func (c *referenceContext) ObjectReference(id ObjectId) {
	if c.onReference != nil {
		c.onReference(id, inferStreamType(c.currentKey, c.currentObjectType))
	}
	c.DocumentSink.ObjectReference(id)
}

var _ pipeline.Sink = (*referenceContext)(nil)

// inferStreamType implements the stream-type inference table of
// spec.md §4.6.
func inferStreamType(key, objType Name) StreamType {
	switch key {
	case "Contents":
		if objType == "Page" || objType == "XObject" {
			return ContentStream
		}
		return DefaultStream
	case "ToUnicode":
		return CMapStream
	case "Metadata":
		return MetadataStream
	case "FontFile":
		return FontType1Stream
	case "FontFile2":
		return FontTrueTypeStream
	case "FontFile3":
		return FontCFFStream
	default:
		return DefaultStream
	}
}

type queueItem struct {
	id       ObjectId
	expected StreamType
}

type subParserFactories struct {
	content    func() StreamParser
	openType   func() StreamParser
	cmap       func() StreamParser
	metadata   func() StreamParser
	iccProfile func() StreamParser
}

// TraversalController drives either a push-style full walk from the
// catalog or a pull-style on-demand resolution, inferring the semantic
// type of each referenced stream (spec.md §4.6).
type TraversalController struct {
	src   ByteSource
	lexer *Lexer
	xref  *xrefEngine
	objs  *objectStreamCache
	sink  DocumentSink

	visited map[ObjectId]bool
	queued  map[ObjectId]bool
	queue   []queueItem
	pending map[ObjectId]StreamType

	resolving map[ObjectId]bool

	factories subParserFactories
}

// NewTraversalController constructs a controller over src, delivering
// push-traversal events to sink (pull-traversal events go to whatever
// sink ParseObject is called with).
func NewTraversalController(src ByteSource, sink DocumentSink) *TraversalController {
	tc := &TraversalController{
		src:     src,
		lexer:   NewLexer(src),
		sink:    sink,
		visited: make(map[ObjectId]bool),
		queued:  make(map[ObjectId]bool),
		pending: make(map[ObjectId]StreamType),
	}
	wirePositioner(sink, src)
	return tc
}

// sourcePositioner implements Positioner directly over a ByteSource's
// cursor (SPEC_FULL.md §D.1).
type sourcePositioner struct{ src ByteSource }

func (p sourcePositioner) Locator() int64 { return p.src.Position() }

// wirePositioner hands sink a Positioner over src if sink has asked for
// one by implementing PositionAware.
func wirePositioner(sink DocumentSink, src ByteSource) {
	if pa, ok := sink.(PositionAware); ok {
		pa.SetPositioner(sourcePositioner{src: src})
	}
}

func (tc *TraversalController) SetContentSinkFactory(f func() StreamParser)    { tc.factories.content = f }
func (tc *TraversalController) SetOpenTypeSinkFactory(f func() StreamParser)   { tc.factories.openType = f }
func (tc *TraversalController) SetCMapSinkFactory(f func() StreamParser)      { tc.factories.cmap = f }
func (tc *TraversalController) SetMetadataSinkFactory(f func() StreamParser)  { tc.factories.metadata = f }
func (tc *TraversalController) SetICCProfileSinkFactory(f func() StreamParser) {
	tc.factories.iccProfile = f
}

// Load populates the cross-reference table and trailer without
// emitting any body events (spec.md §4.6 "pull traversal").
func (tc *TraversalController) Load() error {
	tc.xref = newXRefEngine(tc.src)
	if err := tc.xref.Load(); err != nil {
		return err
	}
	tc.objs = newObjectStreamCache(tc.src, tc.xref.table, tc, objectStreamCacheCapacity)
	return nil
}

// CatalogID returns trailer[/Root], available after Load.
func (tc *TraversalController) CatalogID() ObjectId {
	if ref, ok := tc.xref.Trailer()["Root"].(Reference); ok {
		return ObjectId(ref)
	}
	return ObjectId{}
}

// Trailer returns the merged trailer dictionary, available after Load.
func (tc *TraversalController) Trailer() Dict { return tc.xref.Trailer() }

// CrossReferenceTable returns the merged cross-reference table.
func (tc *TraversalController) CrossReferenceTable() *CrossReferenceTable { return tc.xref.table }

// Parse performs the push traversal (spec.md §4.6): load xref/trailer,
// emit the synthetic trailer object, enqueue /Root and /Info, then
// drain the queue in breadth-first discovery order.
func (tc *TraversalController) Parse() error {
	if tc.xref == nil {
		if err := tc.Load(); err != nil {
			return err
		}
	}
	if err := tc.emitTrailerObject(); err != nil {
		return err
	}

	trailer := tc.xref.Trailer()
	if ref, ok := trailer["Root"].(Reference); ok {
		tc.enqueue(ObjectId(ref), DefaultStream)
	}
	if ref, ok := trailer["Info"].(Reference); ok {
		tc.enqueue(ObjectId(ref), DefaultStream)
	}

	for len(tc.queue) > 0 {
		item := tc.queue[0]
		tc.queue = tc.queue[1:]
		delete(tc.queued, item.id)
		if tc.visited[item.id] {
			continue
		}
		tc.visited[item.id] = true
		if err := tc.visit(item.id, item.expected); err != nil {
			return err
		}
		tc.drainPending()
	}
	return nil
}

// emitTrailerObject replays the trailer dictionary directly from its
// source location into the document sink, bracketed as a synthetic
// object — (0,0) for a legacy trailer, or the xref stream's own id
// (spec.md §4.6's root_dictionary_id). Re-seeking and re-parsing from
// source (rather than replaying a previously captured Dict) preserves
// exact source key order, the same two-pass pattern ReadIndirectObject
// uses for /Length resolution.
func (tc *TraversalController) emitTrailerObject() error {
	x := tc.xref

	if x.trailerIsStream {
		if err := tc.src.Seek(x.trailerObjectOffset); err != nil {
			return err
		}
		tc.visited[x.trailerObjectID] = true
		refCtx := tc.newReferenceContext(tc.sink, tc.recordPending)
		pipeFor := tc.pipeFactoryFor(XRefStreamType, refCtx)
		_, err := tc.lexer.ReadIndirectObject(refCtx, tc, pipeFor)
		if err != nil {
			return err
		}
		tc.drainPending()
		return nil
	}

	if err := tc.src.Seek(x.trailerDictOffset); err != nil {
		return err
	}
	refCtx := tc.newReferenceContext(tc.sink, tc.recordPending)
	refCtx.StartObject(ObjectId{})
	if err := tc.lexer.readDict(refCtx); err != nil {
		return err
	}
	refCtx.EndObject()
	tc.drainPending()
	return nil
}

func (tc *TraversalController) recordPending(id ObjectId, inferred StreamType) {
	tc.pending[id] = inferred
}

func (tc *TraversalController) drainPending() {
	for id, typ := range tc.pending {
		if !tc.visited[id] {
			tc.enqueue(id, typ)
		}
	}
	tc.pending = make(map[ObjectId]StreamType)
}

func (tc *TraversalController) enqueue(id ObjectId, expected StreamType) {
	if tc.visited[id] || tc.queued[id] {
		return
	}
	tc.queued[id] = true
	tc.queue = append(tc.queue, queueItem{id: id, expected: expected})
}

// visit resolves id's cross-reference entry and parses it: InUse seeks
// and runs the Lexer, Compressed resolves the container via the
// ObjectStreamCache, and an unknown (absent or free) entry is skipped
// (spec.md §4.6 step 4).
func (tc *TraversalController) visit(id ObjectId, expected StreamType) error {
	entry, ok := tc.xref.table.Get(id)
	if !ok || entry.Kind() == Free {
		return nil
	}

	switch entry.Kind() {
	case InUse:
		if err := tc.src.Seek(entry.Offset()); err != nil {
			return err
		}
		refCtx := tc.newReferenceContext(tc.sink, tc.recordPending)
		pipeFor := tc.pipeFactoryFor(expected, refCtx)
		objID, err := tc.lexer.ReadIndirectObject(refCtx, tc, pipeFor)
		if err != nil {
			return err
		}
		if objID != id {
			return InconsistentObject(id, objID)
		}
		return nil
	case Compressed:
		refCtx := tc.newReferenceContext(tc.sink, tc.recordPending)
		_, err := tc.objs.ParseObject(entry.ContainerObjectNumber(), entry.IndexWithinContainer(), refCtx)
		return err
	default:
		return nil
	}
}

// ParseObject implements pull traversal (spec.md §4.6): sink
// temporarily becomes the active document sink for exactly one
// object's events; references inside it are forwarded to sink as plain
// object_reference events (not queued) so the caller can chase them
// selectively.
func (tc *TraversalController) ParseObject(id ObjectId, sink DocumentSink) error {
	wirePositioner(sink, tc.src)

	savedSink := tc.sink
	tc.sink = sink
	defer func() { tc.sink = savedSink }()

	entry, ok := tc.xref.table.Get(id)
	if !ok || entry.Kind() == Free {
		return UnresolvedReference(id)
	}

	switch entry.Kind() {
	case InUse:
		if err := tc.src.Seek(entry.Offset()); err != nil {
			return err
		}
		refCtx := tc.newReferenceContext(sink, nil)
		pipeFor := tc.pipeFactoryFor(DefaultStream, refCtx)
		_, err := tc.lexer.ReadIndirectObject(refCtx, tc, pipeFor)
		return err
	case Compressed:
		refCtx := tc.newReferenceContext(sink, nil)
		_, err := tc.objs.ParseObject(entry.ContainerObjectNumber(), entry.IndexWithinContainer(), refCtx)
		return err
	default:
		return UnresolvedReference(id)
	}
}

func (tc *TraversalController) newReferenceContext(inner DocumentSink, onRef func(ObjectId, StreamType)) *referenceContext {
	return &referenceContext{DocumentSink: inner, onReference: onRef}
}

// pipeFactoryFor builds the StreamPipeFactory for an object being
// parsed with the given expected stream type, attaching whichever
// specialized sub-parser (if any) the application has registered for
// that type (spec.md §4.6: "built only when the application has
// supplied the matching sink"). If the object's own /Type turns out to
// be ObjStm, its stream is treated as OBJECT_STREAM regardless of
// expected, matching the additional rule in spec.md §4.6.
func (tc *TraversalController) pipeFactoryFor(expected StreamType, refCtx *referenceContext) StreamPipeFactory {
	return func(dict Dict) (StreamPipe, error) {
		names, params := filterChain(dict)

		target := expected
		if refCtx.currentObjectType == "ObjStm" {
			target = ObjectStreamType
		}

		var sub pipeline.SubParser
		var collect *bytes.Buffer
		switch target {
		case ContentStream:
			if tc.factories.content != nil {
				sub = tc.factories.content()
			}
		case CMapStream:
			if tc.factories.cmap != nil {
				sub = tc.factories.cmap()
			}
		case FontTrueTypeStream, FontOpenTypeCFFStream, FontCFFStream:
			if tc.factories.openType != nil {
				sub = tc.factories.openType()
			}
		case MetadataStream:
			if tc.factories.metadata != nil {
				sub = tc.factories.metadata()
			}
		case ICCProfileStream:
			if tc.factories.iccProfile != nil {
				sub = tc.factories.iccProfile()
			}
		case ObjectStreamType:
			collect = &bytes.Buffer{}
		}

		return pipeline.Build(names, params, refCtx, sub, collect)
	}
}

// ResolveInteger implements LengthResolver by resolving id and expecting
// an Integer value — the path /Length references take when they point
// at a separate object. Supported on both InUse and Compressed length
// objects (spec.md §8: "/Length supplied as an indirect reference whose
// target is itself compressed in an object stream"): an InUse target is
// parsed as a standalone indirect object at its own offset; a
// Compressed target is pulled out of its container via the same
// objectStreamCache the traversal itself uses. A small in-flight set
// guards against a reference cycle (spec.md §9's Design Notes: "guard
// against cycles ... fail Malformed if revisited").
func (tc *TraversalController) ResolveInteger(id ObjectId) (int64, error) {
	if tc.resolving == nil {
		tc.resolving = make(map[ObjectId]bool)
	}
	if tc.resolving[id] {
		return 0, Malformed(tc.src.Position(), "cyclic /Length resolution for "+id.String())
	}
	tc.resolving[id] = true
	defer delete(tc.resolving, id)

	entry, ok := tc.xref.table.Get(id)
	if !ok {
		return 0, UnresolvedReference(id)
	}

	switch entry.Kind() {
	case InUse:
		saved := tc.src.Position()
		defer tc.src.Seek(saved)

		if err := tc.src.Seek(entry.Offset()); err != nil {
			return 0, err
		}
		capture := newValueCaptureSink()
		lx := NewLexer(tc.src)
		if _, err := lx.ReadIndirectObject(capture, tc, nil); err != nil {
			return 0, err
		}
		return lengthIntegerResult(capture, entry.Offset())
	case Compressed:
		capture := newValueCaptureSink()
		if _, err := tc.objs.ParseObject(entry.ContainerObjectNumber(), entry.IndexWithinContainer(), capture); err != nil {
			return 0, err
		}
		return lengthIntegerResult(capture, 0)
	default:
		return 0, UnresolvedReference(id)
	}
}

func lengthIntegerResult(capture *valueCaptureSink, offset int64) (int64, error) {
	v, _ := capture.Result()
	n, ok := v.(Integer)
	if !ok {
		return 0, Malformed(offset, "/Length target is not an integer")
	}
	return int64(n), nil
}

var _ LengthResolver = (*TraversalController)(nil)
