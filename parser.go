package pdf

// Parser is the public entry point (spec.md §6): it wires a ByteSource
// through the Lexer, XRefEngine, ObjectStreamCache and
// TraversalController to the application's DocumentSink, plus whichever
// specialized sub-parser sinks the application has registered.
//
// A Parser is not safe for concurrent use; the underlying ByteSource is
// owned exclusively while a call is in flight (spec.md §5). A Parser
// may be reused serially across documents, but only after Load or Parse
// re-initializes its state against the new source.
type Parser struct {
	sink      DocumentSink
	factories subParserFactories
	control   *TraversalController
}

// New constructs a Parser delivering events to sink.
func New(sink DocumentSink) *Parser {
	return &Parser{sink: sink}
}

// SetContentSinkFactory registers a factory invoked once per content
// stream (inferred from /Contents on a Page or XObject) to build the
// StreamParser that receives its decoded bytes. A nil factory (the
// default) means content streams are only delivered to the document
// sink's StreamContent events, with no specialized parsing. Must be
// called before Load or Parse.
func (p *Parser) SetContentSinkFactory(f func() StreamParser) { p.factories.content = f }

// SetOpenTypeSinkFactory registers a factory for FontFile2/FontFile3
// (TrueType, OpenType/CFF, bare CFF) streams.
func (p *Parser) SetOpenTypeSinkFactory(f func() StreamParser) { p.factories.openType = f }

// SetCMapSinkFactory registers a factory for ToUnicode CMap streams.
func (p *Parser) SetCMapSinkFactory(f func() StreamParser) { p.factories.cmap = f }

// SetMetadataSinkFactory registers a factory for /Metadata (XMP)
// streams.
func (p *Parser) SetMetadataSinkFactory(f func() StreamParser) { p.factories.metadata = f }

// SetICCProfileSinkFactory registers a factory for streams of type
// ICCProfileStream. Stream-type inference maps no dictionary key to that
// type, so during traversal this factory is not invoked.
func (p *Parser) SetICCProfileSinkFactory(f func() StreamParser) { p.factories.iccProfile = f }

// Load populates the cross-reference table and trailer from src without
// emitting any body events, enabling pull-style resolution via
// ParseObject (spec.md §6).
func (p *Parser) Load(src ByteSource) error {
	p.control = NewTraversalController(src, p.sink)
	p.control.factories = p.factories
	return p.control.Load()
}

// Parse performs a full push traversal of src, starting from the
// synthetic trailer object and following every reachable reference
// (spec.md §4.6).
func (p *Parser) Parse(src ByteSource) error {
	p.control = NewTraversalController(src, p.sink)
	p.control.factories = p.factories
	return p.control.Parse()
}

// ParseObject resolves a single object on demand, delivering its events
// to sink instead of the Parser's own document sink. Load (or Parse)
// must have been called first.
func (p *Parser) ParseObject(id ObjectId, sink DocumentSink) error {
	return p.control.ParseObject(id, sink)
}

// CatalogID returns trailer[/Root], available after Load or Parse.
func (p *Parser) CatalogID() ObjectId {
	return p.control.CatalogID()
}

// CrossReferenceTable returns read-only access to the merged
// cross-reference table, available after Load or Parse.
func (p *Parser) CrossReferenceTable() *CrossReferenceTable {
	return p.control.CrossReferenceTable()
}

// Trailer returns the merged trailer dictionary, available after Load
// or Parse.
func (p *Parser) Trailer() Dict {
	return p.control.Trailer()
}
