package pdf

// DocumentSink receives the full event stream emitted by the parser
// (spec.md §4.3). Implementations are provided by the application and
// may be invoked from any parser code path. Buffers passed to
// StreamContent are transient; a sink must copy them to retain data.
type DocumentSink interface {
	StartObject(id ObjectId)
	EndObject()

	StartDictionary()
	Key(name Name)
	EndDictionary()

	StartArray()
	EndArray()

	BooleanValue(v bool)
	NumberValue(n Object) // Integer or Real
	StringValue(s String)
	NameValue(n Name)
	NullValue()
	ObjectReference(id ObjectId)

	StartStream()
	StreamContent(chunk []byte)
	EndStream()
}

// Positioner reports the parser's current byte offset, grounded on the
// Java original's PDFLocator (see SPEC_FULL.md §D.1). The
// TraversalController constructs one over its ByteSource and hands it to
// the document sink, if that sink implements PositionAware, when Load or
// Parse starts; ParseObject does the same for the sink passed to it. A
// sink calls Locator() mid-parse to
// find out where in the source the event it is currently handling came
// from.
type Positioner interface {
	Locator() (offset int64)
}

// PositionAware is the optional capability a DocumentSink may implement
// to receive a Positioner when a Load, Parse or ParseObject call begins,
// without making it part
// of the mandatory DocumentSink contract (a sink that doesn't care
// never implements it).
type PositionAware interface {
	SetPositioner(p Positioner)
}

// StreamType tags the inferred semantic role of a stream, deciding
// which specialized sub-parser (if any) receives its decoded bytes
// (spec.md §4.6, §6).
type StreamType int

const (
	DefaultStream StreamType = iota
	ContentStream
	CMapStream
	MetadataStream
	FontType1Stream
	FontTrueTypeStream
	FontOpenTypeCFFStream
	FontCFFStream
	ICCProfileStream
	ObjectStreamType
	XRefStreamType
)

func (t StreamType) String() string {
	switch t {
	case ContentStream:
		return "CONTENT"
	case CMapStream:
		return "CMAP"
	case MetadataStream:
		return "METADATA"
	case FontType1Stream:
		return "FONT_TYPE1"
	case FontTrueTypeStream:
		return "FONT_TRUETYPE"
	case FontOpenTypeCFFStream:
		return "FONT_OPENTYPE_CFF"
	case FontCFFStream:
		return "FONT_CFF"
	case ICCProfileStream:
		return "ICC_PROFILE"
	case ObjectStreamType:
		return "OBJECT_STREAM"
	case XRefStreamType:
		return "XREF_STREAM"
	default:
		return "DEFAULT"
	}
}

// StreamParser is the contract for a specialized sub-parser attached to
// a stream's decoded byte content (content streams, fonts, CMaps).
// Write reports how many leading bytes of chunk it consumed; any
// unconsumed suffix is retained by the dispatcher and re-presented
// prefixed to the next chunk (spec.md §4.3, §4.4, grounded on
// StreamDispatcher.java's carry-over buffering). Close delivers a
// final flush of any bytes the parser has not yet consumed.
type StreamParser interface {
	Write(chunk []byte) (consumed int, err error)
	Close() error
}
