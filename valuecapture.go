package pdf

// valueCaptureSink builds a transient in-memory [Object] for the next
// composite or scalar value, without delivering those events to the
// application's document sink. The Lexer uses it internally whenever it
// must know a value (a stream's /Length, an xref-stream dictionary, an
// object-stream dictionary) without double-emitting it (spec.md §4.3,
// §9). It implements DocumentSink itself so the Lexer can drive it with
// exactly the same entry points it uses for the real sink.
//
// Grounded on XRefHandler.java's explicit stack machine: StartArray and
// StartDictionary push a new container, scalars and composites attach
// to the top container via addValue, Key records the pending key, and
// End* pops and attaches to the parent (or becomes the final result
// once the stack empties).
type valueCaptureSink struct {
	stack      []Object // containers only: *arrayBuilder or dictBuilder
	keys       []Name   // the parent's pending key, saved per open container
	currentKey Name
	result     Object
	haveResult bool
}

// dictBuilder is a mutable Dict under construction; Dict itself is a
// map type and can be mutated in place, so no separate wrapper struct
// is needed — it is kept here only to document the distinction between
// "Dict used as a finished Object" and "Dict being built".
type dictBuilder = Dict

func newValueCaptureSink() *valueCaptureSink {
	return &valueCaptureSink{}
}

// Result returns the captured top-level value. It is valid once the
// Lexer has finished parsing exactly one value through this sink.
func (s *valueCaptureSink) Result() (Object, bool) {
	return s.result, s.haveResult
}

func (s *valueCaptureSink) addValue(v Object) {
	if len(s.stack) == 0 {
		s.result = v
		s.haveResult = true
		return
	}
	top := s.stack[len(s.stack)-1]
	switch c := top.(type) {
	case *arrayBuilder:
		c.items = append(c.items, v)
	case dictBuilder:
		c[s.currentKey] = v
		s.currentKey = ""
	}
}

// arrayBuilder is a mutable Array under construction.
type arrayBuilder struct {
	items Array
}

func (*arrayBuilder) isObject() {}

func (s *valueCaptureSink) StartObject(ObjectId) {}
func (s *valueCaptureSink) EndObject()           {}

func (s *valueCaptureSink) StartDictionary() {
	s.keys = append(s.keys, s.currentKey)
	s.currentKey = ""
	s.stack = append(s.stack, dictBuilder(make(Dict)))
}

func (s *valueCaptureSink) EndDictionary() {
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.currentKey = s.keys[len(s.keys)-1]
	s.keys = s.keys[:len(s.keys)-1]
	d := top.(dictBuilder)
	if len(s.stack) == 0 {
		s.result = d
		s.haveResult = true
	} else {
		s.addValue(d)
	}
}

func (s *valueCaptureSink) Key(name Name) {
	s.currentKey = name
}

func (s *valueCaptureSink) StartArray() {
	s.keys = append(s.keys, s.currentKey)
	s.currentKey = ""
	s.stack = append(s.stack, &arrayBuilder{})
}

func (s *valueCaptureSink) EndArray() {
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	s.currentKey = s.keys[len(s.keys)-1]
	s.keys = s.keys[:len(s.keys)-1]
	a := top.(*arrayBuilder).items
	if a == nil {
		a = Array{}
	}
	if len(s.stack) == 0 {
		s.result = a
		s.haveResult = true
	} else {
		s.addValue(a)
	}
}

func (s *valueCaptureSink) BooleanValue(v bool)       { s.addValue(Bool(v)) }
func (s *valueCaptureSink) NumberValue(n Object)      { s.addValue(n) }
func (s *valueCaptureSink) StringValue(str String)    { s.addValue(str) }
func (s *valueCaptureSink) NameValue(n Name)          { s.addValue(n) }
func (s *valueCaptureSink) NullValue()                { s.addValue(Null{}) }
func (s *valueCaptureSink) ObjectReference(id ObjectId) { s.addValue(Reference(id)) }

func (s *valueCaptureSink) StartStream()          {}
func (s *valueCaptureSink) StreamContent([]byte)  {}
func (s *valueCaptureSink) EndStream()            {}

var _ DocumentSink = (*valueCaptureSink)(nil)
