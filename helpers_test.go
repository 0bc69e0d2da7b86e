package pdf

import "fmt"

// recordEvent is one call recorded by recordingSink, tagged by kind and
// carrying whichever payload that kind produced.
type recordEvent struct {
	kind string
	text string
}

// recordingSink implements DocumentSink by appending a textual trace of
// every call, used to assert exact event ordering against spec.md's
// end-to-end scenarios without needing a full tree-building sink.
type recordingSink struct {
	events []recordEvent
}

func (s *recordingSink) add(kind, text string) {
	s.events = append(s.events, recordEvent{kind: kind, text: text})
}

func (s *recordingSink) StartObject(id ObjectId) { s.add("start_object", id.String()) }
func (s *recordingSink) EndObject()              { s.add("end_object", "") }

func (s *recordingSink) StartDictionary() { s.add("start_dictionary", "") }
func (s *recordingSink) Key(name Name)    { s.add("key", string(name)) }
func (s *recordingSink) EndDictionary()   { s.add("end_dictionary", "") }

func (s *recordingSink) StartArray() { s.add("start_array", "") }
func (s *recordingSink) EndArray()   { s.add("end_array", "") }

func (s *recordingSink) BooleanValue(v bool)  { s.add("boolean_value", fmt.Sprintf("%v", v)) }
func (s *recordingSink) NumberValue(n Object) { s.add("number_value", fmt.Sprintf("%v", n)) }
func (s *recordingSink) StringValue(v String) { s.add("string_value", string(v)) }
func (s *recordingSink) NameValue(n Name)     { s.add("name_value", string(n)) }
func (s *recordingSink) NullValue()           { s.add("null_value", "") }
func (s *recordingSink) ObjectReference(id ObjectId) {
	s.add("object_reference", id.String())
}

func (s *recordingSink) StartStream()         { s.add("start_stream", "") }
func (s *recordingSink) StreamContent(b []byte) { s.add("stream_content", string(b)) }
func (s *recordingSink) EndStream()           { s.add("end_stream", "") }

var _ DocumentSink = (*recordingSink)(nil)

// trace renders each recorded event as "kind(text)" (or a bare "kind"
// when it carries no text), one string per event, for compact
// test-failure diffs.
func (s *recordingSink) trace() []string {
	out := make([]string, len(s.events))
	for i, e := range s.events {
		if e.text == "" {
			out[i] = e.kind
		} else {
			out[i] = e.kind + "(" + e.text + ")"
		}
	}
	return out
}

// legacyXRefRecord renders one fixed 20-byte legacy cross-reference
// record: 10-digit offset, space, 5-digit generation, space, type byte,
// 2-byte EOL marker (a space and a line feed).
func legacyXRefRecord(offsetOrNext int64, generation int, typ byte) string {
	return fmt.Sprintf("%010d %05d %c \n", offsetOrNext, generation, typ)
}
