// Package nessus reads Nessus v2 (.nessus) reports as a stream of flat
// vulnerability records.
package nessus

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"os"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

const (
	tagReportHost     = "ReportHost"
	tagHostProperties = "HostProperties"
	tagReportItem     = "ReportItem"
)

var (
	errItemOutsideHost       = errors.New("ReportItem outside of a ReportHost")
	errPropertiesOutsideHost = errors.New("HostProperties outside of a ReportHost")
)

// element is a buffered node of the subtree currently being collected.
type element struct {
	name     string
	attrs    []xml.Attr
	text     []byte
	children []*element
}

func attr(attrs []xml.Attr, name string) string {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// ReportStream pulls Records out of a Nessus v2 document one ReportItem at
// a time. Only the HostProperties or ReportItem subtree being read is kept
// in memory.
//
// A ReportStream is not safe for concurrent use and never closes its source.
type ReportStream struct {
	src *bufio.Reader
	dec *xml.Decoder

	// host is the active host context, replaced on every ReportHost.
	host     map[string]string
	hostKeys []string

	stack   []*element
	depth   int
	closed  bool
	sniffed bool

	// wide is set when a BOM made us transcode the source to UTF-8.
	wide bool

	// err is sticky: io.EOF once exhausted, or the first failure.
	err error
}

// NewReportStream returns a stream reading the report from src.
func NewReportStream(src io.Reader) (*ReportStream, error) {
	if src == nil {
		return nil, &FormatError{Reason: "no source given"}
	}

	return &ReportStream{src: bufio.NewReader(src)}, nil
}

// Next returns the next record in document order. It returns io.EOF after
// the outermost element closes. Any other error ends the stream and is
// returned again by every later call.
func (s *ReportStream) Next() (Record, error) {
	if s.err != nil {
		return nil, s.err
	}

	rec, err := s.next()
	if err != nil {
		s.err = err
		s.stack = nil
		return nil, err
	}

	return rec, nil
}

// Each calls fn for every remaining record until the stream is exhausted or
// either side fails.
func (s *ReportStream) Each(fn func(Record) error) error {
	for {
		rec, err := s.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if err := fn(rec); err != nil {
			return err
		}
	}
}

// ReadFile streams the report at path into fn.
func ReadFile(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	s, err := NewReportStream(f)
	if err != nil {
		return err
	}

	return s.Each(fn)
}

func (s *ReportStream) next() (Record, error) {
	if !s.sniffed {
		s.sniffed = true
		if err := s.sniff(); err != nil {
			return nil, err
		}
	}

	for !s.closed {
		tok, err := s.dec.Token()
		if err == io.EOF {
			return nil, &MalformedDocumentError{Err: io.ErrUnexpectedEOF}
		}
		if err != nil {
			return nil, &MalformedDocumentError{Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			s.depth++
			s.start(t)

		case xml.CharData:
			if n := len(s.stack); n > 0 {
				top := s.stack[n-1]
				if len(top.children) == 0 {
					top.text = append(top.text, t...)
				}
			}

		case xml.EndElement:
			s.depth--
			s.closed = s.depth == 0
			rec, err := s.end()
			if err != nil || rec != nil {
				return rec, err
			}
		}
	}

	return nil, io.EOF
}

// sniff picks the byte decoding of the source and builds the decoder.
// A UTF-16 or UTF-32 BOM is honored. Wide text without a BOM is rejected;
// the XML tokenizer would only report a confusing syntax error for it.
func (s *ReportStream) sniff() error {
	head, err := s.src.Peek(4)
	if err != nil && err != io.EOF {
		return err
	}

	var wide encoding.Encoding
	switch {
	case bytes.HasPrefix(head, []byte{0x00, 0x00, 0xFE, 0xFF}),
		bytes.HasPrefix(head, []byte{0xFF, 0xFE, 0x00, 0x00}):
		wide = utf32.UTF32(utf32.BigEndian, utf32.ExpectBOM)

	case bytes.HasPrefix(head, []byte{0xFE, 0xFF}),
		bytes.HasPrefix(head, []byte{0xFF, 0xFE}):
		wide = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

	case len(head) >= 2 && head[0] == 0 && head[1] == '<',
		len(head) >= 2 && head[0] == '<' && head[1] == 0:
		return &FormatError{Reason: "source yields UTF-16 text without a byte order mark, pass the undecoded report bytes"}
	}

	var src io.Reader = s.src
	if wide != nil {
		s.wide = true
		src = transform.NewReader(s.src, wide.NewDecoder())
	}

	s.dec = xml.NewDecoder(src)
	s.dec.CharsetReader = s.charsetReader

	return nil
}

// charsetReader decodes the charset declared in the prolog. Once the BOM
// has been honored the bytes are UTF-8 whatever the prolog says.
func (s *ReportStream) charsetReader(label string, input io.Reader) (io.Reader, error) {
	if s.wide {
		return input, nil
	}
	return charset.NewReaderLabel(label, input)
}

func (s *ReportStream) start(t xml.StartElement) {
	name := t.Name.Local

	if n := len(s.stack); n > 0 {
		el := &element{name: name, attrs: t.Attr}
		s.stack[n-1].children = append(s.stack[n-1].children, el)
		s.stack = append(s.stack, el)
		return
	}

	switch name {
	case tagReportHost:
		s.host = map[string]string{HostReportName: attr(t.Attr, "name")}
		s.hostKeys = []string{HostReportName}

	case tagHostProperties, tagReportItem:
		s.stack = append(s.stack, &element{name: name, attrs: t.Attr})
	}
}

func (s *ReportStream) end() (Record, error) {
	n := len(s.stack)
	if n == 0 {
		return nil, nil
	}

	el := s.stack[n-1]
	s.stack = s.stack[:n-1]
	if n > 1 {
		return nil, nil
	}

	switch el.name {
	case tagHostProperties:
		if s.host == nil {
			return nil, &MalformedDocumentError{Err: errPropertiesOutsideHost}
		}
		for _, c := range el.children {
			s.setHost(attr(c.attrs, "name"), string(c.text))
		}

	case tagReportItem:
		return s.record(el)
	}

	return nil, nil
}

func (s *ReportStream) setHost(key, value string) {
	if _, ok := s.host[key]; !ok {
		s.hostKeys = append(s.hostKeys, key)
	}
	s.host[key] = value
}

// sequence returns v as a list to append to. A split vector is already a
// list and keeps its parts as leading elements.
func sequence(v interface{}) []interface{} {
	switch t := v.(type) {
	case []interface{}:
		return t
	case []string:
		values := make([]interface{}, 0, len(t)+1)
		for _, part := range t {
			values = append(values, part)
		}
		return values
	default:
		return []interface{}{v}
	}
}

// record flattens a ReportItem. Host properties are laid over the item's
// attributes, so a host value wins a name clash.
func (s *ReportStream) record(item *element) (Record, error) {
	if s.host == nil {
		return nil, &MalformedDocumentError{Err: errItemOutsideHost}
	}

	keys := make([]string, 0, len(item.attrs)+len(s.hostKeys))
	raw := make(map[string]string, cap(keys))
	set := func(k, v string) {
		if _, ok := raw[k]; !ok {
			keys = append(keys, k)
		}
		raw[k] = v
	}

	for _, a := range item.attrs {
		set(a.Name.Local, a.Value)
	}
	for _, k := range s.hostKeys {
		set(k, s.host[k])
	}

	rec := make(Record, len(keys)+len(item.children))
	for _, k := range keys {
		v, err := normalize(k, raw[k])
		if err != nil {
			return nil, err
		}
		rec[k] = v
	}

	for _, c := range item.children {
		v, err := normalize(c.name, string(c.text))
		if err != nil {
			return nil, err
		}

		existing, ok := rec[c.name]
		if !ok {
			rec[c.name] = v
			continue
		}

		rec[c.name] = append(sequence(existing), v)
	}

	return rec, nil
}
