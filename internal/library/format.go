package library

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"

	"github.com/barryels/Spark/internal/ir"
	"github.com/barryels/Spark/internal/objects"
)

// Format selects the physical encoding of a library file.
type Format string

const (
	// FormatBinary is a marker followed by a CBOR document.
	FormatBinary Format = "binary"
	// FormatText is a YAML document.
	FormatText Format = "text"
)

// FileFormat is the encoding used by WriteToFile, Synchronize and FileWrapper.
var FileFormat = FormatBinary

// ParseFormat converts a configuration string to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatBinary, FormatText:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown library format %q: must be %q or %q", s, FormatBinary, FormatText)
}

// documentMagic marks the top of every library document.
const documentMagic = "SparkLibrary"

// binaryMarker prefixes binary library files.
var binaryMarker = []byte("bspark00")

// uncheckedSum may replace the checksum of a hand-edited text file.
// Writing always stores the real digest.
const uncheckedSum = "none"

// document is the persisted shape of a library.
// Checksum is last so a truncated text file loses it first.
type document struct {
	Magic        string         `cbor:"magic" yaml:"magic"`
	Version      int            `cbor:"version" yaml:"version"`
	Actions      []objectRecord `cbor:"actions" yaml:"actions"`
	Triggers     []objectRecord `cbor:"triggers" yaml:"triggers"`
	Applications []objectRecord `cbor:"applications" yaml:"applications"`
	Entries      []ir.Entry     `cbor:"entries" yaml:"entries"`
	Checksum     string         `cbor:"checksum" yaml:"checksum"`
}

// objectRecord is an object tagged with its allocated id.
type objectRecord struct {
	ID         uint32            `cbor:"id" yaml:"id"`
	Kind       string            `cbor:"kind" yaml:"kind"`
	Name       string            `cbor:"name" yaml:"name"`
	Attributes map[string]string `cbor:"attributes,omitempty" yaml:"attributes,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

func records[K ~uint32](t *objects.Table[K]) []objectRecord {
	all := t.All()
	out := make([]objectRecord, len(all))
	for i, r := range all {
		out[i] = objectRecord{
			ID:         uint32(r.ID),
			Kind:       r.Object.Kind,
			Name:       r.Object.Name,
			Attributes: r.Object.Attributes,
		}
	}
	return out
}

func (r objectRecord) object() ir.Object {
	return ir.Object{Kind: r.Kind, Name: r.Name, Attributes: r.Attributes}
}

// newDocument captures st as a document with its checksum filled in.
func newDocument(st *state) (*document, error) {
	doc := &document{
		Magic:        documentMagic,
		Version:      ir.LibraryVersion,
		Actions:      records(st.actions),
		Triggers:     records(st.triggers),
		Applications: records(st.applications),
		Entries:      st.relations.Entries(),
	}
	sum, err := doc.checksum()
	if err != nil {
		return nil, err
	}
	doc.Checksum = sum
	return doc, nil
}

// checksum digests everything but the magic and the checksum itself.
func (d *document) checksum() (string, error) {
	tables := func(recs []objectRecord) []any {
		out := make([]any, len(recs))
		for i, r := range recs {
			m := r.object().Canonical()
			m["id"] = r.ID
			out[i] = m
		}
		return out
	}
	entries := make([]any, len(d.Entries))
	for i, e := range d.Entries {
		entries[i] = ir.CanonicalEntry(e)
	}
	return ir.Digest(ir.DomainLibrary, map[string]any{
		"version":      d.Version,
		"actions":      tables(d.Actions),
		"triggers":     tables(d.Triggers),
		"applications": tables(d.Applications),
		"entries":      entries,
	})
}

// encode serializes doc in the given format.
func encode(doc *document, format Format) ([]byte, error) {
	switch format {
	case FormatBinary:
		body, err := encMode.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode binary: %w", err)
		}
		return append(bytes.Clone(binaryMarker), body...), nil
	case FormatText:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("encode text: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode text: %w", err)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unknown library format %q", format)
}

// DetectFormat reports the encoding of library file contents.
func DetectFormat(data []byte) Format {
	if bytes.HasPrefix(data, binaryMarker) {
		return FormatBinary
	}
	return FormatText
}

var errEmpty = errors.New("empty document")

// decode parses data in whichever format it is written in.
func decode(data []byte) (*document, Format, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, "", errEmpty
	}
	doc := &document{}
	format := DetectFormat(data)
	switch format {
	case FormatBinary:
		if err := decMode.Unmarshal(data[len(binaryMarker):], doc); err != nil {
			return nil, format, fmt.Errorf("decode binary: %w", err)
		}
	case FormatText:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(doc); err != nil {
			return nil, format, fmt.Errorf("decode text: %w", err)
		}
	}
	return doc, format, nil
}
