package extractor

import (
	"bytes"
	"encoding/json"
	"strconv"

	"sjsage522/dealbridge/pkg/errors"
)

// HostKeyID addresses the deal's own id rather than one of its properties
const HostKeyID = "id"

// HostSource is a read-only view of structured deal data supplied by the host page
type HostSource interface {
	// DealProperty returns the value for key and whether it was present
	DealProperty(key string) (string, bool)
}

// NoHost is the empty host source
var NoHost HostSource = noHost{}

type noHost struct{}

func (noHost) DealProperty(string) (string, bool) { return "", false }

// HostObject is the page's global deal object: {deal: {id, properties: {...}}}
type HostObject struct {
	id         string
	hasID      bool
	properties map[string]string
}

// ParseHostObject decodes the JSON of the host object.
// Empty input and a JSON null both yield an empty object.
func ParseHostObject(data []byte) (*HostObject, error) {
	h := &HostObject{properties: map[string]string{}}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return h, nil
	}

	var root struct {
		Deal *struct {
			ID         interface{}            `json:"id"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"deal"`
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&root); err != nil {
		return nil, errors.NewParsing("extractor", "invalid host object", err)
	}
	if root.Deal == nil {
		return h, nil
	}

	h.id, h.hasID = stringify(root.Deal.ID)
	for k, v := range root.Deal.Properties {
		if s, ok := stringify(v); ok {
			h.properties[k] = s
		}
	}
	return h, nil
}

// NewHostObject builds a host object directly, mainly for callers that already hold decoded data
func NewHostObject(id string, properties map[string]string) *HostObject {
	h := &HostObject{id: id, hasID: id != "", properties: map[string]string{}}
	for k, v := range properties {
		h.properties[k] = v
	}
	return h
}

// DealProperty implements HostSource
func (h *HostObject) DealProperty(key string) (string, bool) {
	if h == nil {
		return "", false
	}
	if key == HostKeyID {
		return h.id, h.hasID
	}
	v, ok := h.properties[key]
	return v, ok
}

// stringify renders a scalar host value. Zero numbers and false count as
// absent so the page is consulted instead, as the injected script does.
func stringify(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return "", false
		}
		return t.String(), true
	case bool:
		if !t {
			return "", false
		}
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// Chain returns a host source that answers from the first source holding a non-empty value
func Chain(sources ...HostSource) HostSource {
	return chain(sources)
}

type chain []HostSource

func (c chain) DealProperty(key string) (string, bool) {
	found := false
	for _, s := range c {
		if s == nil {
			continue
		}
		v, ok := s.DealProperty(key)
		if ok && v != "" {
			return v, true
		}
		found = found || ok
	}
	return "", found
}
