package extractor

import (
	"testing"

	"sjsage522/dealbridge/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHostObject(t *testing.T) {
	h, err := ParseHostObject([]byte(`{
		"deal": {
			"id": 42,
			"properties": {
				"dealname": "Acme Renewal",
				"amount": 12500.5,
				"closedate": null,
				"hs_is_closed": false,
				"hs_is_open": true,
				"hs_probability": 0,
				"nested": {"value": "x"}
			}
		}
	}`))
	require.NoError(t, err)

	v, ok := h.DealProperty(HostKeyID)
	assert.True(t, ok)
	assert.Equal(t, "42", v)

	v, ok = h.DealProperty("amount")
	assert.True(t, ok)
	assert.Equal(t, "12500.5", v)

	v, ok = h.DealProperty("hs_is_open")
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	// falsy values defer to the page
	_, ok = h.DealProperty("hs_is_closed")
	assert.False(t, ok)
	_, ok = h.DealProperty("hs_probability")
	assert.False(t, ok)

	_, ok = h.DealProperty("closedate")
	assert.False(t, ok)
	_, ok = h.DealProperty("nested")
	assert.False(t, ok)
}

func TestParseHostObject_Empty(t *testing.T) {
	for _, input := range []string{"", "null", "  ", `{}`, `{"deal":null}`} {
		h, err := ParseHostObject([]byte(input))
		require.NoError(t, err, input)
		_, ok := h.DealProperty(HostKeyID)
		assert.False(t, ok, input)
	}
}

func TestParseHostObject_Invalid(t *testing.T) {
	_, err := ParseHostObject([]byte(`{"deal":`))
	assert.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeParsing))
}

func TestChain(t *testing.T) {
	first := NewHostObject("", map[string]string{"dealname": ""})
	second := NewHostObject("9", map[string]string{"dealname": "Second"})

	c := Chain(nil, first, second)

	v, ok := c.DealProperty("dealname")
	assert.True(t, ok)
	assert.Equal(t, "Second", v)

	v, ok = c.DealProperty(HostKeyID)
	assert.True(t, ok)
	assert.Equal(t, "9", v)

	_, ok = Chain(first).DealProperty("amount")
	assert.False(t, ok)

	v, ok = Chain(first).DealProperty("dealname")
	assert.True(t, ok)
	assert.Equal(t, "", v)
}
