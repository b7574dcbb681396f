package scanner

import (
	"testing"

	"github.com/chromedp/cdproto/accessibility"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func axValue(raw string) *accessibility.Value {
	return &accessibility.Value{Value: jsontext.Value(raw)}
}

func TestConvertAXNodes(t *testing.T) {
	nodes := []*accessibility.Node{
		{Role: axValue(`"button"`), Name: axValue(`"Submit order"`)},
		{Ignored: true, Role: axValue(`"none"`)},
		nil,
		{Name: axValue(`"Logo"`)},
	}

	out := convertAXNodes(nodes)
	require.Len(t, out, 3, "nil entries are dropped")

	assert.Equal(t, "button", out[0].Role)
	assert.Equal(t, "Submit order", out[0].Name)
	assert.False(t, out[0].Ignored)

	assert.True(t, out[1].Ignored)
	assert.Equal(t, "none", out[1].Role)

	assert.Empty(t, out[2].Role)
	assert.Equal(t, "Logo", out[2].Name)
}

func TestConvertAXNodes_Empty(t *testing.T) {
	assert.Empty(t, convertAXNodes(nil))
}

func TestAXValueString(t *testing.T) {
	assert.Equal(t, "", axValueString(nil))
	assert.Equal(t, "", axValueString(&accessibility.Value{}))
	assert.Equal(t, "link", axValueString(axValue(`"link"`)))
	// Non-string JSON values come through as their raw text.
	assert.Equal(t, "42", axValueString(axValue(`42`)))
}
