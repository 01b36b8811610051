package reply

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	RequiresTools  *bool  `json:"requires_tools"`
	DirectResponse string `json:"direct_response"`
}

func TestParse(t *testing.T) {
	got, err := Parse[sample](" \n{\"requires_tools\": false, \"direct_response\": \"hi\", \"extra\": 1}\n")
	require.NoError(t, err)
	require.NotNil(t, got.RequiresTools)
	assert.False(t, *got.RequiresTools)
	assert.Equal(t, "hi", got.DirectResponse)
}

func TestParseMissingFieldsAreAbsent(t *testing.T) {
	got, err := Parse[sample](`{}`)
	require.NoError(t, err)
	assert.Nil(t, got.RequiresTools)
	assert.Empty(t, got.DirectResponse)
}

func TestParseMalformed(t *testing.T) {
	for _, raw := range []string{"not json", "", "```json\n{}\n```", `{"requires_tools": tru`} {
		_, err := Parse[sample](raw)
		var mr *MalformedReplyError
		require.ErrorAs(t, err, &mr, "input %q", raw)
		assert.Equal(t, raw, mr.Raw)
	}
}

func TestMalformedReplyErrorTruncatesPreview(t *testing.T) {
	raw := strings.Repeat("x", 500)
	_, err := Parse[sample](raw)
	require.Error(t, err)
	assert.Less(t, len(err.Error()), 300)
	assert.Contains(t, err.Error(), "...")
}

func TestParseWrongTypedFieldIsAbsent(t *testing.T) {
	got, err := Parse[sample](`{"requires_tools": "false", "direct_response": "hi"}`)
	require.NoError(t, err)
	assert.Nil(t, got.RequiresTools)
	assert.Equal(t, "hi", got.DirectResponse)

	got, err = Parse[sample](`["not", "an", "object"]`)
	require.NoError(t, err)
	assert.Nil(t, got.RequiresTools)
	assert.Empty(t, got.DirectResponse)
}

func TestMalformedReplyPreviewKeepsRunes(t *testing.T) {
	raw := "x" + strings.Repeat("é", 200)
	_, err := Parse[sample](raw)
	var mr *MalformedReplyError
	require.ErrorAs(t, err, &mr)
	assert.NotContains(t, err.Error(), `\x`)
}
