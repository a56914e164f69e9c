package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeShelfResponse_StripsReadabilityMarkers(t *testing.T) {
	raw := "Here is the analysis:\n```json\n" + `{
		"books": [
			{"title": "Dune", "author": "Frank Herbert", "confidence": 0.95},
			{"title": "[partial] The Hobb", "author": "[uncertain] Tolk", "confidence": 0.6},
			{"title": "[unreadable]", "confidence": 0.2},
			{"title": "[uncertain] Neuromancer", "author": "William Gibson"}
		]
	}` + "\n```"

	result, err := normalizeShelfResponse("gemini", raw)
	require.NoError(t, err)
	require.Len(t, result.Books, 4)
	assert.Equal(t, 4, result.TotalDetected)

	assert.Equal(t, "Dune", result.Books[0].Title)
	assert.Equal(t, ReadabilityClear, result.Books[0].ReadabilityStatus)

	assert.Equal(t, "The Hobb", result.Books[1].Title)
	assert.Equal(t, ReadabilityPartial, result.Books[1].ReadabilityStatus)
	assert.Equal(t, "Tolk", result.Books[1].Author)

	assert.Equal(t, "", result.Books[2].Title)
	assert.Equal(t, ReadabilityUnreadable, result.Books[2].ReadabilityStatus)

	assert.Equal(t, "Neuromancer", result.Books[3].Title)
	assert.Equal(t, ReadabilityUncertain, result.Books[3].ReadabilityStatus)
	assert.Nil(t, result.Books[3].Confidence)
}

func TestNormalizeShelfResponse_DropsEmptyTitleWithoutMarker(t *testing.T) {
	raw := `{"books": [
		{"title": "", "author": "Someone"},
		{"title": "Kept", "confidence": 0.9}
	]}`

	result, err := normalizeShelfResponse("gemini", raw)
	require.NoError(t, err)
	require.Len(t, result.Books, 1)
	assert.Equal(t, "Kept", result.Books[0].Title)
}

func TestNormalizeShelfResponse_EmptyResponse(t *testing.T) {
	_, err := normalizeShelfResponse("gemini", "   \n ")

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, CodeModelUnavailable, provErr.Code)
	assert.True(t, provErr.Retryable)
}

func TestNormalizeShelfResponse_NoJSON(t *testing.T) {
	_, err := normalizeShelfResponse("gemini", "I could not process this image.")

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, CodeParsingError, provErr.Code)
	assert.False(t, provErr.Retryable)
}

func TestNormalizeShelfResponse_Refusal(t *testing.T) {
	_, err := normalizeShelfResponse("openai", `{"refusal": "cannot analyze people"}`)

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, CodeParsingError, provErr.Code)
	assert.Contains(t, provErr.Message, "cannot analyze people")
}

func TestNormalizeShelfResponse_CoercesConfidenceAndPosition(t *testing.T) {
	raw := `{"books": [
		{
			"title": "Dune",
			"confidence": "0.85",
			"position": {"x": -0.1, "y": 0.2, "width": 1.5, "height": "0.4"}
		}
	]}`

	result, err := normalizeShelfResponse("gemini", raw)
	require.NoError(t, err)
	require.Len(t, result.Books, 1)

	book := result.Books[0]
	require.NotNil(t, book.Confidence)
	assert.InDelta(t, 0.85, *book.Confidence, 1e-9)
	assert.Equal(t, 0.0, book.Position.X)
	assert.Equal(t, 0.2, book.Position.Y)
	assert.Equal(t, 1.0, book.Position.Width)
	assert.Equal(t, 0.4, book.Position.Height)
}

func TestNormalizeSingleBookResponse(t *testing.T) {
	raw := `{
		"title": "[partial] Snow Cra",
		"author": "Neal Stephenson",
		"isbn": "9780553380958",
		"publisher": "Bantam",
		"year": 1992,
		"confidence": 0.7
	}`

	result, err := normalizeSingleBookResponse("openai", raw)
	require.NoError(t, err)

	assert.Equal(t, "Snow Cra", result.Title)
	assert.Equal(t, ReadabilityPartial, result.ReadabilityStatus)
	assert.Equal(t, "1992", result.Year)
	require.NotNil(t, result.Confidence)
	assert.InDelta(t, 0.7, *result.Confidence, 1e-9)
}

func TestNormalizeSingleBookResponse_NoTitle(t *testing.T) {
	_, err := normalizeSingleBookResponse("openai", `{"author": "Someone"}`)

	var provErr *Error
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, CodeParsingError, provErr.Code)
}

func TestExtractReadability(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantText   string
		wantStatus ReadabilityStatus
	}{
		{"clear", "Dune", "Dune", ReadabilityClear},
		{"partial", "[partial] Dun", "Dun", ReadabilityPartial},
		{"uncertain", "[uncertain] Faust", "Faust", ReadabilityUncertain},
		{"unreadable marker only", "[unreadable]", "", ReadabilityUnreadable},
		{"surrounding whitespace", "  [partial]  Dun ", "Dun", ReadabilityPartial},
		{"unknown prefix kept verbatim", "[blurry] Dune", "[blurry] Dune", ReadabilityClear},
		{"marker only stripped once", "[partial] [partial] Dun", "[partial] Dun", ReadabilityPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, status := extractReadability("gemini", tt.input)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	jsonStr, err := extractJSONObject("prefix {\"a\": {\"b\": 1}} suffix")
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 1}}`, jsonStr)

	_, err = extractJSONObject("no braces here")
	assert.Error(t, err)

	_, err = extractJSONObject("} reversed {")
	assert.Error(t, err)
}
