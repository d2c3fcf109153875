package response

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "bare object",
			raw:  `{"title": "A Study"}`,
			want: `{"title": "A Study"}`,
		},
		{
			name: "code fence",
			raw:  "```json\n{\"title\": \"A Study\"}\n```",
			want: `{"title": "A Study"}`,
		},
		{
			name: "surrounding prose",
			raw:  "Here is the summary you asked for:\n{\"title\": \"A Study\"}\nLet me know if you need more.",
			want: `{"title": "A Study"}`,
		},
		{
			name: "nested objects",
			raw:  `{"outer": {"inner": 1}, "x": 2}`,
			want: `{"outer": {"inner": 1}, "x": 2}`,
		},
		{
			name: "braces inside strings",
			raw:  `{"note": "uses {braces} and \"quotes\""}`,
			want: `{"note": "uses {braces} and \"quotes\""}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.raw, '{')
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONErrors(t *testing.T) {
	_, err := ExtractJSON("no json here at all", '{')
	var ferr *FormatError
	require.ErrorAs(t, err, &ferr)

	_, err = ExtractJSON(`{"unterminated": true`, '{')
	require.ErrorAs(t, err, &ferr)
	assert.Contains(t, ferr.Raw, "unterminated")
}

func TestDecodeObject(t *testing.T) {
	var got struct {
		Title     string `json:"title"`
		StudyType string `json:"study_type"`
	}
	raw := "The metadata is:\n```json\n{\"title\": \"Effects of X\", \"study_type\": \"RCT\"}\n```"
	require.NoError(t, Decode(raw, &got))
	assert.Equal(t, "Effects of X", got.Title)
	assert.Equal(t, "RCT", got.StudyType)
}

func TestDecodeStringList(t *testing.T) {
	got, err := DecodeStringList(`["finding one", "finding two"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"finding one", "finding two"}, got)

	// Models sometimes wrap the array in an object.
	got, err = DecodeStringList(`{"key_findings": ["a", "b"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = DecodeStringList(`{"count": 3}`)
	var ferr *FormatError
	assert.ErrorAs(t, err, &ferr)
}

func TestNumericTokens(t *testing.T) {
	got := NumericTokens("reduction of 23.5% (n=150, P < 0.05)")
	assert.Equal(t, []string{"23.5", "150", "0.05"}, got)
	assert.Empty(t, NumericTokens("no numbers here"))
}

func TestNumericMismatches(t *testing.T) {
	source := "The intervention group showed a 23.5% reduction (n=150, P < 0.05)."

	// Faithful statements pass even with different phrasing.
	assert.Empty(t, NumericMismatches(
		[]string{"A 23.5% reduction was observed among 150 participants (P < 0.05)."},
		source))

	// A dropped zero turns 0.05 into 0.5 and must be flagged.
	got := NumericMismatches(
		[]string{"The reduction was significant (P < 0.5)."},
		source)
	assert.Equal(t, []string{"0.5"}, got)

	// Statements without numbers never mismatch.
	assert.Empty(t, NumericMismatches([]string{"Outcomes improved overall."}, source))
}
