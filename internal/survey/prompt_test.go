package survey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrompt(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercases", input: "Coffee Survey", want: "coffee survey"},
		{name: "trims and collapses spaces", input: "  coffee   survey ", want: "coffee survey"},
		{name: "collapses tabs and newlines", input: "Coffee\t\n Survey", want: "coffee survey"},
		{name: "empty", input: "", want: ""},
		{name: "whitespace only", input: " \t\n ", want: ""},
		{name: "non-ascii", input: "  ÉTUDE   Café ", want: "étude café"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizePrompt(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizePrompt(got), "normalization must be idempotent")
		})
	}
}

func TestNormalizePrompt_WhitespaceVariantsShareKey(t *testing.T) {
	variants := []string{
		"Coffee Survey",
		"  coffee   survey ",
		"COFFEE\tSURVEY",
		"\ncoffee survey\n",
	}
	for _, v := range variants {
		assert.Equal(t, "coffee survey", NormalizePrompt(v), v)
	}
}

func TestValidatePrompt(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "length 2 is rejected", input: "ab", wantErr: true},
		{name: "length 3 is accepted", input: "abc", want: "abc"},
		{name: "length 200 is accepted", input: strings.Repeat("a", 200), want: strings.Repeat("a", 200)},
		{name: "length 201 is rejected", input: strings.Repeat("a", 201), wantErr: true},
		{name: "length counted after trimming", input: "   ab   ", wantErr: true},
		{name: "trimmed value is returned", input: "  Coffee Survey  ", want: "Coffee Survey"},
		{name: "multibyte characters count once", input: strings.Repeat("é", 200), want: strings.Repeat("é", 200)},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidatePrompt(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPrompt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
