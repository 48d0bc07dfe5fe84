package feeds

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "plain text untouched",
			in:   "A study of protein folding",
			want: "A study of protein folding",
		},
		{
			name: "subscript to unicode",
			in:   "Electrochemical reduction of CO<sub>2</sub> in water (H<sub>2</sub>O)",
			want: "Electrochemical reduction of CO₂ in water (H₂O)",
		},
		{
			name: "superscript to unicode",
			in:   "Detection at 10<sup>-9</sup> M",
			want: "Detection at 10⁻⁹ M",
		},
		{
			name: "emphasis unwrapped",
			in:   "The role of <i>E. coli</i> in <b>gut</b> microbiomes",
			want: "The role of E. coli in gut microbiomes",
		},
		{
			name: "entities decoded",
			in:   "Synthesis &amp; characterization",
			want: "Synthesis & characterization",
		},
		{
			name: "whitespace collapsed",
			in:   "<p>Two\n  paragraphs</p><p>joined   here</p>",
			want: "Two paragraphs joined here",
		},
		{
			name: "script stripped",
			in:   "Before<script>alert(1)</script> after",
			want: "Before after",
		},
		{
			name: "empty",
			in:   "   ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestMapRunesKeepsUnmapped(t *testing.T) {
	assert.Equal(t, "₂q", mapRunes("2q", subscripts))
}
