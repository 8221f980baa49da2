package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"bold removed", "**타이레놀**은 해열제입니다", "타이레놀은 해열제입니다"},
		{"heading collapsed", "## 효능\n해열", "효능\n해열"},
		{"single stars removed", "* 두통\n* 발열", "두통\n 발열"},
		{"trimmed", "  답변  \n", "답변"},
		{"plain text untouched", "하루 3회 복용", "하루 3회 복용"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Sanitize(tt.input))
		})
	}
}

func TestSanitize_Idempotent(t *testing.T) {
	inputs := []string{
		"### 복용 방법\n**1회 1정**, *하루 3회*\n#",
		"# # 이중 헤더",
		"***강조***",
		"정상 텍스트",
		"\n\n  ",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		assert.Equal(t, once, Sanitize(once), in)
		assert.NotContains(t, once, "*")
		assert.NotContains(t, once, "#")
	}
}

func TestStreamSanitizer_MarkersSplitAcrossFragments(t *testing.T) {
	var s StreamSanitizer
	fragments := []string{"  #", "# 효", "능\n*", "*해열*", "* 진통"}

	var out strings.Builder
	for _, f := range fragments {
		out.WriteString(s.Write(f))
	}

	assert.Equal(t, "효능\n해열 진통", out.String())
	assert.Equal(t, Sanitize(strings.Join(fragments, "")), out.String())
}
