package strings

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{name: "short string unchanged", input: "hello", maxLen: 10, expected: "hello"},
		{name: "exact length unchanged", input: "hello", maxLen: 5, expected: "hello"},
		{name: "long string truncated", input: "hello world this is a long string", maxLen: 15, expected: "hello world ..."},
		{name: "newlines replaced with spaces", input: "output.txt not found\nin /tmp", maxLen: 40, expected: "output.txt not found in /tmp"},
		{name: "carriage returns and tabs collapsed", input: "a\r\n\tb", maxLen: 10, expected: "a b"},
		{name: "leading and trailing whitespace trimmed", input: "  hello world  ", maxLen: 20, expected: "hello world"},
		{name: "empty string", input: "", maxLen: 10, expected: ""},
		{name: "whitespace only becomes empty", input: "   \n\t  ", maxLen: 10, expected: ""},
		{name: "unicode truncation safe", input: "日本語テスト文字列", maxLen: 6, expected: "日本語..."},
		{name: "maxLen clamped to MinTruncateLen", input: "hello", maxLen: 2, expected: "h..."},
		{name: "negative maxLen clamped", input: "hello", maxLen: -5, expected: "h..."},
		{name: "short string with small maxLen unchanged", input: "hi", maxLen: 3, expected: "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.input, tt.maxLen))
		})
	}
}

func TestTruncate_RuneLength(t *testing.T) {
	result := Truncate("日本語テスト", 5)
	assert.Equal(t, "日本...", result)
	assert.Equal(t, 5, utf8.RuneCountInString(result))
}
