package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"strips scheme and www", "https://www.github.com/foo/bar", "github.com/foo/bar"},
		{"strips query", "https://github.com/foo/bar?ref=newsletter&utm_source=x", "github.com/foo/bar"},
		{"strips fragment", "https://github.com/foo/bar#readme", "github.com/foo/bar"},
		{"strips trailing slash", "https://github.com/foo/bar/", "github.com/foo/bar"},
		{"http equals https", "http://github.com/foo/bar", "github.com/foo/bar"},
		{"lowercases host", "https://GitHub.com/Foo/Bar", "github.com/Foo/Bar"},
		{"bare host", "https://marimo.io", "marimo.io"},
		{"empty input", "", ""},
		{"no host", "not a url at all", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestNormalizeURL_Equivalences(t *testing.T) {
	// all spellings of the same page normalize identically
	variants := []string{
		"https://www.example.com/post/1",
		"http://example.com/post/1/",
		"https://example.com/post/1?utm_source=newsletter",
		"https://example.com/post/1#section",
	}
	want := NormalizeURL(variants[0])
	assert.NotEmpty(t, want)
	for _, v := range variants {
		assert.Equal(t, want, NormalizeURL(v), "variant %s", v)
	}
}
