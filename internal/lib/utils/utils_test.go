package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Web Development":       "web-development",
		"  Café  & Crème 101 ":  "cafe-creme-101",
		"Go/Rust --- Systems!!": "go-rust-systems",
		"Ünïcödé":               "unicode",
		"---":                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
	}
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 0, TotalPages(0, 20))
	assert.Equal(t, 1, TotalPages(20, 20))
	assert.Equal(t, 2, TotalPages(21, 20))
	assert.Equal(t, 0, TotalPages(5, 0))
}

func TestDeref(t *testing.T) {
	assert.Equal(t, "x", Deref(nil, "x"))
	assert.Equal(t, 3, Deref(Ptr(3), 0))
}
