package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple title", "Hello World", "hello-world"},
		{"already a slug", "my-first-post", "my-first-post"},
		{"uppercase folded", "README", "readme"},
		{"diacritics folded", "Reisenotizen aus Österreich", "reisenotizen-aus-osterreich"},
		{"french accents", "déjà vu", "deja-vu"},
		{"punctuation collapsed", "Go 1.22: what's new?", "go-1-22-what-s-new"},
		{"leading and trailing junk", "  --Hello--  ", "hello"},
		{"numbers kept", "2024 in review", "2024-in-review"},
		{"empty input", "", ""},
		{"only punctuation", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}
