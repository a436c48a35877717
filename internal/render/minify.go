package render

import (
	"fmt"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
)

// Minify minifies the HTML and CSS files of a rendered tree in place.
// Other file types pass through untouched.
func Minify(tree Tree) error {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)

	for _, path := range tree.Paths() {
		var mediatype string
		switch {
		case strings.HasSuffix(path, ".html"):
			mediatype = "text/html"
		case strings.HasSuffix(path, ".css"):
			mediatype = "text/css"
		default:
			continue
		}

		out, err := m.Bytes(mediatype, tree[path])
		if err != nil {
			return fmt.Errorf("minify %s: %w", path, err)
		}
		tree[path] = out
	}

	return nil
}
