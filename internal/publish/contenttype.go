package publish

import (
	"mime"
	"path"
)

// contentType resolves the Content-Type header for an output path. Blob
// storage serves exactly what it is told, so getting this right is what makes
// the container usable as a website.
func contentType(outputPath string) string {
	switch ext := path.Ext(outputPath); ext {
	case ".html":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".xml":
		return "application/xml; charset=utf-8"
	case ".js":
		return "text/javascript; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}
