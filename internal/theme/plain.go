package theme

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed plain/templates/*.tmpl
var plainTemplates embed.FS

//go:embed plain/assets
var plainAssets embed.FS

// plainTheme is the built-in default theme: semantic HTML, a single
// stylesheet, no scripts.
type plainTheme struct{}

func init() {
	Register(plainTheme{})
}

func (plainTheme) Name() string    { return "plain" }
func (plainTheme) Version() string { return "1" }

func (plainTheme) Templates() (*template.Template, error) {
	return template.New("plain").Funcs(Funcs()).ParseFS(plainTemplates, "plain/templates/*.tmpl")
}

func (plainTheme) Assets() fs.FS {
	sub, err := fs.Sub(plainAssets, "plain/assets")
	if err != nil {
		return nil
	}
	return sub
}

// Funcs returns the helper functions available to all theme layouts.
func Funcs() template.FuncMap {
	return template.FuncMap{
		"isoDate":   func(d interface{ Format(string) string }) string { return d.Format("2006-01-02") },
		"humanDate": func(d interface{ Format(string) string }) string { return d.Format("January 2, 2006") },
	}
}
