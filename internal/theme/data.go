package theme

import (
	"html/template"
	"time"
)

// Site is the site-wide context passed to every layout.
type Site struct {
	Title       string
	BaseURL     string
	Author      string
	Description string

	// Year is derived from the newest published entry, not the wall clock,
	// so unchanged content renders byte-identically.
	Year int

	// HasAbout tells layouts whether an About page exists, so navigation
	// never links to a page that was not rendered.
	HasAbout bool
}

// Tag pairs a tag's display name with its URL slug.
type Tag struct {
	Name string
	Slug string
}

// Post is a rendered entry as seen by layouts.
type Post struct {
	Slug      string
	Title     string
	Authors   []string
	Date      time.Time
	Tags      []Tag
	Permalink string
	HTML      template.HTML
}

// IndexData is the context for the "index" layout.
type IndexData struct {
	Site  Site
	Posts []Post
	Tags  []Tag
}

// PostData is the context for the "post" layout.
type PostData struct {
	Site Site
	Post Post
}

// TagData is the context for the "tag" layout.
type TagData struct {
	Site  Site
	Tag   string
	Posts []Post
}

// AboutData is the context for the "about" layout.
type AboutData struct {
	Site  Site
	Title string
	HTML  template.HTML
}
