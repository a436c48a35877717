// Package content loads blog entries from a fetched content tree.
//
// An entry is a single post or page source document: org-mode or Markdown,
// with metadata (title, authors, date, tags, draft flag) carried in org
// keywords or YAML frontmatter. Entries are parsed fresh every run and never
// mutated in place.
package content

import (
	"time"
)

// Format identifies an entry's source markup.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatOrg      Format = "org"
)

// Entry is a parsed content entry. Body is the raw markup with metadata
// stripped; rendering to HTML happens in internal/render.
type Entry struct {
	Slug    string
	Title   string
	Authors []string
	Date    time.Time
	Tags    []string
	Draft   bool
	Format  Format

	// SourcePath is the path relative to the content root, for diagnostics.
	SourcePath string

	Body []byte
}

// Published reports whether the entry should appear in rendered output.
func (e *Entry) Published() bool {
	return !e.Draft
}
