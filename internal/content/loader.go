package content

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fenrik/blogpub/internal/logfields"
)

// Loader walks a content tree and parses every entry in it.
type Loader struct {
	root string // content repository checkout
	dir  string // posts directory inside the checkout
}

// NewLoader creates a loader for a fetched content root.
func NewLoader(root, dir string) *Loader {
	return &Loader{root: root, dir: dir}
}

// Load parses every org/markdown entry under the posts directory.
//
// Any malformed entry is a hard error: the publish pipeline must not upload a
// partially parsed site. Entries are returned sorted newest-first with slug as
// tie-breaker, so downstream rendering is deterministic.
func (l *Loader) Load() ([]*Entry, error) {
	postsDir := filepath.Join(l.root, filepath.FromSlash(l.dir))
	if _, err := os.Stat(postsDir); err != nil {
		return nil, fmt.Errorf("posts directory not found: %s", postsDir)
	}

	var entries []*Entry
	err := filepath.WalkDir(postsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Nested content module checkouts carry their own .git.
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !isEntryFile(path) {
			return nil
		}

		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}

		entry, err := ParseFile(path, filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}

		entries = append(entries, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.After(entries[j].Date)
		}
		return entries[i].Slug < entries[j].Slug
	})

	seen := make(map[string]string, len(entries))
	for _, e := range entries {
		if prev, dup := seen[e.Slug]; dup {
			return nil, fmt.Errorf("duplicate slug %q (%s and %s)", e.Slug, prev, e.SourcePath)
		}
		seen[e.Slug] = e.SourcePath
	}

	slog.Info("Content loaded", slog.Int("entries", len(entries)), logfields.Path(postsDir))
	return entries, nil
}

// ParseFile parses a single entry source file. sourcePath is the slash-
// separated path relative to the content root, used for diagnostics and as
// the slug source.
func ParseFile(path, sourcePath string) (*Entry, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	return Parse(src, sourcePath)
}

// Parse parses entry source bytes.
func Parse(src []byte, sourcePath string) (*Entry, error) {
	entry := &Entry{
		SourcePath: sourcePath,
		Slug:       Slugify(stem(sourcePath)),
	}

	switch {
	case strings.HasSuffix(sourcePath, ".org"):
		entry.Format = FormatOrg
		title, authors, date, tags, draft, err := parseOrgMeta(src, sourcePath)
		if err != nil {
			return nil, err
		}
		entry.Title, entry.Authors, entry.Date, entry.Tags, entry.Draft = title, authors, date, tags, draft
		entry.Body = src

	case strings.HasSuffix(sourcePath, ".md"), strings.HasSuffix(sourcePath, ".markdown"):
		entry.Format = FormatMarkdown
		fm, body, had, err := splitFrontmatter(src)
		if err != nil {
			return nil, err
		}
		if had {
			fields, err := parseFrontmatterYAML(fm)
			if err != nil {
				return nil, fmt.Errorf("parse frontmatter: %w", err)
			}
			if err := applyFrontmatter(entry, fields); err != nil {
				return nil, err
			}
		}
		entry.Body = body

	default:
		return nil, fmt.Errorf("unsupported entry format: %s", sourcePath)
	}

	if entry.Title == "" {
		return nil, fmt.Errorf("entry has no title")
	}
	if entry.Date.IsZero() {
		return nil, fmt.Errorf("entry has no date")
	}

	return entry, nil
}

func applyFrontmatter(entry *Entry, fields map[string]any) error {
	if v, ok := fields["title"]; ok {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("frontmatter title must be a string")
		}
		entry.Title = s
	}

	switch v := fields["author"].(type) {
	case string:
		entry.Authors = []string{v}
	case []any:
		for _, a := range v {
			s, ok := a.(string)
			if !ok {
				return fmt.Errorf("frontmatter author list must contain strings")
			}
			entry.Authors = append(entry.Authors, s)
		}
	case nil:
	default:
		return fmt.Errorf("frontmatter author must be a string or list")
	}

	if v, ok := fields["date"]; ok {
		switch d := v.(type) {
		case time.Time:
			entry.Date = d
		case string:
			parsed, err := parseDate(d)
			if err != nil {
				return err
			}
			entry.Date = parsed
		default:
			return fmt.Errorf("frontmatter date must be a date or string")
		}
	}

	if v, ok := fields["tags"]; ok {
		list, ok := v.([]any)
		if !ok {
			return fmt.Errorf("frontmatter tags must be a list")
		}
		for _, tag := range list {
			s, ok := tag.(string)
			if !ok {
				return fmt.Errorf("frontmatter tags must contain strings")
			}
			entry.Tags = append(entry.Tags, s)
		}
	}

	if v, ok := fields["draft"]; ok {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("frontmatter draft must be a boolean")
		}
		entry.Draft = b
	}

	if v, ok := fields["slug"]; ok {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("frontmatter slug must be a string")
		}
		entry.Slug = Slugify(s)
	}

	return nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func isEntryFile(path string) bool {
	switch filepath.Ext(path) {
	case ".org", ".md", ".markdown":
		return true
	}
	return false
}

func stem(sourcePath string) string {
	base := filepath.Base(filepath.FromSlash(sourcePath))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
