// Package render turns parsed entries plus a theme into the static site tree.
//
// Rendering is a pure function of content and theme: entries are processed in
// a fixed order, no wall-clock values leak into the output, and the resulting
// tree is returned as an in-memory map keyed by slash-separated output path.
package render

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/niklasfasching/go-org/org"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	htmltmpl "html/template"

	"github.com/fenrik/blogpub/internal/config"
	"github.com/fenrik/blogpub/internal/content"
	"github.com/fenrik/blogpub/internal/logfields"
	"github.com/fenrik/blogpub/internal/theme"
)

// Tree is a rendered site: output path (slash-separated, relative) -> bytes.
type Tree map[string][]byte

// Paths returns the tree's output paths in sorted order.
func (t Tree) Paths() []string {
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Renderer renders entries with a named theme.
type Renderer struct {
	site config.SiteConfig
	md   goldmark.Markdown
}

// New creates a renderer for the given site configuration.
func New(site config.SiteConfig) *Renderer {
	return &Renderer{
		site: site,
		md:   goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Render produces the full output tree: one page per published entry, the
// index, per-tag pages, the About page, the Atom feed and theme assets.
// Draft entries are excluded from every output. Any entry that fails to
// convert aborts the render. The caller resolves th so per-run themes from
// the content checkout and built-in themes render the same way.
func (r *Renderer) Render(th theme.Theme, entries []*content.Entry, about *content.Entry) (Tree, error) {
	tmpl, err := th.Templates()
	if err != nil {
		return nil, err
	}

	published := make([]*content.Entry, 0, len(entries))
	for _, e := range entries {
		if e.Published() {
			published = append(published, e)
		}
	}

	site := theme.Site{
		Title:       r.site.Title,
		BaseURL:     strings.TrimRight(r.site.BaseURL, "/"),
		Author:      r.site.Author,
		Description: r.site.Description,
		HasAbout:    about != nil,
	}
	if len(published) > 0 {
		site.Year = published[0].Date.Year()
	}

	tree := make(Tree)

	posts := make([]theme.Post, 0, len(published))
	for _, e := range published {
		html, err := r.convert(e)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", e.SourcePath, err)
		}
		posts = append(posts, theme.Post{
			Slug:      e.Slug,
			Title:     e.Title,
			Authors:   e.Authors,
			Date:      e.Date,
			Tags:      tagRefs(e.Tags),
			Permalink: site.BaseURL + "/posts/" + e.Slug + "/",
			HTML:      htmltmpl.HTML(html),
		})
	}

	for _, p := range posts {
		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, "post", theme.PostData{Site: site, Post: p}); err != nil {
			return nil, fmt.Errorf("render post %s: %w", p.Slug, err)
		}
		tree["posts/"+p.Slug+"/index.html"] = buf.Bytes()
	}

	allTags := collectTags(posts)
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "index", theme.IndexData{Site: site, Posts: posts, Tags: allTags}); err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}
	tree["index.html"] = buf.Bytes()

	for _, tag := range allTags {
		tagged := make([]theme.Post, 0)
		for _, p := range posts {
			for _, t := range p.Tags {
				if t.Slug == tag.Slug {
					tagged = append(tagged, p)
					break
				}
			}
		}
		var buf bytes.Buffer
		if err := tmpl.ExecuteTemplate(&buf, "tag", theme.TagData{Site: site, Tag: tag.Name, Posts: tagged}); err != nil {
			return nil, fmt.Errorf("render tag %s: %w", tag.Name, err)
		}
		tree["tags/"+tag.Slug+"/index.html"] = buf.Bytes()
	}

	if about != nil {
		html, err := r.convert(about)
		if err != nil {
			return nil, fmt.Errorf("render about page: %w", err)
		}
		var buf bytes.Buffer
		data := theme.AboutData{Site: site, Title: about.Title, HTML: htmltmpl.HTML(html)}
		if err := tmpl.ExecuteTemplate(&buf, "about", data); err != nil {
			return nil, fmt.Errorf("render about page: %w", err)
		}
		tree["about/index.html"] = buf.Bytes()
	}

	feed, err := r.feed(site, posts)
	if err != nil {
		return nil, fmt.Errorf("render feed: %w", err)
	}
	tree["atom.xml"] = feed

	if assets := th.Assets(); assets != nil {
		if err := copyAssets(tree, assets); err != nil {
			return nil, fmt.Errorf("copy theme assets: %w", err)
		}
	}

	slog.Info("Site rendered",
		logfields.Theme(th.Name()),
		slog.String("theme_version", th.Version()),
		slog.Int("posts", len(posts)),
		slog.Int("files", len(tree)))
	return tree, nil
}

// convert renders an entry body to HTML according to its source format.
func (r *Renderer) convert(e *content.Entry) (string, error) {
	switch e.Format {
	case content.FormatMarkdown:
		var buf bytes.Buffer
		if err := r.md.Convert(e.Body, &buf); err != nil {
			return "", err
		}
		return buf.String(), nil

	case content.FormatOrg:
		doc := org.New().Parse(bytes.NewReader(e.Body), e.SourcePath)
		if doc.Error != nil {
			return "", doc.Error
		}
		return doc.Write(org.NewHTMLWriter())

	default:
		return "", fmt.Errorf("unsupported entry format %q", e.Format)
	}
}

func tagRefs(tags []string) []theme.Tag {
	refs := make([]theme.Tag, 0, len(tags))
	for _, t := range tags {
		refs = append(refs, theme.Tag{Name: t, Slug: content.Slugify(t)})
	}
	return refs
}

// collectTags returns the distinct tags across posts, sorted by slug.
func collectTags(posts []theme.Post) []theme.Tag {
	seen := make(map[string]theme.Tag)
	for _, p := range posts {
		for _, t := range p.Tags {
			if _, ok := seen[t.Slug]; !ok {
				seen[t.Slug] = t
			}
		}
	}
	tags := make([]theme.Tag, 0, len(seen))
	for _, t := range seen {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].Slug < tags[j].Slug })
	return tags
}

func copyAssets(tree Tree, assets fs.FS) error {
	return fs.WalkDir(assets, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(assets, path)
		if err != nil {
			return err
		}
		tree["assets/"+path] = data
		return nil
	})
}
