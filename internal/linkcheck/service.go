// Package linkcheck verifies that internal links in a rendered tree resolve
// within that tree, so a run never uploads a site with dead navigation.
package linkcheck

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/fenrik/blogpub/internal/logfields"
	"github.com/fenrik/blogpub/internal/render"
)

// BrokenLink describes one unresolvable internal link.
type BrokenLink struct {
	SourcePath string `json:"source_path"`
	Href       string `json:"href"`
	Resolved   string `json:"resolved"`
}

func (b BrokenLink) String() string {
	return fmt.Sprintf("%s -> %s (resolved %s)", b.SourcePath, b.Href, b.Resolved)
}

// Service checks rendered trees. Reporter is optional; when set, every broken
// link is also published as an event (see NATSReporter).
type Service struct {
	baseURL  string
	Reporter Reporter
}

// Reporter receives broken-link reports.
type Reporter interface {
	ReportBrokenLink(link BrokenLink) error
}

// NewService creates a link check service for a site base URL.
func NewService(baseURL string) *Service {
	return &Service{baseURL: strings.TrimRight(baseURL, "/")}
}

// Check extracts every href/src from the tree's HTML files and verifies the
// internal ones against the tree. It returns all broken links found; a
// non-empty result is a verify-stage failure for the caller.
func (s *Service) Check(tree render.Tree) ([]BrokenLink, error) {
	var broken []BrokenLink

	for _, path := range tree.Paths() {
		if !strings.HasSuffix(path, ".html") {
			continue
		}
		links, err := extractLinks(tree[path])
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		for _, href := range links {
			target, internal := s.resolve(path, href)
			if !internal {
				continue
			}
			if _, ok := tree[target]; ok {
				continue
			}
			b := BrokenLink{SourcePath: path, Href: href, Resolved: target}
			broken = append(broken, b)
			if s.Reporter != nil {
				if err := s.Reporter.ReportBrokenLink(b); err != nil {
					slog.Warn("Failed to report broken link", logfields.Error(err))
				}
			}
		}
	}

	sort.Slice(broken, func(i, j int) bool {
		if broken[i].SourcePath != broken[j].SourcePath {
			return broken[i].SourcePath < broken[j].SourcePath
		}
		return broken[i].Href < broken[j].Href
	})
	return broken, nil
}

// resolve maps an href to a tree path. The second return is false for
// external links (other hosts, mailto, fragments), which are not checked.
func (s *Service) resolve(sourcePath, href string) (string, bool) {
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Scheme != "" || u.Host != "" {
		full := u.Scheme + "://" + u.Host
		if s.baseURL == "" || !strings.HasPrefix(s.baseURL, full) {
			return "", false
		}
		// Same host as the site: check like an absolute path.
	}

	p := u.Path
	if p == "" {
		return "", false
	}

	if !strings.HasPrefix(p, "/") {
		// Relative to the source file's directory.
		dir := ""
		if idx := strings.LastIndex(sourcePath, "/"); idx >= 0 {
			dir = sourcePath[:idx+1]
		}
		p = "/" + dir + p
	}

	trailing := strings.HasSuffix(p, "/")
	resolved := strings.TrimPrefix(path.Clean(p), "/")
	if resolved == "" || resolved == "." {
		return "index.html", true
	}
	if trailing {
		resolved += "/index.html"
	}
	return resolved, true
}

// extractLinks collects a[href], img[src], link[href] and script[src] values.
func extractLinks(doc []byte) ([]string, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}

	var links []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			var attr string
			switch n.Data {
			case "a", "link":
				attr = "href"
			case "img", "script":
				attr = "src"
			}
			if attr != "" {
				for _, a := range n.Attr {
					if a.Key == attr && a.Val != "" {
						links = append(links, a.Val)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return links, nil
}
