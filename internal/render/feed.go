package render

import (
	"github.com/gorilla/feeds"

	"github.com/fenrik/blogpub/internal/theme"
)

// feed builds the Atom feed for the published posts.
//
// Timestamps come from the posts themselves (Updated is the newest post's
// date), keeping feed output byte-stable across rebuilds of unchanged content.
func (r *Renderer) feed(site theme.Site, posts []theme.Post) ([]byte, error) {
	feed := &feeds.Feed{
		Title:       site.Title,
		Link:        &feeds.Link{Href: site.BaseURL + "/"},
		Description: site.Description,
	}
	if site.Author != "" {
		feed.Author = &feeds.Author{Name: site.Author}
	}
	if len(posts) > 0 {
		feed.Updated = posts[0].Date
	}

	for _, p := range posts {
		item := &feeds.Item{
			Id:      p.Permalink,
			Title:   p.Title,
			Link:    &feeds.Link{Href: p.Permalink},
			Created: p.Date,
			Updated: p.Date,
		}
		if len(p.Authors) > 0 {
			item.Author = &feeds.Author{Name: p.Authors[0]}
		}
		feed.Items = append(feed.Items, item)
	}

	atom, err := feed.ToAtom()
	if err != nil {
		return nil, err
	}
	return []byte(atom), nil
}
