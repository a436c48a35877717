package content

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/niklasfasching/go-org/org"
)

// parseOrgMeta extracts entry metadata from org buffer settings
// (#+TITLE, #+AUTHOR, #+DATE, #+FILETAGS, #+DRAFT).
//
// The body stays the full org source; go-org skips the keyword lines when
// rendering, so stripping them here is unnecessary.
func parseOrgMeta(src []byte, path string) (title string, authors []string, date time.Time, tags []string, draft bool, err error) {
	doc := org.New().Parse(bytes.NewReader(src), path)
	if doc.Error != nil {
		return "", nil, time.Time{}, nil, false, fmt.Errorf("parse org document: %w", doc.Error)
	}

	settings := doc.BufferSettings

	title = strings.TrimSpace(settings["TITLE"])

	if author := strings.TrimSpace(settings["AUTHOR"]); author != "" {
		authors = []string{author}
	}

	if raw := strings.TrimSpace(settings["DATE"]); raw != "" {
		date, err = parseOrgDate(raw)
		if err != nil {
			return "", nil, time.Time{}, nil, false, err
		}
	}

	tags = parseOrgTags(settings["FILETAGS"])

	switch strings.ToLower(strings.TrimSpace(settings["DRAFT"])) {
	case "t", "true", "yes":
		draft = true
	}

	return title, authors, date, tags, draft, nil
}

// parseOrgDate parses org date keywords: "<2024-03-09 Sat>", "[2024-03-09]"
// or a bare "2024-03-09".
func parseOrgDate(raw string) (time.Time, error) {
	raw = strings.Trim(raw, "<>[]")
	if len(raw) >= 10 {
		raw = raw[:10]
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid org date %q: %w", raw, err)
	}
	return t, nil
}

// parseOrgTags splits FILETAGS in either ":a:b:" or space-separated form.
func parseOrgTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var parts []string
	if strings.Contains(raw, ":") {
		parts = strings.Split(raw, ":")
	} else {
		parts = strings.Fields(raw)
	}

	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
