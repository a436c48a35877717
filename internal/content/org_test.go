package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrgMeta_FullHeader_ExtractsAllFields(t *testing.T) {
	src := []byte(`#+TITLE: Winter Hiking
#+AUTHOR: Fenrik
#+DATE: <2024-03-09 Sat>
#+FILETAGS: :hiking:winter:
#+DRAFT: t

* First heading

Some body text.
`)

	title, authors, date, tags, draft, err := parseOrgMeta(src, "winter.org")
	require.NoError(t, err)
	assert.Equal(t, "Winter Hiking", title)
	assert.Equal(t, []string{"Fenrik"}, authors)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), date)
	assert.Equal(t, []string{"hiking", "winter"}, tags)
	assert.True(t, draft)
}

func TestParseOrgMeta_MinimalHeader_NoOptionalFields(t *testing.T) {
	src := []byte("#+TITLE: Short\n#+DATE: 2024-01-01\n\nBody.\n")

	title, authors, date, tags, draft, err := parseOrgMeta(src, "short.org")
	require.NoError(t, err)
	assert.Equal(t, "Short", title)
	assert.Nil(t, authors)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), date)
	assert.Nil(t, tags)
	assert.False(t, draft)
}

func TestParseOrgDate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{"active timestamp", "<2024-03-09 Sat>", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), false},
		{"inactive timestamp", "[2024-03-09]", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), false},
		{"bare date", "2024-03-09", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), false},
		{"timestamp with time", "<2024-03-09 Sat 14:00>", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), false},
		{"garbage", "not a date", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOrgDate(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOrgTags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"colon separated", ":go:blog:", []string{"go", "blog"}},
		{"space separated", "go blog", []string{"go", "blog"}},
		{"empty", "", nil},
		{"only colons", ":::", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseOrgTags(tt.in))
		})
	}
}
