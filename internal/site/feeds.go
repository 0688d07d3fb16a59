package site

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"platen/internal/post"
)

// feedLimit caps how many posts the feeds carry.
const feedLimit = 20

// joinURL glues a base URL and an absolute-style path.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// ====== RSS 2.0 ======

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language,omitempty"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	GUID        string `xml:"guid"`
	PubDate     string `xml:"pubDate,omitempty"`
	Category    string `xml:"category,omitempty"`
	Description string `xml:"description,omitempty"`
}

// buildRSS renders the RSS 2.0 feed. Posts must arrive newest first; the
// channel timestamp derives from the newest post, not the build clock, so
// identical sources produce identical bytes.
func buildRSS(meta feedMeta, posts []*post.Post) ([]byte, error) {
	feed := rssFeed{
		Version: "2.0",
		Channel: rssChannel{
			Title:       meta.Title,
			Link:        meta.BaseURL,
			Description: meta.Description,
			Language:    meta.Language,
		},
	}

	// Undated documents are standalone pages, not feed entries.
	for _, p := range posts {
		if p.Meta.Date.IsZero() {
			continue
		}
		if len(feed.Channel.Items) >= feedLimit {
			break
		}
		feed.Channel.Items = append(feed.Channel.Items, rssItem{
			Title:       p.Meta.Title,
			Link:        joinURL(meta.BaseURL, p.Permalink),
			GUID:        joinURL(meta.BaseURL, p.Permalink),
			PubDate:     p.Meta.Date.UTC().Format(time.RFC1123Z),
			Category:    p.Meta.Category,
			Description: p.Summary,
		})
	}

	if len(feed.Channel.Items) > 0 {
		feed.Channel.LastBuildDate = feed.Channel.Items[0].PubDate
	}

	return marshalXML(feed)
}

// ====== Atom ======

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	XMLNS   string      `xml:"xmlns,attr"`
	Title   string      `xml:"title"`
	ID      string      `xml:"id"`
	Updated string      `xml:"updated"`
	Links   []atomLink  `xml:"link"`
	Author  *atomAuthor `xml:"author,omitempty"`
	Entries []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr,omitempty"`
	Type string `xml:"type,attr,omitempty"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomEntry struct {
	Title   string     `xml:"title"`
	ID      string     `xml:"id"`
	Updated string     `xml:"updated"`
	Links   []atomLink `xml:"link"`
	Summary string     `xml:"summary,omitempty"`
}

// buildAtom renders the Atom feed, same ordering and determinism rules as
// buildRSS.
func buildAtom(meta feedMeta, posts []*post.Post) ([]byte, error) {
	feed := atomFeed{
		XMLNS: "http://www.w3.org/2005/Atom",
		Title: meta.Title,
		ID:    joinURL(meta.BaseURL, "/"),
		Links: []atomLink{
			{Href: joinURL(meta.BaseURL, "atom.xml"), Rel: "self", Type: "application/atom+xml"},
			{Href: joinURL(meta.BaseURL, "/")},
		},
	}
	if meta.Author != "" {
		feed.Author = &atomAuthor{Name: meta.Author}
	}

	updated := time.Time{}
	for _, p := range posts {
		if p.Meta.Date.IsZero() {
			continue
		}
		if len(feed.Entries) >= feedLimit {
			break
		}
		if updated.IsZero() {
			updated = p.Meta.Date
		}
		feed.Entries = append(feed.Entries, atomEntry{
			Title:   p.Meta.Title,
			ID:      joinURL(meta.BaseURL, p.Permalink),
			Updated: p.Meta.Date.UTC().Format(time.RFC3339),
			Links:   []atomLink{{Href: joinURL(meta.BaseURL, p.Permalink)}},
			Summary: p.Summary,
		})
	}
	feed.Updated = updated.UTC().Format(time.RFC3339)

	return marshalXML(feed)
}

// feedMeta is the slice of site config the feeds need.
type feedMeta struct {
	Title       string
	BaseURL     string
	Description string
	Author      string
	Language    string
}

func marshalXML(v any) ([]byte, error) {
	data, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal feed: %w", err)
	}
	return append([]byte(xml.Header), append(data, '\n')...), nil
}
