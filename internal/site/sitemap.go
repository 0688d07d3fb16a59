package site

import (
	"encoding/xml"
	"time"

	"platen/internal/post"
)

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// buildSitemap lists the home page, every post, and every archive page.
// extraPaths carries the archive permalinks the builder assembled.
func buildSitemap(meta feedMeta, posts []*post.Post, extraPaths []string) ([]byte, error) {
	set := urlSet{
		XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs:  []sitemapURL{{Loc: joinURL(meta.BaseURL, "/")}},
	}

	for _, p := range posts {
		u := sitemapURL{Loc: joinURL(meta.BaseURL, p.Permalink)}
		if !p.Meta.Date.IsZero() {
			u.LastMod = p.Meta.Date.UTC().Format(time.DateOnly)
		}
		set.URLs = append(set.URLs, u)
	}

	for _, path := range extraPaths {
		set.URLs = append(set.URLs, sitemapURL{Loc: joinURL(meta.BaseURL, path)})
	}

	return marshalXML(set)
}
