// Package gequbao implements a client for the gequbao.com music site.
// Searching is a two-step affair: the search page lists candidates with
// their detail-page ids, and each detail page must be fetched separately
// to obtain the actual playable URL.
package gequbao

// Candidate is one entry from the search results page, before its playable
// URL has been resolved.
type Candidate struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

// Track is a fully resolved track. URL is always non-empty; candidates
// without a resolvable URL are dropped instead.
type Track struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	ArtworkURL string `json:"artworkUrl"`
	LyricsURL  string `json:"lrcUrl,omitempty"`
	Lyrics     string `json:"-"`
}
