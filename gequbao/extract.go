package gequbao

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// The detail page carries its metadata as a JSON blob assigned to
// window.appData inside an inline script tag.
var appDataRe = regexp.MustCompile(`(?s)window\.appData\s*=\s*(\{.*?\});`)

var errAppDataNotFound = errors.New("appData script not found in detail page")

// appData mirrors the fields of the window.appData object we care about.
type appData struct {
	PlayID    string `json:"play_id"`
	Title     string `json:"mp3_title"`
	Artist    string `json:"mp3_author"`
	Cover     string `json:"mp3_cover"`
	LyricsURL string `json:"lrc_url"`
}

// trackDetail is everything extracted from a single detail page.
type trackDetail struct {
	appData
	Lyrics string
}

// extractCandidates parses a search results page. Each result is an
// <a class="music-link"> inside the card-text block, with the detail link
// in href ("/music/<id>"), the title in span.music-title and the artist in
// a <small> tag. Entries missing any of these are skipped; page structure
// is an external contract and parsing is best-effort.
func extractCandidates(r io.Reader) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	doc.Find("div.card-text a.music-link").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || !strings.HasPrefix(href, "/music/") {
			return
		}
		id := strings.Trim(strings.TrimPrefix(href, "/music/"), "/")
		title := strings.TrimSpace(s.Find("span.music-title").Text())
		artist := strings.TrimSpace(s.Find("small").Text())
		if id == "" || title == "" {
			return
		}
		candidates = append(candidates, Candidate{ID: id, Title: title, Artist: artist})
	})

	return candidates, nil
}

// extractDetail parses a track detail page: the appData JSON from the inline
// scripts plus the lyrics text from div#content-lrc. Returns
// errAppDataNotFound when no script on the page carries appData.
func extractDetail(r io.Reader) (*trackDetail, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	detail := &trackDetail{Lyrics: lyricsText(doc.Find("div#content-lrc"))}

	found := false
	var parseErr error
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		m := appDataRe.FindStringSubmatch(s.Text())
		if m == nil {
			return true
		}
		if err := json.Unmarshal([]byte(m[1]), &detail.appData); err != nil {
			parseErr = err
			return false
		}
		found = true
		return false
	})

	if parseErr != nil {
		return nil, parseErr
	}
	if !found {
		return nil, errAppDataNotFound
	}
	return detail, nil
}

// lyricsText flattens the lyrics container to plain text, turning <br>
// separators into newlines.
func lyricsText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	var b strings.Builder
	sel.Contents().Each(func(_ int, node *goquery.Selection) {
		if node.Is("br") {
			b.WriteString("\n")
			return
		}
		b.WriteString(node.Text())
	})
	return strings.TrimSpace(b.String())
}
