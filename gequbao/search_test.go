package gequbao

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchMusicEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/s/周杰伦 七里香":
			fmt.Fprint(w, `<div class="card-text">
				<a class="music-link" href="/music/123"><span class="music-title">七里香</span><small>周杰伦</small></a>
			</div>`)
		case r.URL.Path == "/music/123":
			fmt.Fprint(w, `<script>window.appData = {"play_id":"p123","mp3_title":"七里香","mp3_author":"周杰伦","mp3_cover":"https://cover-url.com/cover.jpg"};</script>`)
		case r.URL.Path == "/api/play-url":
			fmt.Fprint(w, `{"code":1,"data":{"url":"https://music-url.com/play.mp3"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil, nil)
	tracks, err := client.SearchMusic(context.Background(), "周杰伦 七里香")
	if err != nil {
		t.Fatalf("SearchMusic returned error: %v", err)
	}

	if len(tracks) != 1 {
		t.Fatalf("Expected 1 track, got %d", len(tracks))
	}
	want := Track{
		URL:        "https://music-url.com/play.mp3",
		Title:      "七里香",
		Artist:     "周杰伦",
		ArtworkURL: "https://cover-url.com/cover.jpg",
	}
	if tracks[0] != want {
		t.Errorf("Expected %+v, got %+v", want, tracks[0])
	}
}

func TestSearchMusicZeroMatches(t *testing.T) {
	upstream := newUpstreamStub()
	defer upstream.server.Close()
	upstream.searchHTML = `<html><body>empty</body></html>`
	client := upstream.client(t, 0)

	tracks, err := client.SearchMusic(context.Background(), "nosuchsong")
	if err != nil {
		t.Fatalf("Expected nil error, got %v", err)
	}
	if len(tracks) != 0 {
		t.Errorf("Expected empty result, got %d tracks", len(tracks))
	}
	if hits := upstream.detailHits.Load(); hits != 0 {
		t.Errorf("Expected no detail requests, got %d", hits)
	}
}

func TestSearchMusicInvalidInput(t *testing.T) {
	upstream := newUpstreamStub()
	defer upstream.server.Close()
	client := upstream.client(t, 0)

	_, err := client.SearchMusic(context.Background(), "   ")
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	if hits := upstream.searchHits.Load(); hits != 0 {
		t.Errorf("Expected no network calls, got %d", hits)
	}
}

// A single candidate's failure drops that candidate only; the rest keep
// their relative order.
func TestSearchMusicDropsFailedCandidate(t *testing.T) {
	upstream := newUpstreamStub()
	defer upstream.server.Close()
	upstream.failDetailIDs["456"] = true
	client := upstream.client(t, 0)

	tracks, err := client.SearchMusic(context.Background(), "周杰伦")
	if err != nil {
		t.Fatalf("SearchMusic returned error: %v", err)
	}

	if len(tracks) != 2 {
		t.Fatalf("Expected 2 tracks (one dropped), got %d", len(tracks))
	}
	if tracks[0].URL != "https://music-url.com/123.mp3" {
		t.Errorf("Unexpected first track URL '%s'", tracks[0].URL)
	}
	if tracks[1].URL != "https://music-url.com/789.mp3" {
		t.Errorf("Unexpected second track URL '%s'", tracks[1].URL)
	}
}

func TestSearchMusicDropsUnavailableCandidate(t *testing.T) {
	upstream := newUpstreamStub()
	defer upstream.server.Close()
	upstream.unavailableIDs["123"] = true
	upstream.unavailableIDs["789"] = true
	client := upstream.client(t, 0)

	tracks, err := client.SearchMusic(context.Background(), "周杰伦")
	if err != nil {
		t.Fatalf("SearchMusic returned error: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("Expected 1 track, got %d", len(tracks))
	}
	if tracks[0].Title != "Title 456" {
		t.Errorf("Unexpected surviving track '%s'", tracks[0].Title)
	}
}

func TestSearchMusicEveryTrackHasURL(t *testing.T) {
	upstream := newUpstreamStub()
	defer upstream.server.Close()
	upstream.unavailableIDs["456"] = true
	client := upstream.client(t, 0)

	tracks, err := client.SearchMusic(context.Background(), "周杰伦")
	if err != nil {
		t.Fatalf("SearchMusic returned error: %v", err)
	}
	for i, track := range tracks {
		if track.URL == "" {
			t.Errorf("Track %d has an empty URL: %+v", i, track)
		}
	}
}

func TestSearchMusicBoundedConcurrency(t *testing.T) {
	upstream := newUpstreamStub()
	defer upstream.server.Close()

	client := NewClient(Config{
		BaseURL:            upstream.server.URL,
		ResolveConcurrency: 1,
	}, nil, nil)

	tracks, err := client.SearchMusic(context.Background(), "周杰伦")
	if err != nil {
		t.Fatalf("SearchMusic returned error: %v", err)
	}
	if len(tracks) != 3 {
		t.Fatalf("Expected 3 tracks, got %d", len(tracks))
	}
	// Sequential resolution must still match the search page's order.
	wantTitles := []string{"Title 123", "Title 456", "Title 789"}
	for i, want := range wantTitles {
		if tracks[i].Title != want {
			t.Errorf("Track %d: expected '%s', got '%s'", i, want, tracks[i].Title)
		}
	}
}
