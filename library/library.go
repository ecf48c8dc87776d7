// Package library persists resolved tracks in a local SQLite database so
// that previously found music (and its lyrics) can be looked up without
// touching the upstream site again.
package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"musicsearch/gequbao"

	_ "modernc.org/sqlite"
)

// DefaultDBPath is where the library lives unless configured otherwise.
const DefaultDBPath = "~/.musicsearch/library.db"

const schema = `
CREATE TABLE IF NOT EXISTS tracks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	artist TEXT NOT NULL,
	url TEXT NOT NULL,
	artwork_url TEXT NOT NULL DEFAULT '',
	lyrics_url TEXT NOT NULL DEFAULT '',
	lyrics TEXT NOT NULL DEFAULT '',
	saved_at DATETIME NOT NULL,
	UNIQUE(title, artist)
);
CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);
`

// SavedTrack is a library row: a resolved track plus when it was saved.
type SavedTrack struct {
	ID      int64         `json:"id"`
	Track   gequbao.Track `json:"track"`
	SavedAt time.Time     `json:"saved_at"`
}

// Stats summarizes the library contents.
type Stats struct {
	TrackCount  int64 `json:"track_count"`
	ArtistCount int64 `json:"artist_count"`
	SizeBytes   int64 `json:"size_bytes"`
}

// Library wraps the SQLite handle. Safe for concurrent use.
type Library struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the library database at dbPath. A leading
// "~/" is expanded to the user's home directory.
func Open(dbPath string) (*Library, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if strings.HasPrefix(dbPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(home, dbPath[2:])
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", filepath.Dir(dbPath), err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Library{db: db, path: dbPath}, nil
}

// Close closes the database connection.
func (l *Library) Close() error {
	return l.db.Close()
}

// Path returns the database file path.
func (l *Library) Path() string {
	return l.path
}

// SaveTrack upserts a resolved track keyed by (title, artist).
func (l *Library) SaveTrack(track *gequbao.Track) error {
	if track == nil || track.URL == "" {
		return fmt.Errorf("refusing to save track without a url")
	}

	title := strings.TrimSpace(track.Title)
	artist := strings.TrimSpace(track.Artist)
	if title == "" {
		title = "未知歌曲"
	}
	if artist == "" {
		artist = "未知歌手"
	}

	_, err := l.db.Exec(`
		INSERT INTO tracks (title, artist, url, artwork_url, lyrics_url, lyrics, saved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(title, artist) DO UPDATE SET
			url = excluded.url,
			artwork_url = excluded.artwork_url,
			lyrics_url = excluded.lyrics_url,
			lyrics = excluded.lyrics,
			saved_at = excluded.saved_at`,
		title, artist, track.URL, track.ArtworkURL, track.LyricsURL, track.Lyrics, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save track: %w", err)
	}
	return nil
}

// LoadTrack looks up one saved track by exact title and artist. Returns
// sql.ErrNoRows when absent.
func (l *Library) LoadTrack(title, artist string) (*SavedTrack, error) {
	row := l.db.QueryRow(`
		SELECT id, title, artist, url, artwork_url, lyrics_url, lyrics, saved_at
		FROM tracks WHERE title = ? AND artist = ?`,
		strings.TrimSpace(title), strings.TrimSpace(artist))
	return scanTrack(row)
}

// ListTracks returns the most recently saved tracks, newest first.
func (l *Library) ListTracks(limit int) ([]SavedTrack, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.Query(`
		SELECT id, title, artist, url, artwork_url, lyrics_url, lyrics, saved_at
		FROM tracks ORDER BY saved_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks: %w", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

// SearchTracks matches saved tracks by substring on title or artist.
func (l *Library) SearchTracks(query string, limit int) ([]SavedTrack, error) {
	if limit <= 0 {
		limit = 50
	}
	pattern := "%" + strings.TrimSpace(query) + "%"
	rows, err := l.db.Query(`
		SELECT id, title, artist, url, artwork_url, lyrics_url, lyrics, saved_at
		FROM tracks
		WHERE title LIKE ? OR artist LIKE ?
		ORDER BY saved_at DESC, id DESC LIMIT ?`,
		pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search tracks: %w", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

// Stats returns library statistics.
func (l *Library) Stats() (*Stats, error) {
	var stats Stats
	if err := l.db.QueryRow(`SELECT COUNT(*), COUNT(DISTINCT artist) FROM tracks`).
		Scan(&stats.TrackCount, &stats.ArtistCount); err != nil {
		return nil, fmt.Errorf("failed to count tracks: %w", err)
	}
	if info, err := os.Stat(l.path); err == nil {
		stats.SizeBytes = info.Size()
	}
	return &stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(row rowScanner) (*SavedTrack, error) {
	var st SavedTrack
	err := row.Scan(&st.ID, &st.Track.Title, &st.Track.Artist, &st.Track.URL,
		&st.Track.ArtworkURL, &st.Track.LyricsURL, &st.Track.Lyrics, &st.SavedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func collectTracks(rows *sql.Rows) ([]SavedTrack, error) {
	var tracks []SavedTrack
	for rows.Next() {
		st, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, *st)
	}
	return tracks, rows.Err()
}
