package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"musicsearch/config"
	"musicsearch/gequbao"
	"musicsearch/library"
	"musicsearch/logging"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: musicsearch <command> [arguments]")
		fmt.Println("Commands:")
		fmt.Println("  search <keyword>    - Search the music site and resolve playable URLs")
		fmt.Println("  library [query]     - List saved tracks, optionally filtered by title/artist")
		fmt.Println("\nConfiguration is read from the environment (or a .env file):")
		fmt.Println("  MUSIC_BASE_URL, MUSIC_HTTP_TIMEOUT, CACHE_DIR, LIBRARY_DB_PATH, ...")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.InitLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	switch os.Args[1] {
	case "search":
		if len(os.Args) < 3 {
			fmt.Println("Usage: musicsearch search <keyword>")
			return
		}
		keyword := strings.Join(os.Args[2:], " ")

		var cache *gequbao.RequestCache
		if cfg.CacheEnabled {
			cache = gequbao.NewRequestCache(cfg.CacheDir, cfg.CacheTTL)
		}
		client := gequbao.NewClient(cfg.ClientConfig(), cache, logger)

		tracks, err := client.SearchMusic(context.Background(), keyword)
		if err != nil {
			if errors.Is(err, gequbao.ErrInvalidInput) {
				fmt.Println("Search keyword must not be empty.")
			} else {
				fmt.Println("Error:", err)
			}
			os.Exit(1)
		}
		if len(tracks) == 0 {
			fmt.Println("No playable tracks found.")
			return
		}
		for i, t := range tracks {
			fmt.Printf("%d. %s - %s\n   %s\n", i+1, t.Title, t.Artist, t.URL)
			if t.ArtworkURL != "" {
				fmt.Printf("   artwork: %s\n", t.ArtworkURL)
			}
		}

	case "library":
		lib, err := library.Open(cfg.LibraryDBPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open library: %v\n", err)
			os.Exit(1)
		}
		defer lib.Close()

		var tracks []library.SavedTrack
		if len(os.Args) >= 3 {
			tracks, err = lib.SearchTracks(strings.Join(os.Args[2:], " "), 0)
		} else {
			tracks, err = lib.ListTracks(0)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Library error: %v\n", err)
			os.Exit(1)
		}
		if len(tracks) == 0 {
			fmt.Println("No saved tracks.")
			return
		}
		for _, st := range tracks {
			fmt.Printf("%s - %s (saved %s)\n  %s\n",
				st.Track.Title, st.Track.Artist,
				st.SavedAt.Format("2006-01-02 15:04"), st.Track.URL)
		}

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}
