package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"musicsearch/config"
	"musicsearch/gequbao"
	"musicsearch/library"
	"musicsearch/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Shared state for the MCP server session. Read-only after initialization.
var (
	cfg          *config.Config
	logger       *zap.Logger
	musicClient  *gequbao.Client
	musicLibrary *library.Library // nil when the library failed to open
	requestCache *gequbao.RequestCache
)

func main() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger, err = logging.InitLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.CacheEnabled {
		requestCache = gequbao.NewRequestCache(cfg.CacheDir, cfg.CacheTTL)

		// Periodic cleanup of expired cache files.
		go func() {
			requestCache.CleanupExpired()
			ticker := time.NewTicker(1 * time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				requestCache.CleanupExpired()
			}
		}()
	}

	musicClient = gequbao.NewClient(cfg.ClientConfig(), requestCache, logger)

	// A broken library must not take down the search tool.
	musicLibrary, err = library.Open(cfg.LibraryDBPath)
	if err != nil {
		logger.Warn("library unavailable, continuing without it", zap.Error(err))
		musicLibrary = nil
	} else {
		defer musicLibrary.Close()
	}

	mcpServer := server.NewMCPServer(
		"musicsearch-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
	)

	searchTool := mcp.NewTool("search_music",
		mcp.WithDescription("Search music online by song name and/or artist name. Returns playable track URLs with title, artist and artwork."),
		mcp.WithString("keyword",
			mcp.Required(),
			mcp.Description("Search keyword: a song name, an artist name, or both"),
		),
	)

	lyricsTool := mcp.NewTool("get_lyrics",
		mcp.WithDescription("Get the lyrics of a previously found track from the local library. Run search_music first so the track is saved."),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Exact track title as returned by search_music"),
		),
		mcp.WithString("artist",
			mcp.Required(),
			mcp.Description("Exact artist name as returned by search_music"),
		),
	)

	mcpServer.AddTool(searchTool, searchMusicHandler)
	mcpServer.AddTool(lyricsTool, getLyricsHandler)

	cacheStatsResource := mcp.NewResource(
		"musicsearch://cache/stats",
		"HTTP Cache Statistics",
		mcp.WithResourceDescription("Upstream response cache statistics"),
		mcp.WithMIMEType("application/json"),
	)
	libraryStatsResource := mcp.NewResource(
		"musicsearch://library/stats",
		"Library Statistics",
		mcp.WithResourceDescription("Saved-tracks library statistics"),
		mcp.WithMIMEType("application/json"),
	)
	libraryTracksResource := mcp.NewResource(
		"musicsearch://library/tracks",
		"Saved Tracks",
		mcp.WithResourceDescription("Most recently saved tracks"),
		mcp.WithMIMEType("application/json"),
	)
	latestResultsResource := mcp.NewResource(
		"musicsearch://search/latest",
		"Latest Search Results",
		mcp.WithResourceDescription("Results of the most recent search_music call"),
		mcp.WithMIMEType("application/json"),
	)

	mcpServer.AddResource(cacheStatsResource, cacheStatsHandler)
	mcpServer.AddResource(libraryStatsResource, libraryStatsHandler)
	mcpServer.AddResource(libraryTracksResource, libraryTracksHandler)
	mcpServer.AddResource(latestResultsResource, latestResultsHandler)

	if err := server.ServeStdio(mcpServer); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func searchMusicHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	keyword, err := request.RequireString("keyword")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid keyword parameter: %v", err)), nil
	}

	tracks, err := musicClient.SearchMusic(ctx, keyword)
	if err != nil {
		switch {
		case errors.Is(err, gequbao.ErrInvalidInput):
			return mcp.NewToolResultError("Search keyword must not be empty."), nil
		case errors.Is(err, gequbao.ErrNetwork):
			return mcp.NewToolResultError(fmt.Sprintf("Could not reach the music site: %v", err)), nil
		default:
			return mcp.NewToolResultError(fmt.Sprintf("Search failed: %v", err)), nil
		}
	}

	if len(tracks) == 0 {
		return mcp.NewToolResultText("No playable tracks found for this keyword. Try another song or artist name."), nil
	}

	if cfg.LibraryAutosave && musicLibrary != nil {
		// The top result is what a caller will almost certainly play.
		if err := musicLibrary.SaveTrack(&tracks[0]); err != nil {
			logger.Warn("failed to autosave track", zap.Error(err))
		}
	}

	if err := saveLatestResults(tracks); err != nil {
		logger.Warn("failed to save latest search results", zap.Error(err))
	}

	result, err := json.MarshalIndent(tracks, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(result)), nil
}

func getLyricsHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid title parameter: %v", err)), nil
	}
	artist, err := request.RequireString("artist")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid artist parameter: %v", err)), nil
	}

	if musicLibrary == nil {
		return mcp.NewToolResultError("The local track library is unavailable."), nil
	}

	saved, err := musicLibrary.LoadTrack(title, artist)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mcp.NewToolResultText(fmt.Sprintf("No saved track '%s' by '%s'. Run search_music first.", title, artist)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Library lookup failed: %v", err)), nil
	}

	if saved.Track.Lyrics == "" {
		return mcp.NewToolResultText(fmt.Sprintf("No lyrics available for '%s' by '%s'.", title, artist)), nil
	}
	return mcp.NewToolResultText(saved.Track.Lyrics), nil
}

// latestResultsPath is where the most recent search results are kept for the
// musicsearch://search/latest resource.
func latestResultsPath() string {
	dir := os.TempDir()
	if requestCache != nil {
		dir = requestCache.Dir()
	}
	return filepath.Join(dir, "search_results.json")
}

func saveLatestResults(tracks []gequbao.Track) error {
	data, err := json.MarshalIndent(tracks, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal tracks: %w", err)
	}
	return os.WriteFile(latestResultsPath(), data, 0644)
}

// Resource handlers

func cacheStatsHandler(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	stats := map[string]interface{}{"enabled": false}
	if requestCache != nil {
		stats = requestCache.Stats()
		stats["enabled"] = true
	}
	return jsonResource(request.Params.URI, stats)
}

func libraryStatsHandler(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if musicLibrary == nil {
		return jsonResource(request.Params.URI, map[string]interface{}{"available": false})
	}
	stats, err := musicLibrary.Stats()
	if err != nil {
		return nil, fmt.Errorf("failed to read library stats: %w", err)
	}
	return jsonResource(request.Params.URI, stats)
}

func libraryTracksHandler(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if musicLibrary == nil {
		return jsonResource(request.Params.URI, []library.SavedTrack{})
	}
	tracks, err := musicLibrary.ListTracks(50)
	if err != nil {
		return nil, fmt.Errorf("failed to list saved tracks: %w", err)
	}
	if tracks == nil {
		tracks = []library.SavedTrack{}
	}
	return jsonResource(request.Params.URI, tracks)
}

func latestResultsHandler(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := os.ReadFile(latestResultsPath())
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("could not read latest results file", zap.Error(err))
		}
		data = []byte("[]")
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func jsonResource(uri string, v interface{}) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resource: %w", err)
	}
	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
