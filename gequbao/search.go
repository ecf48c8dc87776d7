package gequbao

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// SearchMusic is the full keyword-to-tracks operation: search the site,
// resolve every candidate, and return the tracks that resolved. Detail
// lookups run in parallel (bounded by Config.ResolveConcurrency) but the
// result keeps the search page's ordering, with failed or unavailable
// candidates removed. A failure of the search itself aborts the whole call.
func (c *Client) SearchMusic(ctx context.Context, keyword string) ([]Track, error) {
	candidates, err := c.Search(ctx, keyword)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return []Track{}, nil
	}

	resolved := make([]*Track, len(candidates))
	sem := make(chan struct{}, c.cfg.ResolveConcurrency)
	var wg sync.WaitGroup

	for i, cand := range candidates {
		wg.Add(1)
		go func(i int, cand Candidate) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			track, err := c.Resolve(ctx, cand)
			if err != nil {
				if errors.Is(err, ErrTrackUnavailable) {
					c.logger.Debug("track unavailable",
						zap.String("id", cand.ID), zap.String("title", cand.Title))
				} else {
					c.logger.Warn("resolve failed",
						zap.String("id", cand.ID), zap.Error(err))
				}
				return
			}
			resolved[i] = track
		}(i, cand)
	}
	wg.Wait()

	tracks := make([]Track, 0, len(candidates))
	for _, t := range resolved {
		if t != nil {
			tracks = append(tracks, *t)
		}
	}

	c.logger.Info("search_music completed",
		zap.String("keyword", keyword),
		zap.Int("candidates", len(candidates)),
		zap.Int("resolved", len(tracks)))
	return tracks, nil
}
