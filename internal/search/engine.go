// Package search ranks slides and archived slides against a text query.
//
// Every layer that contains the query as a case-insensitive substring adds
// its fixed weight to the slide's score: title 100, body 10, notes 1.
// Results are ordered by score descending, then by insertion order.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/churryboy/ppt/internal/index"
	"github.com/churryboy/ppt/internal/metrics"
	"github.com/churryboy/ppt/internal/models"
)

// Layer weights.
const (
	WeightTitle = 100
	WeightBody  = 10
	WeightNotes = 1
)

// Matcher is the read-only part of the index the engine needs.
type Matcher interface {
	MatchSlides(foldedQuery string) ([]index.SlideMatch, error)
	MatchArchives(foldedQuery string) ([]index.ArchiveMatch, error)
}

// Result is one ranked slide.
type Result struct {
	Slide         models.Slide     `json:"slide"`
	DeckName      string           `json:"deck_name"`
	DeckState     models.DeckState `json:"deck_state"`
	Score         int              `json:"score"`
	MatchedLayers []models.Layer   `json:"matched_layers"`
}

// ArchiveResult is one ranked archived slide.
type ArchiveResult struct {
	Archive       models.ArchivedSlide `json:"archive"`
	Score         int                  `json:"score"`
	MatchedLayers []models.Layer       `json:"matched_layers"`
}

// Engine executes ranked queries.
type Engine struct {
	idx     Matcher
	metrics *metrics.SearchMetrics
}

// NewEngine creates a search engine. m may be nil.
func NewEngine(idx Matcher, m *metrics.SearchMetrics) *Engine {
	return &Engine{idx: idx, metrics: m}
}

// Normalize trims and folds a raw query. An empty result means "no query".
func Normalize(q string) string {
	return index.Fold(strings.TrimSpace(q))
}

// Score returns the weighted score and matched layers for the given flags.
func Score(title, body, notes bool) (int, []models.Layer) {
	score := 0
	layers := make([]models.Layer, 0, 3)
	if title {
		score += WeightTitle
		layers = append(layers, models.LayerTitle)
	}
	if body {
		score += WeightBody
		layers = append(layers, models.LayerBody)
	}
	if notes {
		score += WeightNotes
		layers = append(layers, models.LayerNotes)
	}
	return score, layers
}

// Query ranks slides against text. limit <= 0 returns every match.
// An empty or blank query returns an empty, non-nil slice.
func (e *Engine) Query(ctx context.Context, text string, limit int) ([]Result, error) {
	start := time.Now()
	q := Normalize(text)
	if q == "" {
		return []Result{}, nil
	}
	matches, err := e.idx.MatchSlides(q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Result, 0, len(matches))
	for _, m := range matches {
		score, layers := Score(m.Title, m.Body, m.Notes)
		if score == 0 {
			continue
		}
		out = append(out, Result{
			Slide:         m.Slide,
			DeckName:      m.DeckName,
			DeckState:     m.DeckState,
			Score:         score,
			MatchedLayers: layers,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Slide.ID < out[j].Slide.ID
	})
	out = truncate(out, limit)
	e.metrics.Observe("slides", len(out), time.Since(start).Seconds())
	return out, nil
}

// QueryArchive ranks archived slides with the same model as Query.
func (e *Engine) QueryArchive(ctx context.Context, text string, limit int) ([]ArchiveResult, error) {
	start := time.Now()
	q := Normalize(text)
	if q == "" {
		return []ArchiveResult{}, nil
	}
	matches, err := e.idx.MatchArchives(q)
	if err != nil {
		return nil, fmt.Errorf("search: archive: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]ArchiveResult, 0, len(matches))
	for _, m := range matches {
		score, layers := Score(m.Title, m.Body, m.Notes)
		if score == 0 {
			continue
		}
		out = append(out, ArchiveResult{Archive: m.Archive, Score: score, MatchedLayers: layers})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Archive.ID < out[j].Archive.ID
	})
	out = truncate(out, limit)
	e.metrics.Observe("archive", len(out), time.Since(start).Seconds())
	return out, nil
}

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
