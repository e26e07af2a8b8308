// Package worker runs deck conversion in the background.
//
// The queue is durable by state: a deck left in uploaded or converting after a
// crash is simply enqueued again on the next start, and processing is
// idempotent so a replay never duplicates slides.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/churryboy/ppt/internal/metrics"
	"github.com/churryboy/ppt/internal/models"
	"github.com/churryboy/ppt/internal/render"
	"github.com/churryboy/ppt/internal/sse"
	"github.com/churryboy/ppt/internal/storage"
)

// Store is the subset of the catalog the pool writes through.
type Store interface {
	GetDeck(id string) (*models.Deck, error)
	TransitionDeck(id string, to models.DeckState, reason models.ReasonCode) error
	SetExpectedSlideCount(id string, n int) error
	InsertSlide(s *models.Slide) error
	SlideNumbers(deckID string) (map[int]struct{}, error)
}

// Artifacts stores rendered slide images.
type Artifacts interface {
	Put(deckID string, slideNumber int, image []byte) (string, error)
	Delete(ref string) error
	DeleteDeck(deckID string) error
}

// Notifier receives deck lifecycle events.
type Notifier interface {
	PublishDeckEvent(kind string, event sse.DeckEvent)
}

// Config controls pool sizing.
type Config struct {
	// Workers is the number of decks processed concurrently.
	Workers int
	// MaxRenders bounds concurrent renderer invocations across all workers.
	MaxRenders int
}

// Deps are the collaborators of a Pool.
type Deps struct {
	Store     Store
	Documents storage.Provider
	Artifacts Artifacts
	Renderer  render.Renderer
	Notifier  Notifier
	Metrics   *metrics.ConversionMetrics
	Logger    *slog.Logger
}

// Pool is a fixed-size set of conversion workers fed by a deck id queue.
type Pool struct {
	cfg      Config
	store    Store
	docs     storage.Provider
	arts     Artifacts
	renderer render.Renderer
	notifier Notifier
	metrics  *metrics.ConversionMetrics
	logger   *slog.Logger

	q    *queue
	sem  *semaphore.Weighted
	wg   sync.WaitGroup
	once sync.Once
}

// New creates a pool. Call Run to start the workers.
func New(cfg Config, deps Deps) (*Pool, error) {
	if deps.Store == nil || deps.Documents == nil || deps.Artifacts == nil || deps.Renderer == nil {
		return nil, fmt.Errorf("worker: store, documents, artifacts and renderer are required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxRenders < 1 {
		cfg.MaxRenders = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Pool{
		cfg:      cfg,
		store:    deps.Store,
		docs:     deps.Documents,
		arts:     deps.Artifacts,
		renderer: deps.Renderer,
		notifier: notifier,
		metrics:  deps.Metrics,
		logger:   logger.With("component", "worker"),
		q:        newQueue(),
		sem:      semaphore.NewWeighted(int64(cfg.MaxRenders)),
	}, nil
}

// Enqueue schedules a deck for conversion. Decks already queued or in
// progress are not queued twice.
func (p *Pool) Enqueue(deckID string) error {
	added, err := p.q.push(deckID)
	if err != nil {
		return err
	}
	if added {
		p.metrics.SetQueueDepth(p.q.len())
		p.logger.Debug("deck enqueued", "deck_id", deckID)
	}
	return nil
}

// Pending returns the number of queued decks not yet picked up.
func (p *Pool) Pending() int {
	return p.q.len()
}

// Run starts the workers and blocks until ctx is cancelled and every worker
// has finished its current deck. Run may only be called once.
func (p *Pool) Run(ctx context.Context) error {
	started := false
	p.once.Do(func() {
		started = true
		for i := range p.cfg.Workers {
			p.wg.Add(1)
			go p.loop(ctx, i)
		}
		p.logger.Info("worker pool started", "workers", p.cfg.Workers, "max_renders", p.cfg.MaxRenders)
	})
	if !started {
		return fmt.Errorf("worker: pool already running")
	}

	<-ctx.Done()
	p.q.stop()
	p.wg.Wait()
	p.logger.Info("worker pool stopped", "pending", p.q.len())
	return nil
}

func (p *Pool) loop(ctx context.Context, worker int) {
	defer p.wg.Done()
	for {
		id, ok := p.q.pop(ctx)
		if !ok {
			return
		}
		p.metrics.SetQueueDepth(p.q.len())
		p.metrics.AddInFlight(1)
		if err := p.Process(ctx, id); err != nil {
			p.logger.Error("process deck", "deck_id", id, "worker", worker, "error", err)
		}
		p.metrics.AddInFlight(-1)
		p.q.done(id)
	}
}

type nopNotifier struct{}

func (nopNotifier) PublishDeckEvent(string, sse.DeckEvent) {}
