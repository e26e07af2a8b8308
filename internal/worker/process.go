package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/models"
	"github.com/churryboy/ppt/internal/pptx"
	"github.com/churryboy/ppt/internal/render"
	"github.com/churryboy/ppt/internal/sse"
)

// errDiscarded marks a deck that disappeared or left converting while its
// slides were being written.
var errDiscarded = errors.New("worker: deck discarded")

// Process converts one deck. It is idempotent: terminal and unknown decks
// are left untouched, and slide numbers already stored are skipped.
//
// The returned error reports infrastructure failures only. Conversion
// outcomes are recorded on the deck itself.
func (p *Pool) Process(ctx context.Context, deckID string) error {
	log := p.logger.With("deck_id", deckID)

	deck, err := p.store.GetDeck(deckID)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Debug("deck gone before processing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("worker: load deck: %w", err)
	}
	if deck.State.Terminal() {
		return nil
	}
	if deck.State == models.DeckUploaded {
		if err := p.store.TransitionDeck(deckID, models.DeckConverting, models.ReasonNone); err != nil {
			return p.discardOr(deckID, err)
		}
		p.notifier.PublishDeckEvent(sse.EventDeckConverting, sse.DeckEvent{DeckID: deckID, State: string(models.DeckConverting)})
	}

	raw, err := p.docs.Read(deck.DocumentPath())
	if err != nil {
		log.Error("read document", "error", err)
		return p.fail(deckID, models.ReasonStorageError)
	}

	doc, extractErr := pptx.Extract(raw)
	if doc == nil {
		log.Warn("document unreadable", "error", extractErr)
		return p.fail(deckID, models.ReasonCorruptInput)
	}
	if err := p.store.SetExpectedSlideCount(deckID, doc.SlideCount); err != nil {
		return p.discardOr(deckID, err)
	}

	var (
		images    [][]byte
		renderErr error
	)
	if extractErr == nil {
		images, renderErr = p.render(ctx, deck, raw)
		if ctx.Err() != nil {
			// Left in converting; recovered on the next start.
			return nil
		}
		if visible := len(doc.VisibleNumbers()); renderErr == nil && len(images) != visible {
			// Pages can no longer be paired with slides by position.
			renderErr = fmt.Errorf("%w: %d pages for %d visible slides", render.ErrCorruptInput, len(images), visible)
			images = nil
		}
		if renderErr != nil {
			log.Warn("render failed, keeping text-only slides", "reason", render.Reason(renderErr), "error", renderErr)
		}
	} else {
		log.Warn("extraction stopped", "error", extractErr)
	}

	byNumber := mapImages(doc, images)

	if err := p.writeSlides(deckID, doc, byNumber); err != nil {
		if errors.Is(err, errDiscarded) {
			log.Info("deck deleted during conversion, discarding output")
			return nil
		}
		log.Error("write slides", "error", err)
		return p.fail(deckID, models.ReasonStorageError)
	}

	switch {
	case extractErr != nil:
		return p.fail(deckID, models.ReasonCorruptInput)
	case renderErr != nil:
		return p.fail(deckID, render.Reason(renderErr))
	}
	if err := p.store.TransitionDeck(deckID, models.DeckReady, models.ReasonNone); err != nil {
		return p.discardOr(deckID, err)
	}
	p.metrics.RecordOutcome(string(models.DeckReady), "")
	p.notifier.PublishDeckEvent(sse.EventDeckReady, sse.DeckEvent{DeckID: deckID, State: string(models.DeckReady)})
	log.Info("deck ready", "slides", len(doc.Slides))
	return nil
}

// render produces slide images, redacting first when the deck asks for
// privacy. A conversion timeout is retried once.
func (p *Pool) render(ctx context.Context, deck *models.Deck, raw []byte) ([][]byte, error) {
	input := raw
	if deck.PrivacyMode {
		redacted, err := pptx.Redact(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: redact: %v", render.ErrCorruptInput, err)
		}
		defer clear(redacted)
		input = redacted
	}

	for attempt := 1; ; attempt++ {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		start := time.Now()
		images, err := p.renderer.Render(ctx, input)
		p.sem.Release(1)
		p.metrics.ObserveRender(time.Since(start).Seconds())

		if err == nil {
			return images, nil
		}
		if attempt == 1 && errors.Is(err, render.ErrConversionTimeout) && ctx.Err() == nil {
			p.metrics.IncRetry()
			p.logger.Warn("render timed out, retrying", "deck_id", deck.ID, "attempt", attempt)
			continue
		}
		return nil, err
	}
}

// mapImages pairs rendered images with visible slides in order. Callers pass
// exactly one image per visible slide, or none. Hidden slides are not
// exported by the renderer and never receive an image.
func mapImages(doc *pptx.Document, images [][]byte) map[int][]byte {
	out := make(map[int][]byte, len(images))
	for i, n := range doc.VisibleNumbers() {
		if i >= len(images) {
			break
		}
		out[n] = images[i]
	}
	return out
}

// writeSlides stores every extracted slide not yet present. Each slide's
// image is written before the row that references it, so a visible slide
// is always complete.
func (p *Pool) writeSlides(deckID string, doc *pptx.Document, images map[int][]byte) error {
	existing, err := p.store.SlideNumbers(deckID)
	if err != nil {
		return err
	}
	for _, st := range doc.Slides {
		if _, ok := existing[st.Number]; ok {
			continue
		}
		s := &models.Slide{
			DeckID:           deckID,
			SlideNumber:      st.Number,
			Title:            st.Title,
			BodyText:         st.Body,
			NotesText:        st.Notes,
			ExtractionFailed: st.Failed,
			Hidden:           st.Hidden,
		}
		kind := "image"
		if img, ok := images[st.Number]; ok {
			ref, err := p.arts.Put(deckID, st.Number, img)
			if err != nil {
				return err
			}
			s.ImageRef = models.StringRef(ref)
		} else {
			s.TextOnly = true
			kind = "text_only"
		}
		if st.Failed {
			kind = "extraction_failed"
		}

		err := p.store.InsertSlide(s)
		switch {
		case err == nil:
		case errors.Is(err, apperr.ErrAlreadyExists):
			continue
		case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrConflict):
			if derr := p.arts.DeleteDeck(deckID); derr != nil {
				p.logger.Warn("remove discarded artifacts", "deck_id", deckID, "error", derr)
			}
			return errDiscarded
		default:
			if s.ImageRef != nil {
				_ = p.arts.Delete(*s.ImageRef)
			}
			return err
		}

		p.metrics.IncSlide(kind)
		p.notifier.PublishDeckEvent(sse.EventSlideReady, sse.DeckEvent{
			DeckID:      deckID,
			State:       string(models.DeckConverting),
			SlideID:     s.ID,
			SlideNumber: s.SlideNumber,
		})
	}
	return nil
}

// fail moves the deck to failed with reason.
func (p *Pool) fail(deckID string, reason models.ReasonCode) error {
	if err := p.store.TransitionDeck(deckID, models.DeckFailed, reason); err != nil {
		return p.discardOr(deckID, err)
	}
	p.metrics.RecordOutcome(string(models.DeckFailed), string(reason))
	p.notifier.PublishDeckEvent(sse.EventDeckFailed, sse.DeckEvent{
		DeckID: deckID,
		State:  string(models.DeckFailed),
		Reason: string(reason),
	})
	p.logger.Warn("deck failed", "deck_id", deckID, "reason", reason)
	return nil
}

// discardOr treats a deck that vanished mid-flight as a quiet no-op and
// returns any other error.
func (p *Pool) discardOr(deckID string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		if derr := p.arts.DeleteDeck(deckID); derr != nil {
			p.logger.Warn("remove discarded artifacts", "deck_id", deckID, "error", derr)
		}
		return nil
	}
	return fmt.Errorf("worker: deck %s: %w", deckID, err)
}
