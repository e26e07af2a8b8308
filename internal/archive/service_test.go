package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/churryboy/ppt/internal/apperr"
	"github.com/churryboy/ppt/internal/artifact"
	"github.com/churryboy/ppt/internal/index"
	"github.com/churryboy/ppt/internal/models"
	"github.com/churryboy/ppt/internal/search"
	"github.com/churryboy/ppt/internal/testutil"
)

type fixture struct {
	db   *index.DB
	arts *artifact.Store
	svc  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.TestDB(t)
	_, fs := testutil.TestStorage(t)
	arts := artifact.New(fs)
	return &fixture{
		db:   db,
		arts: arts,
		svc:  NewService(db, arts, search.NewEngine(db, nil), testutil.Logger()),
	}
}

// slide creates a converting deck with a single slide, optionally with an image.
func (f *fixture) slide(t *testing.T, deckID, title, body string, withImage bool) *models.Slide {
	t.Helper()
	d := &models.Deck{ID: deckID, OriginalName: deckID + ".pptx", StoredName: "s.pptx", State: models.DeckUploaded}
	if err := f.db.InsertDeck(d); err != nil {
		t.Fatal(err)
	}
	if err := f.db.TransitionDeck(deckID, models.DeckConverting, models.ReasonNone); err != nil {
		t.Fatal(err)
	}
	s := &models.Slide{DeckID: deckID, SlideNumber: 1, Title: title, BodyText: body, TextOnly: !withImage}
	if withImage {
		ref, err := f.arts.Put(deckID, 1, testutil.PNG)
		if err != nil {
			t.Fatal(err)
		}
		s.ImageRef = models.StringRef(ref)
	}
	if err := f.db.InsertSlide(s); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestArchive_SurvivesDeckDeletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.slide(t, "d1", "Market sizing", "TAM SAM SOM", true)

	a, created, err := f.svc.Archive(ctx, s.ID)
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if !created || a.SourceDeckName != "d1.pptx" || a.Title != "Market sizing" {
		t.Fatalf("archive = %+v created=%v", a, created)
	}
	if a.ImageRef == nil || *a.ImageRef == *s.ImageRef {
		t.Fatalf("archive must own an independent image, got %v", a.ImageRef)
	}

	if err := f.db.DeleteDeck("d1"); err != nil {
		t.Fatal(err)
	}
	if err := f.arts.DeleteDeck("d1"); err != nil {
		t.Fatal(err)
	}

	got, err := f.svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.BodyText != "TAM SAM SOM" {
		t.Errorf("body = %q", got.BodyText)
	}
	img, err := f.arts.Get(*got.ImageRef)
	if err != nil || string(img) != string(testutil.PNG) {
		t.Errorf("archived image = %q, %v", img, err)
	}
	res, err := f.svc.Search(ctx, "market", 0)
	if err != nil || len(res) != 1 || res[0].Score != search.WeightTitle {
		t.Errorf("search = %+v, %v", res, err)
	}
}

func TestArchive_Deduplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.slide(t, "d1", "Once", "", true)

	first, _, err := f.svc.Archive(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	second, created, err := f.svc.Archive(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if created || second.ID != first.ID {
		t.Errorf("second archive = %d created=%v, want %d", second.ID, created, first.ID)
	}
	if _, total, _ := f.svc.List(ctx, 10, 0); total != 1 {
		t.Errorf("total = %d, want 1", total)
	}
}

func TestArchive_TextOnlySlide(t *testing.T) {
	f := newFixture(t)
	s := f.slide(t, "d1", "No picture", "", false)
	a, _, err := f.svc.Archive(context.Background(), s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if a.ImageRef != nil {
		t.Errorf("image_ref = %v, want nil", *a.ImageRef)
	}
}

func TestArchive_UnknownSlide(t *testing.T) {
	f := newFixture(t)
	if _, _, err := f.svc.Archive(context.Background(), 42); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestDelete_RemovesOnlyArchive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.slide(t, "d1", "Keep source", "", true)
	a, _, err := f.svc.Archive(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.arts.Get(*a.ImageRef); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("archive image still present: %v", err)
	}
	if _, err := f.arts.Get(*s.ImageRef); err != nil {
		t.Errorf("source image removed: %v", err)
	}
	if _, err := f.db.GetSlide(s.ID); err != nil {
		t.Errorf("source slide removed: %v", err)
	}
	if err := f.svc.Delete(ctx, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Delete = %v", err)
	}
}
