package index

import "github.com/churryboy/ppt/internal/models"

// Catalog defines the persistence operations for decks, slides and archives.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Catalog interface {
	InsertDeck(d *models.Deck) error
	GetDeck(id string) (*models.Deck, error)
	ListDecks(limit, offset int) ([]models.Deck, int, error)
	TransitionDeck(id string, to models.DeckState, reason models.ReasonCode) error
	SetExpectedSlideCount(id string, n int) error
	DeleteDeck(id string) error
	DeckIDsInState(states ...models.DeckState) ([]string, error)
	AllDeckIDs() (map[string]struct{}, error)

	InsertSlide(s *models.Slide) error
	GetSlide(id int64) (*models.Slide, error)
	ListSlides(deckID string) ([]models.Slide, error)
	SlideNumbers(deckID string) (map[int]struct{}, error)
	IncrementDownload(id int64) (int64, error)
	MatchSlides(foldedQuery string) ([]SlideMatch, error)

	InsertArchive(a *models.ArchivedSlide) error
	GetArchive(id int64) (*models.ArchivedSlide, error)
	GetArchiveBySource(slideID int64) (*models.ArchivedSlide, error)
	ListArchives(limit, offset int) ([]models.ArchivedSlide, int, error)
	DeleteArchive(id int64) error
	MatchArchives(foldedQuery string) ([]ArchiveMatch, error)

	Reindex() (int, error)
	Close() error
}

// Verify *DB satisfies Catalog at compile time.
var _ Catalog = (*DB)(nil)
