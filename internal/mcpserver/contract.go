package mcpserver

// RankingModel describes how search results are scored and ordered.
const RankingModel = `# Slide Search Ranking

Every slide carries three text layers extracted from the deck:

| Layer | Source                          | Weight |
|-------|---------------------------------|--------|
| title | title placeholder of the slide  | 100    |
| body  | all other text on the slide     | 10     |
| notes | speaker notes                   | 1      |

## Scoring

- A query matches a layer when the layer contains the query as a
  case-insensitive substring. Whitespace around the query is ignored.
- A slide's score is the sum of the weights of every matching layer,
  so a slide matching title and notes scores 101.
- Slides with score 0 are not returned.
- An empty query returns no results.

## Ordering

1. Score, highest first.
2. Ties keep insertion order: the slide indexed first comes first.

## Scope

- search_slides covers slides of every deck, including decks that are still
  converting or failed. Each result reports its deck state.
- search_archive covers archived slides only. Archived slides keep their
  text and image after the source deck is deleted.
`
