package article

import "time"

// DiscardReason explains why a URL will never be fetched again.
type DiscardReason string

const (
	ReasonNoHeader   DiscardReason = "no_header"
	ReasonNotArticle DiscardReason = "not_article"
	ReasonStale      DiscardReason = "stale"
	ReasonShortBody  DiscardReason = "short_body"
	ReasonArchived   DiscardReason = "archived"
)

// Discarded is one entry of the discard set.
type Discarded struct {
	URL    string        `json:"url"`
	Reason DiscardReason `json:"reason"`
	At     time.Time     `json:"at"`
}
