package api

import "time"

// Record is one inventory or slice entry as returned by the upstream API.
// Schemas vary by collection; filtering and sorting operate generically over
// the field mapping, treating absent fields as missing rather than as errors.
// Records are never mutated once placed in a snapshot.
type Record map[string]any

// Collection identifies one cached inventory collection.
type Collection string

const (
	CollectionSites         Collection = "sites"
	CollectionHosts         Collection = "hosts"
	CollectionFacilityPorts Collection = "facility-ports"
	CollectionLinks         Collection = "links"
)

// Collections lists every cached collection in refresh order.
func Collections() []Collection {
	return []Collection{CollectionSites, CollectionHosts, CollectionFacilityPorts, CollectionLinks}
}

// Valid reports whether c names a cached collection.
func (c Collection) Valid() bool {
	switch c {
	case CollectionSites, CollectionHosts, CollectionFacilityPorts, CollectionLinks:
		return true
	}
	return false
}

// SortSpec orders query results by one field. Direction is "asc" or "desc";
// records missing the field sort after all records that have it, in both
// directions, and ties keep their snapshot order.
type SortSpec struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// Descending reports whether the spec asks for descending order.
func (s SortSpec) Descending() bool {
	return s.Direction == "desc"
}

// QueryRequest is the common shape of every topology list query.
type QueryRequest struct {
	Filters map[string]any `json:"filters,omitempty"`
	Sort    *SortSpec      `json:"sort,omitempty"`
	Limit   int            `json:"limit,omitempty"`
	Offset  int            `json:"offset,omitempty"`
}

// Source indicates where a query result's records came from.
type Source string

const (
	SourceCache Source = "cache"
	SourceLive  Source = "live"
)

// QueryResult is a bounded, ordered page of records plus provenance metadata.
// Truncated is set when the page was cut at the requested limit, signalling
// that more records matched than were returned.
type QueryResult struct {
	Records    []Record  `json:"records"`
	Source     Source    `json:"source"`
	CapturedAt time.Time `json:"captured_at"`
	Truncated  bool      `json:"truncated,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}
