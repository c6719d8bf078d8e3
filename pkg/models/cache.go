package models

// CacheStats reports catalog response cache metrics.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Stale   int64 `json:"stale"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
