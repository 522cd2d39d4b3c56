package types

// OrderBy selects the ranking used for top-entry reports.
type OrderBy string

const (
	OrderByHits OrderBy = "hits"
	OrderBySize OrderBy = "size"
)

// Health summarises the cache for operators.
type Health struct {
	Status         string   `json:"status"` // "healthy" or "degraded"
	HitRate        float64  `json:"hitRate"`
	TotalEntries   int      `json:"totalEntries"`
	TotalSizeBytes int64    `json:"totalSizeBytes"`
	ExpiredCount   int      `json:"expiredCount"`
	Warnings       []string `json:"warnings"`
}
