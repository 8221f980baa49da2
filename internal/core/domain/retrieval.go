package domain

import "math"

// DistanceMetric selects how vector distance is computed.
type DistanceMetric string

// Supported distance metrics.
const (
	// MetricCosine is cosine distance (pgvector <=>).
	MetricCosine DistanceMetric = "cosine"

	// MetricL2 is Euclidean distance (pgvector <->).
	MetricL2 DistanceMetric = "l2"
)

// IsValid returns true if the metric is recognised.
func (m DistanceMetric) IsValid() bool {
	return m == MetricCosine || m == MetricL2
}

// Score converts a raw distance into a similarity score that decreases
// monotonically as distance grows.
func (m DistanceMetric) Score(distance float64) float64 {
	if m == MetricL2 {
		return 1 / (1 + distance)
	}
	return 1 - distance
}

// MetadataFilter is an exact-match filter over document metadata.
// A row matches when every key/value of the filter is present and equal.
type MetadataFilter map[string]string

// Matches reports whether metadata contains every pair of the filter.
func (f MetadataFilter) Matches(metadata map[string]string) bool {
	for k, want := range f {
		got, ok := metadata[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// RetrievalResult is a scored reference to a stored document.
// It carries content and metadata, not the full row.
type RetrievalResult struct {
	// Content is the document text and the deduplication key.
	Content string `json:"content"`

	// Metadata is the stored document metadata.
	Metadata map[string]string `json:"metadata"`

	// Score is comparable across results of the same query; higher is more relevant.
	Score float64 `json:"score"`
}

// ProductName returns the product name of the underlying document.
func (r RetrievalResult) ProductName() string {
	return ProductNameOf(r.Metadata)
}

// Citation is a provenance record accompanying a generated answer.
type Citation struct {
	ProductName string  `json:"product_name"`
	Score       float64 `json:"score"`
	Snippet     string  `json:"snippet"`
}

// SearchOptions configures a vector search.
type SearchOptions struct {
	// FanOut is the number of candidates fetched from the store before re-ranking.
	FanOut int

	// TopN is the number of results returned after re-ranking.
	TopN int

	// Filter restricts candidates by exact metadata match.
	Filter MetadataFilter

	// DisableBoost turns off the product-name re-ranking pass.
	DisableBoost bool
}

// Distance computes the metric distance between two equal-length vectors.
// Cosine distance of a zero vector is 1.
func (m DistanceMetric) Distance(a, b []float32) float64 {
	if m == MetricL2 {
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return math.Sqrt(sum)
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
