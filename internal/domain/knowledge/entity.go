package knowledge

// EmbeddingDim is the fixed dimensionality shared by every stored
// document vector and every query vector. Retrieval is undefined if a
// vector of any other length reaches the store.
const EmbeddingDim = 1536

// Category enum — closed partition of the curated document set.
type Category string

const (
	CategoryFraudPattern  Category = "fraud_pattern"
	CategoryCompliance    Category = "compliance"
	CategoryRiskHeuristic Category = "risk_heuristic"
)

// Categories in fixed priority order. Context assembly and retrieval
// fan-out both iterate this order so output stays stable across runs.
var Categories = []Category{CategoryFraudPattern, CategoryCompliance, CategoryRiskHeuristic}

func ValidCategory(c Category) bool {
	switch c {
	case CategoryFraudPattern, CategoryCompliance, CategoryRiskHeuristic:
		return true
	}
	return false
}

// Document is a curated knowledge base entry. Created and updated only
// by the seeding process; read-only from the pipeline's perspective.
type Document struct {
	DocID     string            `json:"doc_id"`
	Category  Category          `json:"category"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Result pairs a retrieved document with its similarity score in [0,1],
// higher is more relevant. Produced per request, never persisted.
type Result struct {
	Document   Document
	Similarity float64
}
