package models

// LearningPathItem is a ranked recommendation candidate. It is derived and never persisted.
type LearningPathItem struct {
	ID                  string  `json:"id" binding:"required"`
	Title               string  `json:"title,omitempty"`
	ProgressPercent     float64 `json:"progress_percent" binding:"gte=0,lte=100"`
	RecommendationScore float64 `json:"recommendation_score"`
	RelatedItemCount    int     `json:"related_item_count" binding:"gte=0"`
}
