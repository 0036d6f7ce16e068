package api

import "github.com/example/learnengine/pkg/models"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// UpdateProfileRequest is the body of PATCH /users/:userID/profile.
// Omitted options, or omitted fields of Options, mean the defaults.
type UpdateProfileRequest struct {
	Update  models.ProfileUpdate         `json:"update"`
	Options *models.ProfileUpdateOptions `json:"options,omitempty"`
}

// CreateItemRequest is the body of POST /users/:userID/items.
type CreateItemRequest struct {
	ModuleID    string `json:"module_id"`
	TopicID     string `json:"topic_id"`
	ContentType string `json:"content_type"`
}

// ReviewRequest is the body of POST /items/:itemID/reviews.
type ReviewRequest struct {
	Grade *int `json:"grade" binding:"required"`
}

// ReviewResponse carries the rescheduled item and the logged event.
type ReviewResponse struct {
	Item  models.LearningItem `json:"item"`
	Event models.ReviewEvent  `json:"event"`
}

// RetentionResponse is the body of GET /items/:itemID/retention.
type RetentionResponse struct {
	ItemID    string  `json:"item_id"`
	Retention float64 `json:"retention"`
	Threshold float64 `json:"threshold"`
	Due       bool    `json:"due"`
}

// RankRequest is the body of POST /rank. Limit <= 0 returns every candidate.
type RankRequest struct {
	Candidates []models.LearningPathItem `json:"candidates" binding:"required,dive"`
	Limit      int                       `json:"limit" binding:"gte=0"`
}

// RebuildResponse is the body of POST /profiles/rebuild.
type RebuildResponse struct {
	Rebuilt int      `json:"rebuilt"`
	Errors  []string `json:"errors,omitempty"`
}
