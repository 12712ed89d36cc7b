package api

import "encoding/json"

// SessionConfig is the payload for /start-processing. It is created once
// per start intent and stays immutable for the session's lifetime.
type SessionConfig struct {
	ClientID     string  `json:"client_id"`
	ClientSecret string  `json:"client_secret"`
	FeedURL      *string `json:"feed_url,omitempty"`
	FeedOffset   int     `json:"feed_offset"`
	MaxItems     int     `json:"max_items"`
	Keyword      *string `json:"keyword,omitempty"`
}

// Suggestion is one candidate type/category pairing proposed by the
// pipeline, ordered by descending confidence on the wire.
type Suggestion struct {
	TypeID                int      `json:"type_id"`
	DescriptionCategoryID int      `json:"description_category_id"`
	TypeName              string   `json:"type_name"`
	Similarity            *float64 `json:"similarity"`
}

// DecisionDetails describes the offer awaiting an operator decision.
type DecisionDetails struct {
	OfferID           string       `json:"offer_id"`
	Name              string       `json:"name"`
	Suggestions       []Suggestion `json:"suggestions"`
	CurrentSimilarity *float64     `json:"current_similarity"`
}

// StatusSnapshot is the canonical pipeline state as reported by
// /processing-status and returned by the mutating endpoints. Field names
// follow the backend wire format.
type StatusSnapshot struct {
	StatusMessage           string           `json:"status_message"`
	PendingDecisionID       *string          `json:"pending_decision_id"`
	DecisionDetails         *DecisionDetails `json:"decision_details"`
	ProcessedItemCount      int              `json:"processed_item_count_for_api"`
	TotalOffersToConsider   int              `json:"total_offers_to_consider"`
	CurrentOfferIndex       int              `json:"current_offer_index_overall"`
	ItemsReadyForSubmission int              `json:"items_ready_for_submission"`
	OzonSubmissionTaskID    *string          `json:"ozon_submission_task_id"`
	OzonTaskInfo            json.RawMessage  `json:"ozon_task_info"`
	ErrorMessage            *string          `json:"error_message"`
}

// HasPendingDecision reports whether the snapshot carries a decision
// request for the operator.
func (s StatusSnapshot) HasPendingDecision() bool {
	return s.PendingDecisionID != nil && *s.PendingDecisionID != ""
}

// DecisionID returns the pending decision id, or "" when none is pending.
func (s StatusSnapshot) DecisionID() string {
	if s.PendingDecisionID == nil {
		return ""
	}
	return *s.PendingDecisionID
}

// TaskID returns the marketplace submission task id, or "" when the
// snapshot does not report one.
func (s StatusSnapshot) TaskID() string {
	if s.OzonSubmissionTaskID == nil {
		return ""
	}
	return *s.OzonSubmissionTaskID
}

// DecisionPayload is the body for /submit-decision/{id}.
type DecisionPayload struct {
	ChosenTypeID                int `json:"chosen_type_id"`
	ChosenDescriptionCategoryID int `json:"chosen_description_category_id"`
}

// SubmitResult is the minimal acknowledgment from /submit-to-ozon. The
// task id may be absent; callers fall back to the status snapshot.
type SubmitResult struct {
	TaskID  *string `json:"task_id"`
	Message string  `json:"message"`
}

// ResolvedTaskID returns the acknowledged task id, or "".
func (r SubmitResult) ResolvedTaskID() string {
	if r.TaskID == nil {
		return ""
	}
	return *r.TaskID
}
