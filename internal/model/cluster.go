package model

// Cluster groups labels believed to transcribe the same physical label or
// collecting occasion. Members keep aggregation order.
type Cluster struct {
	ID             string   `json:"ID"`
	Members        []string `json:"members"`
	Representative string   `json:"representative"`
	Parent         string   `json:"parent,omitempty"`
}

// Size returns the number of member labels.
func (c Cluster) Size() int {
	return len(c.Members)
}

// Candidate is one ranked event for a query.
type Candidate struct {
	EventID string  `json:"event_id"`
	Score   float64 `json:"score"`
}

// MatchResult is the best catalog event found for a label (or cluster).
type MatchResult struct {
	LabelID            string      `json:"label_id"`
	EventID            string      `json:"event_id"`
	Score              float64     `json:"score"`
	DateFiltered       bool        `json:"date_filtered"`
	DateFilterBypassed bool        `json:"date_filter_bypassed"`
	Candidates         []Candidate `json:"candidates,omitempty"`
}

// UnmatchedReason explains why a label received no match.
type UnmatchedReason string

const (
	ReasonNoCandidates  UnmatchedReason = "no_candidates"
	ReasonBelowMinScore UnmatchedReason = "below_min_score"
)

// UnmatchedLabel records a label for which no event qualified.
type UnmatchedLabel struct {
	LabelID string          `json:"label_id"`
	Reason  UnmatchedReason `json:"reason"`
}

// ReviewLevel tells curators whether a cluster can be handled in bulk.
type ReviewLevel string

const (
	ReviewBulk      ReviewLevel = "bulk"
	ReviewManual    ReviewLevel = "review"
	ReviewUnmatched ReviewLevel = "unmatched"
)

// ClusterConfidence is the reconciliation of one cluster with its members'
// matches. Confidence is nil when no member matched.
type ClusterConfidence struct {
	ClusterID   string      `json:"cluster_id"`
	Size        int         `json:"size"`
	Matched     int         `json:"matched"`
	BestEventID string      `json:"best_event_id,omitempty"`
	Frequency   float64     `json:"frequency"`
	AvgScore    float64     `json:"avg_score"`
	Confidence  *float64    `json:"confidence"`
	Review      ReviewLevel `json:"review"`
}
