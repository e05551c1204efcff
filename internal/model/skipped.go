package model

// RecordKind names the input collection a record came from.
type RecordKind string

const (
	KindLabel     RecordKind = "label"
	KindEvent     RecordKind = "event"
	KindCollector RecordKind = "collector"
	KindCluster   RecordKind = "cluster"
	KindMatch     RecordKind = "match"
)

// Skipped reports an input record that was dropped, or kept in a weakened
// form when Degraded is set.
type Skipped struct {
	Kind     RecordKind `json:"kind"`
	ID       string     `json:"ID,omitempty"`
	Index    int        `json:"index"`
	Reason   string     `json:"reason"`
	Degraded bool       `json:"degraded,omitempty"`
}
