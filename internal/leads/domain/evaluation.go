package domain

// EvaluationTier is the depth of an evaluation run. Quick runs the AI
// estimator only; full also calls the verified comparable-sales provider.
type EvaluationTier string

const (
	TierQuick EvaluationTier = "quick"
	TierFull  EvaluationTier = "full"
)

// EvaluationTierOneOf is the validator `oneof` parameter for EvaluationTier.
const EvaluationTierOneOf = "quick full"

func (t EvaluationTier) Valid() bool {
	return t == TierQuick || t == TierFull
}

// EvaluationTrigger records what started a run.
type EvaluationTrigger string

const (
	TriggerManual        EvaluationTrigger = "manual"
	TriggerIngestion     EvaluationTrigger = "ingestion"
	TriggerConsolidation EvaluationTrigger = "consolidation"
	TriggerSchedule      EvaluationTrigger = "schedule"
)

// EvaluationStatus is the terminal state of a run.
type EvaluationStatus string

const (
	EvaluationCompleted  EvaluationStatus = "completed"
	EvaluationPartial    EvaluationStatus = "partial"
	EvaluationCancelled  EvaluationStatus = "cancelled"
	EvaluationSuperseded EvaluationStatus = "superseded"
)

// TierState is the live state of one tier for one lead.
type TierState string

const (
	TierIdle    TierState = "idle"
	TierQueued  TierState = "queued"
	TierRunning TierState = "running"
)

// SnapshotStatus is the outcome of one provider within a run.
type SnapshotStatus string

const (
	SnapshotOK     SnapshotStatus = "ok"
	SnapshotNoData SnapshotStatus = "no_data"
	SnapshotStale  SnapshotStatus = "stale"
	SnapshotError  SnapshotStatus = "error"
)

// Snapshot is what one provider returned for one quantity during a run.
type Snapshot struct {
	Value         *float64       `json:"value,omitempty"`
	ConfidencePct *float64       `json:"confidencePct,omitempty"`
	Text          string         `json:"text,omitempty"`
	Source        string         `json:"source,omitempty"`
	Status        SnapshotStatus `json:"status"`
	AuditKey      string         `json:"auditKey,omitempty"`
}

// Snapshot keys recorded on every run.
const (
	SnapshotARV          = "arv"
	SnapshotRehab        = "rehab"
	SnapshotRent         = "rent"
	SnapshotNeighborhood = "neighborhood"
	SnapshotSummary      = "summary"
	SnapshotVerified     = "verified"
)
