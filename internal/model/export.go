package model

import "time"

// Verdict is the validator's annotation on a stored attempt.
type Verdict string

const (
	VerdictAccepted Verdict = "accepted"
	VerdictExpired  Verdict = "expired"
	VerdictRejected Verdict = "rejected"
)

// Counts reports whether an attempt with this verdict starts a retake cooldown.
func (v Verdict) Counts() bool {
	return v == VerdictAccepted || v == VerdictExpired
}

// AttemptRecord is the audit entry kept for every submission.
type AttemptRecord struct {
	Attempt    ExamAttempt  `json:"attempt" bson:"attempt"`
	Verdict    Verdict      `json:"verdict" bson:"verdict"`
	ErrorCode  string       `json:"errorCode,omitempty" bson:"errorCode,omitempty"`
	Score      *ScoreResult `json:"score,omitempty" bson:"score,omitempty"`
	RecordedAt time.Time    `json:"recordedAt" bson:"recordedAt"`
}

// AttemptExport is the top-level JSON structure for attempt export.
type AttemptExport struct {
	ExportedAt time.Time        `json:"exportedAt"`
	Count      int              `json:"count"`
	Summary    []TemplateResult `json:"summary"`
	Records    []AttemptRecord  `json:"records"`
}

// TemplateResult aggregates graded attempts of one template. Generated counts
// every stored instance, answered or not.
type TemplateResult struct {
	ExamID    string  `json:"examId"`
	Name      string  `json:"name"`
	Generated int     `json:"generated"`
	Attempts  int     `json:"attempts"`
	Passed    int     `json:"passed"`
	Expired   int     `json:"expired"`
	Rejected  int     `json:"rejected"`
	Average   float64 `json:"averagePercent"`
}
