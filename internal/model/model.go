package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// QuestionType is the kind of question set a template declares.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MultipleChoice"
	QuestionTypeDialogue       QuestionType = "Dialogue"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeMultipleChoice, QuestionTypeDialogue:
		return true
	}
	return false
}

// Answer is a candidate answer of a bank question.
type Answer struct {
	ID        primitive.ObjectID `json:"id" bson:"id"`
	Text      string             `json:"text" bson:"text"`
	IsCorrect bool               `json:"isCorrect" bson:"isCorrect"`
}

// Audio is an optional recording attached to a question.
type Audio struct {
	URL      string `json:"url" bson:"url"`
	Captions string `json:"captions,omitempty" bson:"captions,omitempty"`
}

// Question is a question bank item.
type Question struct {
	ID         primitive.ObjectID `json:"id" bson:"id"`
	Text       string             `json:"text" bson:"text"`
	Tags       []string           `json:"tags" bson:"tags"`
	Audio      *Audio             `json:"audio,omitempty" bson:"audio,omitempty"`
	Answers    []Answer           `json:"answers" bson:"answers"`
	Deprecated bool               `json:"deprecated" bson:"deprecated"`
}

// QuestionSet groups bank questions of one type under an optional shared context.
type QuestionSet struct {
	ID        primitive.ObjectID `json:"id" bson:"id"`
	Type      QuestionType       `json:"type" bson:"type"`
	Context   string             `json:"context,omitempty" bson:"context,omitempty"`
	Questions []Question         `json:"questions" bson:"questions"`
}

// TagQuota requires NumberOfQuestions items whose tags intersect Group.
type TagQuota struct {
	Group             []string `json:"group" bson:"group"`
	NumberOfQuestions int      `json:"numberOfQuestions" bson:"numberOfQuestions"`
}

// QuestionSetQuota describes how many generated sets of a type to produce and their shape.
type QuestionSetQuota struct {
	Type                     QuestionType `json:"type" bson:"type"`
	NumberOfSet              int          `json:"numberOfSet" bson:"numberOfSet"`
	NumberOfQuestions        int          `json:"numberOfQuestions" bson:"numberOfQuestions"`
	NumberOfCorrectAnswers   int          `json:"numberOfCorrectAnswers" bson:"numberOfCorrectAnswers"`
	NumberOfIncorrectAnswers int          `json:"numberOfIncorrectAnswers" bson:"numberOfIncorrectAnswers"`
}

// ExamConfig holds the timing, passing and sampling rules of a template.
// The *InS fields are legacy second mirrors of the millisecond values.
type ExamConfig struct {
	Name           string             `json:"name" bson:"name"`
	Note           string             `json:"note" bson:"note"`
	Tags           []TagQuota         `json:"tags" bson:"tags"`
	TotalTimeInMS  int64              `json:"totalTimeInMS" bson:"totalTimeInMS"`
	TotalTimeInS   *int64             `json:"totalTimeInS,omitempty" bson:"totalTimeInS,omitempty"`
	QuestionSets   []QuestionSetQuota `json:"questionSets" bson:"questionSets"`
	RetakeTimeInMS int64              `json:"retakeTimeInMS" bson:"retakeTimeInMS"`
	RetakeTimeInS  *int64             `json:"retakeTimeInS,omitempty" bson:"retakeTimeInS,omitempty"`
	PassingPercent float64            `json:"passingPercent" bson:"passingPercent"`
}

const (
	DefaultTotalTimeInMS  int64   = 2 * 60 * 60 * 1000
	DefaultRetakeTimeInMS int64   = 24 * 60 * 60 * 1000
	DefaultPassingPercent float64 = 80
)

// DefaultConfig returns a config with a two hour budget, a one day retake
// cooldown and an 80% passing threshold.
func DefaultConfig() ExamConfig {
	total := DefaultTotalTimeInMS / 1000
	retake := DefaultRetakeTimeInMS / 1000
	return ExamConfig{
		Tags:           []TagQuota{},
		TotalTimeInMS:  DefaultTotalTimeInMS,
		TotalTimeInS:   &total,
		QuestionSets:   []QuestionSetQuota{},
		RetakeTimeInMS: DefaultRetakeTimeInMS,
		RetakeTimeInS:  &retake,
		PassingPercent: DefaultPassingPercent,
	}
}

// ExamTemplate is an authored exam blueprint. A structural edit produces a new
// Version; stored versions are never rewritten.
type ExamTemplate struct {
	ID            primitive.ObjectID   `json:"id" bson:"_id"`
	QuestionSets  []QuestionSet        `json:"questionSets" bson:"questionSets"`
	Config        ExamConfig           `json:"config" bson:"config"`
	Prerequisites []primitive.ObjectID `json:"prerequisites" bson:"prerequisites"`
	Deprecated    bool                 `json:"deprecated" bson:"deprecated"`
	Version       int                  `json:"version" bson:"version"`
}

// GeneratedQuestion is a presented question. It carries the source bank
// question and the shuffled answer identities, never their correctness.
type GeneratedQuestion struct {
	ID         primitive.ObjectID   `json:"id" bson:"id"`
	QuestionID primitive.ObjectID   `json:"questionId" bson:"questionId"`
	Answers    []primitive.ObjectID `json:"answers" bson:"answers"`
}

// GeneratedQuestionSet is one sampled set of a generated exam.
type GeneratedQuestionSet struct {
	ID        primitive.ObjectID  `json:"id" bson:"id"`
	Type      QuestionType        `json:"type" bson:"type"`
	Questions []GeneratedQuestion `json:"questions" bson:"questions"`
}

// GeneratedExam is the client-safe exam instance.
type GeneratedExam struct {
	ID           primitive.ObjectID     `json:"id" bson:"_id"`
	ExamID       primitive.ObjectID     `json:"examId" bson:"examId"`
	QuestionSets []GeneratedQuestionSet `json:"questionSets" bson:"questionSets"`
	Deprecated   bool                   `json:"deprecated" bson:"deprecated"`
	// Version is the template version the instance was sampled from.
	Version int `json:"version" bson:"version"`
	// CreatedAtInMS is the server time the instance was stored, in epoch
	// milliseconds. No attempt on it can start earlier.
	CreatedAtInMS int64 `json:"createdAtInMS" bson:"createdAtInMS"`
}

// QuestionCount returns the number of presented questions.
func (g GeneratedExam) QuestionCount() int {
	n := 0
	for _, s := range g.QuestionSets {
		n += len(s.Questions)
	}
	return n
}

// KeyEntry is the correct subset of one generated question's answers.
type KeyEntry struct {
	QuestionID primitive.ObjectID   `json:"questionId" bson:"questionId"`
	SetID      primitive.ObjectID   `json:"setId" bson:"setId"`
	Correct    []primitive.ObjectID `json:"correct" bson:"correct"`
}

// AnswerKey is the server-only correct-answer index of a generated exam.
type AnswerKey struct {
	GeneratedExamID primitive.ObjectID `json:"generatedExamId" bson:"_id"`
	Entries         []KeyEntry         `json:"entries" bson:"entries"`
}

// Lookup indexes the key entries by generated question identity.
func (k AnswerKey) Lookup() map[primitive.ObjectID]KeyEntry {
	m := make(map[primitive.ObjectID]KeyEntry, len(k.Entries))
	for _, e := range k.Entries {
		m[e.QuestionID] = e
	}
	return m
}

// QuestionAttempt is a submitted answer to one generated question.
type QuestionAttempt struct {
	ID                 primitive.ObjectID   `json:"id" bson:"id"`
	Answers            []primitive.ObjectID `json:"answers" bson:"answers"`
	SubmissionTimeInMS int64                `json:"submissionTimeInMS" bson:"submissionTimeInMS"`
	SubmissionTime     *time.Time           `json:"submissionTime,omitempty" bson:"submissionTime,omitempty"`
}

// QuestionSetAttempt holds the answers given for one generated set.
type QuestionSetAttempt struct {
	ID        primitive.ObjectID `json:"id" bson:"id"`
	Questions []QuestionAttempt  `json:"questions" bson:"questions"`
}

// ExamAttempt is a user's submission against a generated exam.
// The InMS fields are epoch milliseconds.
type ExamAttempt struct {
	ID              primitive.ObjectID   `json:"id" bson:"_id"`
	UserID          string               `json:"userId" bson:"userId"`
	ExamID          primitive.ObjectID   `json:"examId" bson:"examId"`
	GeneratedExamID primitive.ObjectID   `json:"generatedExamId" bson:"generatedExamId"`
	QuestionSets    []QuestionSetAttempt `json:"questionSets" bson:"questionSets"`
	StartTimeInMS   int64                `json:"startTimeInMS" bson:"startTimeInMS"`
	StartTime       *time.Time           `json:"startTime,omitempty" bson:"startTime,omitempty"`
	Version         int                  `json:"version" bson:"version"`
}

// ModerationStatus is the review state of a template version.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// Valid reports whether s is a known moderation status.
func (s ModerationStatus) Valid() bool {
	switch s {
	case ModerationPending, ModerationApproved, ModerationRejected:
		return true
	}
	return false
}

// Moderation is the review record of a template, bound to one template version.
type Moderation struct {
	ExamID      primitive.ObjectID `json:"examId" bson:"_id"`
	Version     int                `json:"version" bson:"version"`
	Status      ModerationStatus   `json:"status" bson:"status"`
	Feedback    string             `json:"feedback,omitempty" bson:"feedback,omitempty"`
	ModeratorID string             `json:"moderatorId,omitempty" bson:"moderatorId,omitempty"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// ApprovedFor reports whether the record approves exactly the given template version.
func (m Moderation) ApprovedFor(version int) bool {
	return m.Status == ModerationApproved && m.Version == version
}

// ScoreResult is the outcome of grading an attempt.
type ScoreResult struct {
	AttemptID  primitive.ObjectID `json:"attemptId" bson:"attemptId"`
	RawCorrect int                `json:"rawCorrect" bson:"rawCorrect"`
	Total      int                `json:"total" bson:"total"`
	Percent    float64            `json:"percent" bson:"percent"`
	Passed     bool               `json:"passed" bson:"passed"`
	Expired    bool               `json:"expired" bson:"expired"`
	Sets       []SetResult        `json:"sets" bson:"sets"`
}

// SetResult is the per generated set breakdown of a ScoreResult.
type SetResult struct {
	SetID      primitive.ObjectID `json:"setId" bson:"setId"`
	RawCorrect int                `json:"rawCorrect" bson:"rawCorrect"`
	Total      int                `json:"total" bson:"total"`
}
