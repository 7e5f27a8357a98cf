// Package attempt validates submitted exam attempts against the generated
// exam they answer, the template's timing rules and the user's history.
package attempt

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/model"
	"github.com/pavelanni/certexam/internal/moderation"
)

// Input is everything Validate needs. Priors are the user's earlier attempts
// that count toward the retake cooldown.
type Input struct {
	Attempt    model.ExamAttempt
	Exam       model.GeneratedExam
	Config     model.ExamConfig
	Priors     []model.ExamAttempt
	Moderation model.Moderation
	Now        time.Time
	Policy     model.ExpiryPolicy
}

// Verdict is the outcome of a successful validation.
type Verdict struct {
	// Expired is set when some answer was submitted after the time budget ran out.
	Expired bool
	// Elapsed is the largest submission offset from the attempt start.
	Elapsed time.Duration
}

// Validate checks structure, timestamps, time budget, retake cooldown and
// moderation, in that order.
func Validate(in Input) (Verdict, error) {
	if err := checkStructure(in.Attempt, in.Exam); err != nil {
		return Verdict{}, err
	}
	if err := checkTimestamps(in); err != nil {
		return Verdict{}, err
	}

	v := Verdict{Elapsed: elapsed(in.Attempt)}
	if v.Elapsed > time.Duration(in.Config.TotalTimeInMS)*time.Millisecond {
		if in.Policy == model.ExpiryReject {
			return Verdict{}, apperr.New(apperr.CodeExpired,
				"submitted %s after start, budget is %s", v.Elapsed, time.Duration(in.Config.TotalTimeInMS)*time.Millisecond)
		}
		v.Expired = true
	}

	if err := checkRetake(in); err != nil {
		return Verdict{}, err
	}

	if in.Moderation.ExamID != in.Attempt.ExamID {
		return Verdict{}, apperr.New(apperr.CodeTemplateNotApproved, "no moderation record for exam %s", in.Attempt.ExamID.Hex())
	}
	if err := moderation.RequireApproved(in.Moderation, in.Exam.Version); err != nil {
		return Verdict{}, err
	}
	return v, nil
}

func checkStructure(a model.ExamAttempt, exam model.GeneratedExam) error {
	if a.GeneratedExamID != exam.ID {
		return apperr.New(apperr.CodeUnknownReference, "attempt answers generated exam %s, not %s",
			a.GeneratedExamID.Hex(), exam.ID.Hex())
	}
	if a.ExamID != exam.ExamID {
		return apperr.New(apperr.CodeUnknownReference, "attempt names exam %s, generated exam belongs to %s",
			a.ExamID.Hex(), exam.ExamID.Hex())
	}

	sets := make(map[primitive.ObjectID]map[primitive.ObjectID]map[primitive.ObjectID]bool, len(exam.QuestionSets))
	for _, s := range exam.QuestionSets {
		qs := make(map[primitive.ObjectID]map[primitive.ObjectID]bool, len(s.Questions))
		for _, q := range s.Questions {
			answers := make(map[primitive.ObjectID]bool, len(q.Answers))
			for _, id := range q.Answers {
				answers[id] = true
			}
			qs[q.ID] = answers
		}
		sets[s.ID] = qs
	}

	seenSets := make(map[primitive.ObjectID]bool, len(a.QuestionSets))
	seenQuestions := make(map[primitive.ObjectID]bool)
	for _, sa := range a.QuestionSets {
		qs, ok := sets[sa.ID]
		if !ok {
			return apperr.New(apperr.CodeUnknownReference, "unknown question set %s", sa.ID.Hex())
		}
		if seenSets[sa.ID] {
			return apperr.New(apperr.CodeUnknownReference, "question set %s answered twice", sa.ID.Hex())
		}
		seenSets[sa.ID] = true
		for _, qa := range sa.Questions {
			answers, ok := qs[qa.ID]
			if !ok {
				return apperr.New(apperr.CodeUnknownReference, "unknown question %s in set %s", qa.ID.Hex(), sa.ID.Hex())
			}
			if seenQuestions[qa.ID] {
				return apperr.New(apperr.CodeUnknownReference, "question %s answered twice", qa.ID.Hex())
			}
			seenQuestions[qa.ID] = true
			for _, id := range qa.Answers {
				if !answers[id] {
					return apperr.New(apperr.CodeUnknownReference, "answer %s was not presented for question %s",
						id.Hex(), qa.ID.Hex())
				}
			}
		}
	}
	return nil
}

// checkTimestamps bounds the client-reported times: the attempt starts no
// earlier than its generated exam was stored, and every submission lies
// between the start and the server clock.
func checkTimestamps(in Input) error {
	a := in.Attempt
	now := in.Now.UnixMilli()
	if a.StartTimeInMS > now {
		return apperr.New(apperr.CodeInvalidRequest, "attempt starts at %d, after server time %d", a.StartTimeInMS, now)
	}
	if created := in.Exam.CreatedAtInMS; created > 0 && a.StartTimeInMS < created {
		return apperr.New(apperr.CodeInvalidRequest, "attempt starts at %d, before generated exam %s existed (%d)",
			a.StartTimeInMS, in.Exam.ID.Hex(), created)
	}
	for _, sa := range a.QuestionSets {
		for _, qa := range sa.Questions {
			if qa.SubmissionTimeInMS < a.StartTimeInMS || qa.SubmissionTimeInMS > now {
				return apperr.New(apperr.CodeInvalidRequest, "question %s submitted at %d, outside [%d, %d]",
					qa.ID.Hex(), qa.SubmissionTimeInMS, a.StartTimeInMS, now)
			}
		}
	}
	return nil
}

func elapsed(a model.ExamAttempt) time.Duration {
	var latest int64
	for _, sa := range a.QuestionSets {
		for _, qa := range sa.Questions {
			latest = max(latest, qa.SubmissionTimeInMS-a.StartTimeInMS)
		}
	}
	return time.Duration(latest) * time.Millisecond
}

func checkRetake(in Input) error {
	var last *model.ExamAttempt
	for i := range in.Priors {
		p := &in.Priors[i]
		if p.ID == in.Attempt.ID || p.UserID != in.Attempt.UserID || p.ExamID != in.Attempt.ExamID {
			continue
		}
		if last == nil || p.StartTimeInMS > last.StartTimeInMS {
			last = p
		}
	}
	if last == nil {
		return nil
	}
	earliest := last.StartTimeInMS + in.Config.RetakeTimeInMS
	if in.Now.UnixMilli() < earliest {
		return apperr.RetakeTooSoon(time.UnixMilli(earliest))
	}
	return nil
}
