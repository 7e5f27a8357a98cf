// Package scoring grades validated attempts against the retained answer key.
package scoring

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/model"
)

// Score grades each question all-or-nothing: the submitted answer set must
// equal the key entry exactly. Unanswered questions count as incorrect.
func Score(a model.ExamAttempt, key model.AnswerKey, cfg model.ExamConfig) model.ScoreResult {
	submitted := make(map[primitive.ObjectID][]primitive.ObjectID)
	for _, sa := range a.QuestionSets {
		for _, qa := range sa.Questions {
			submitted[qa.ID] = qa.Answers
		}
	}

	res := model.ScoreResult{AttemptID: a.ID, Sets: []model.SetResult{}}
	setIdx := make(map[primitive.ObjectID]int)
	for _, e := range key.Entries {
		i, ok := setIdx[e.SetID]
		if !ok {
			i = len(res.Sets)
			setIdx[e.SetID] = i
			res.Sets = append(res.Sets, model.SetResult{SetID: e.SetID})
		}
		res.Total++
		res.Sets[i].Total++
		if answers, ok := submitted[e.QuestionID]; ok && equalSets(answers, e.Correct) {
			res.RawCorrect++
			res.Sets[i].RawCorrect++
		}
	}

	if res.Total > 0 {
		res.Percent = 100 * float64(res.RawCorrect) / float64(res.Total)
	}
	res.Passed = res.Percent >= cfg.PassingPercent
	return res
}

// MarkExpired flags an overrun attempt; it can never pass.
func MarkExpired(r model.ScoreResult) model.ScoreResult {
	r.Expired = true
	r.Passed = false
	return r
}

func equalSets(a, b []primitive.ObjectID) bool {
	as := make(map[primitive.ObjectID]bool, len(a))
	for _, id := range a {
		as[id] = true
	}
	bs := make(map[primitive.ObjectID]bool, len(b))
	for _, id := range b {
		bs[id] = true
	}
	if len(as) != len(bs) {
		return false
	}
	for id := range as {
		if !bs[id] {
			return false
		}
	}
	return true
}
