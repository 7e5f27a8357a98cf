// Package generation samples concrete exam instances from templates and
// separates the client-safe exam from its answer key.
package generation

import (
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/model"
)

// Result is a freshly sampled exam together with its answer key.
type Result struct {
	Exam model.GeneratedExam
	Key  model.AnswerKey
}

// Generator samples exams. It is safe for concurrent use.
type Generator struct {
	mu              sync.Mutex
	rng             *rand.Rand
	crossSetRepeats bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand replaces the random source, mostly for reproducible tests.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) { g.rng = r }
}

// WithCrossSetRepeats controls whether one bank question may appear in more
// than one generated set of the same exam.
func WithCrossSetRepeats(allow bool) Option {
	return func(g *Generator) { g.crossSetRepeats = allow }
}

// New returns a Generator seeded from crypto/rand.
func New(opts ...Option) *Generator {
	g := &Generator{crossSetRepeats: true}
	for _, o := range opts {
		o(g)
	}
	if g.rng == nil {
		var seed [32]byte
		_, _ = crand.Read(seed[:])
		g.rng = rand.New(rand.NewChaCha8(seed))
	}
	return g
}

// NewFromConfig builds a Generator from engine options.
func NewFromConfig(cfg model.EngineConfig, opts ...Option) *Generator {
	return New(append([]Option{WithCrossSetRepeats(cfg.CrossSetRepeats)}, opts...)...)
}

type candidate struct {
	question *model.Question
	tags     map[string]bool
}

// Generate samples one exam from tmpl. Either every quota is met exactly or an
// error is returned and nothing is produced.
func (g *Generator) Generate(tmpl model.ExamTemplate) (Result, error) {
	if tmpl.Deprecated {
		return Result{}, apperr.New(apperr.CodeTemplateDeprecated, "exam %s is deprecated", tmpl.ID.Hex())
	}
	if err := model.ValidateConfig(tmpl.Config); err != nil {
		return Result{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	exam := model.GeneratedExam{
		ID:           primitive.NewObjectID(),
		ExamID:       tmpl.ID,
		QuestionSets: []model.GeneratedQuestionSet{},
		Version:      tmpl.Version,
	}
	key := model.AnswerKey{GeneratedExamID: exam.ID, Entries: []model.KeyEntry{}}

	used := make(map[primitive.ObjectID]bool)
	for qi, quota := range tmpl.Config.QuestionSets {
		pool := eligiblePool(tmpl, quota.Type)
		for n := 0; n < quota.NumberOfSet; n++ {
			if !g.crossSetRepeats {
				pool = slices.DeleteFunc(pool, func(c candidate) bool { return used[c.question.ID] })
			}
			picked, err := g.drawQuestions(pool, quota, tmpl.Config.Tags)
			if err != nil {
				return Result{}, fmt.Errorf("questionSets[%d] set %d: %w", qi, n+1, err)
			}
			set := model.GeneratedQuestionSet{
				ID:        primitive.NewObjectID(),
				Type:      quota.Type,
				Questions: make([]model.GeneratedQuestion, 0, len(picked)),
			}
			for _, q := range picked {
				used[q.ID] = true
				gq, correct, err := g.drawAnswers(q, quota)
				if err != nil {
					return Result{}, fmt.Errorf("questionSets[%d] set %d: %w", qi, n+1, err)
				}
				set.Questions = append(set.Questions, gq)
				key.Entries = append(key.Entries, model.KeyEntry{
					QuestionID: gq.ID,
					SetID:      set.ID,
					Correct:    correct,
				})
			}
			exam.QuestionSets = append(exam.QuestionSets, set)
		}
	}
	return Result{Exam: exam, Key: key}, nil
}

// eligiblePool lists non-deprecated bank questions of type t that have at
// least one correct answer. A question ID listed more than once enters the
// pool once.
func eligiblePool(tmpl model.ExamTemplate, t model.QuestionType) []candidate {
	var pool []candidate
	seen := make(map[primitive.ObjectID]bool)
	for si := range tmpl.QuestionSets {
		qs := &tmpl.QuestionSets[si]
		if qs.Type != t {
			continue
		}
		for qi := range qs.Questions {
			q := &qs.Questions[qi]
			if q.Deprecated || !hasCorrect(q.Answers) || seen[q.ID] {
				continue
			}
			seen[q.ID] = true
			tags := make(map[string]bool, len(q.Tags))
			for _, tag := range q.Tags {
				tags[tag] = true
			}
			pool = append(pool, candidate{question: q, tags: tags})
		}
	}
	return pool
}

func hasCorrect(answers []model.Answer) bool {
	for _, a := range answers {
		if a.IsCorrect {
			return true
		}
	}
	return false
}

// drawQuestions picks NumberOfQuestions distinct questions. With tag quotas
// the quotas are walked in order, each contributing up to its count until the
// set is full.
func (g *Generator) drawQuestions(pool []candidate, quota model.QuestionSetQuota, tags []model.TagQuota) ([]*model.Question, error) {
	want := quota.NumberOfQuestions
	if len(tags) == 0 {
		if len(pool) < want {
			return nil, apperr.New(apperr.CodeInsufficientPool,
				"%s pool has %d eligible questions, need %d", quota.Type, len(pool), want)
		}
		picked := make([]*model.Question, 0, want)
		for _, i := range g.sample(len(pool), want) {
			picked = append(picked, pool[i].question)
		}
		return picked, nil
	}

	chosen := make(map[primitive.ObjectID]bool, want)
	picked := make([]*model.Question, 0, want)
	for _, tq := range tags {
		remaining := want - len(picked)
		if remaining == 0 {
			break
		}
		var matching []candidate
		for _, c := range pool {
			if !chosen[c.question.ID] && matchesAny(c.tags, tq.Group) {
				matching = append(matching, c)
			}
		}
		k := min(tq.NumberOfQuestions, remaining)
		if len(matching) < k {
			return nil, apperr.New(apperr.CodeInsufficientPool,
				"%s pool has %d questions tagged %v, need %d", quota.Type, len(matching), tq.Group, k)
		}
		for _, i := range g.sample(len(matching), k) {
			q := matching[i].question
			chosen[q.ID] = true
			picked = append(picked, q)
		}
	}
	if len(picked) < want {
		return nil, apperr.New(apperr.CodeInsufficientPool,
			"tag quotas yield %d questions, need %d", len(picked), want)
	}
	g.rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	return picked, nil
}

func matchesAny(tags map[string]bool, group []string) bool {
	for _, t := range group {
		if tags[t] {
			return true
		}
	}
	return false
}

// drawAnswers samples the presented answers of q and returns the shuffled
// question plus the correct subset in presentation order. Repeated answer IDs
// count once.
func (g *Generator) drawAnswers(q *model.Question, quota model.QuestionSetQuota) (model.GeneratedQuestion, []primitive.ObjectID, error) {
	var correct, incorrect []primitive.ObjectID
	seen := make(map[primitive.ObjectID]bool, len(q.Answers))
	for _, a := range q.Answers {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		if a.IsCorrect {
			correct = append(correct, a.ID)
		} else {
			incorrect = append(incorrect, a.ID)
		}
	}
	if len(correct) < quota.NumberOfCorrectAnswers || len(incorrect) < quota.NumberOfIncorrectAnswers {
		return model.GeneratedQuestion{}, nil, apperr.New(apperr.CodeInsufficientAnswers,
			"question %s has %d correct and %d incorrect answers, need %d and %d",
			q.ID.Hex(), len(correct), len(incorrect), quota.NumberOfCorrectAnswers, quota.NumberOfIncorrectAnswers)
	}

	isCorrect := make(map[primitive.ObjectID]bool, quota.NumberOfCorrectAnswers)
	answers := make([]primitive.ObjectID, 0, quota.NumberOfCorrectAnswers+quota.NumberOfIncorrectAnswers)
	for _, i := range g.sample(len(correct), quota.NumberOfCorrectAnswers) {
		answers = append(answers, correct[i])
		isCorrect[correct[i]] = true
	}
	for _, i := range g.sample(len(incorrect), quota.NumberOfIncorrectAnswers) {
		answers = append(answers, incorrect[i])
	}
	g.rng.Shuffle(len(answers), func(i, j int) { answers[i], answers[j] = answers[j], answers[i] })

	keyed := make([]primitive.ObjectID, 0, len(isCorrect))
	for _, id := range answers {
		if isCorrect[id] {
			keyed = append(keyed, id)
		}
	}
	return model.GeneratedQuestion{
		ID:         primitive.NewObjectID(),
		QuestionID: q.ID,
		Answers:    answers,
	}, keyed, nil
}

// sample returns k distinct indexes in [0, n).
func (g *Generator) sample(n, k int) []int {
	return g.rng.Perm(n)[:k]
}
