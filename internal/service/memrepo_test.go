package service

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/apperr"
	"github.com/pavelanni/certexam/internal/model"
)

type templateKey struct {
	id      primitive.ObjectID
	version int
}

// memRepo is an in-memory Repository for service tests.
type memRepo struct {
	mu          sync.RWMutex
	templates   map[templateKey]model.ExamTemplate
	latest      map[primitive.ObjectID]int
	order       []primitive.ObjectID
	moderations map[primitive.ObjectID]model.Moderation
	exams       map[primitive.ObjectID]model.GeneratedExam
	keys        map[primitive.ObjectID]model.AnswerKey
	records     []model.AttemptRecord
}

func newMemRepo() *memRepo {
	return &memRepo{
		templates:   make(map[templateKey]model.ExamTemplate),
		latest:      make(map[primitive.ObjectID]int),
		moderations: make(map[primitive.ObjectID]model.Moderation),
		exams:       make(map[primitive.ObjectID]model.GeneratedExam),
		keys:        make(map[primitive.ObjectID]model.AnswerKey),
	}
}

func (r *memRepo) SaveTemplate(_ context.Context, t model.ExamTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := templateKey{t.ID, t.Version}
	if _, ok := r.templates[k]; ok {
		return apperr.New(apperr.CodeInvalidRequest, "version exists")
	}
	if _, ok := r.latest[t.ID]; !ok {
		r.order = append(r.order, t.ID)
	}
	r.templates[k] = t
	r.latest[t.ID] = max(r.latest[t.ID], t.Version)
	return nil
}

func (r *memRepo) GetTemplate(ctx context.Context, id primitive.ObjectID) (model.ExamTemplate, error) {
	r.mu.RLock()
	v, ok := r.latest[id]
	r.mu.RUnlock()
	if !ok {
		return model.ExamTemplate{}, apperr.New(apperr.CodeNotFound, "exam %s", id.Hex())
	}
	return r.GetTemplateVersion(ctx, id, v)
}

func (r *memRepo) GetTemplateVersion(_ context.Context, id primitive.ObjectID, version int) (model.ExamTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[templateKey{id, version}]
	if !ok {
		return model.ExamTemplate{}, apperr.New(apperr.CodeNotFound, "exam %s v%d", id.Hex(), version)
	}
	return t, nil
}

func (r *memRepo) ListTemplates(_ context.Context) ([]model.ExamTemplate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.ExamTemplate
	for _, id := range r.order {
		out = append(out, r.templates[templateKey{id, r.latest[id]}])
	}
	return out, nil
}

func (r *memRepo) GetModeration(_ context.Context, examID primitive.ObjectID) (model.Moderation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.moderations[examID]
	if !ok {
		return model.Moderation{}, apperr.New(apperr.CodeNotFound, "moderation %s", examID.Hex())
	}
	return m, nil
}

func (r *memRepo) SaveModeration(_ context.Context, m model.Moderation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moderations[m.ExamID] = m
	return nil
}

func (r *memRepo) ListModerations(_ context.Context, status model.ModerationStatus) ([]model.Moderation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Moderation
	for _, id := range r.order {
		if m, ok := r.moderations[id]; ok && (status == "" || m.Status == status) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memRepo) SaveGeneratedExam(_ context.Context, exam model.GeneratedExam, key model.AnswerKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[exam.ID]; ok {
		return apperr.New(apperr.CodeInvalidRequest, "answer key exists")
	}
	r.exams[exam.ID] = exam
	r.keys[exam.ID] = key
	return nil
}

func (r *memRepo) GetGeneratedExam(_ context.Context, id primitive.ObjectID) (model.GeneratedExam, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.exams[id]
	if !ok {
		return model.GeneratedExam{}, apperr.New(apperr.CodeNotFound, "generated exam %s", id.Hex())
	}
	return e, nil
}

func (r *memRepo) GetAnswerKey(_ context.Context, id primitive.ObjectID) (model.AnswerKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.keys[id]
	if !ok {
		return model.AnswerKey{}, apperr.New(apperr.CodeNotFound, "answer key %s", id.Hex())
	}
	return k, nil
}

func (r *memRepo) GeneratedExamCount(_ context.Context, examID primitive.ObjectID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, e := range r.exams {
		if e.ExamID == examID {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) SaveAttemptRecord(_ context.Context, rec model.AttemptRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.Attempt.ID == rec.Attempt.ID {
			return apperr.New(apperr.CodeDuplicateAttempt, "attempt %s", rec.Attempt.ID.Hex())
		}
	}
	r.records = append(r.records, rec)
	return nil
}

func (r *memRepo) ListCountingAttempts(_ context.Context, userID string, examID primitive.ObjectID) ([]model.ExamAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.ExamAttempt
	for _, rec := range r.records {
		if rec.Attempt.UserID == userID && rec.Attempt.ExamID == examID && rec.Verdict.Counts() {
			out = append(out, rec.Attempt)
		}
	}
	return out, nil
}

func (r *memRepo) ListAttemptRecords(_ context.Context) ([]model.AttemptRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]model.AttemptRecord(nil), r.records...), nil
}
