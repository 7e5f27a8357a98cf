package generation

import (
	"slices"

	"github.com/pavelanni/certexam/internal/model"
)

// Project returns a deep copy of the client-safe exam in r. The answer key is
// a separate type and never reaches the returned value.
func Project(r Result) model.GeneratedExam {
	src := r.Exam
	out := model.GeneratedExam{
		ID:            src.ID,
		ExamID:        src.ExamID,
		QuestionSets:  make([]model.GeneratedQuestionSet, len(src.QuestionSets)),
		Deprecated:    src.Deprecated,
		Version:       src.Version,
		CreatedAtInMS: src.CreatedAtInMS,
	}
	for i, s := range src.QuestionSets {
		qs := make([]model.GeneratedQuestion, len(s.Questions))
		for j, q := range s.Questions {
			qs[j] = model.GeneratedQuestion{
				ID:         q.ID,
				QuestionID: q.QuestionID,
				Answers:    slices.Clone(q.Answers),
			}
		}
		out.QuestionSets[i] = model.GeneratedQuestionSet{ID: s.ID, Type: s.Type, Questions: qs}
	}
	return out
}
