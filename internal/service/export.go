package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/model"
)

// ExportAttempts collects every attempt record with a per-template summary.
func (s *Service) ExportAttempts(ctx context.Context) (model.AttemptExport, error) {
	records, err := s.repo.ListAttemptRecords(ctx)
	if err != nil {
		return model.AttemptExport{}, fmt.Errorf("list attempt records: %w", err)
	}
	templates, err := s.repo.ListTemplates(ctx)
	if err != nil {
		return model.AttemptExport{}, fmt.Errorf("list templates: %w", err)
	}
	names := make(map[string]string, len(templates))
	for _, t := range templates {
		names[t.ID.Hex()] = t.Config.Name
	}

	// Summary keeps first-seen template order.
	idx := make(map[string]int)
	var summary []model.TemplateResult
	var summaryIDs []primitive.ObjectID
	sums := make(map[string]float64)
	scored := make(map[string]int)
	for _, r := range records {
		id := r.Attempt.ExamID.Hex()
		i, ok := idx[id]
		if !ok {
			i = len(summary)
			idx[id] = i
			summary = append(summary, model.TemplateResult{ExamID: id, Name: names[id]})
			summaryIDs = append(summaryIDs, r.Attempt.ExamID)
		}
		tr := &summary[i]
		tr.Attempts++
		if !r.Verdict.Counts() {
			tr.Rejected++
			continue
		}
		if r.Verdict == model.VerdictExpired {
			tr.Expired++
		}
		if r.Score != nil {
			sums[id] += r.Score.Percent
			scored[id]++
			if r.Score.Passed {
				tr.Passed++
			}
		}
	}
	for i := range summary {
		tr := &summary[i]
		if n := scored[tr.ExamID]; n > 0 {
			tr.Average = sums[tr.ExamID] / float64(n)
		}
		n, err := s.repo.GeneratedExamCount(ctx, summaryIDs[i])
		if err != nil {
			return model.AttemptExport{}, fmt.Errorf("count generated exams of %s: %w", tr.ExamID, err)
		}
		tr.Generated = n
	}
	if records == nil {
		records = []model.AttemptRecord{}
	}
	if summary == nil {
		summary = []model.TemplateResult{}
	}

	return model.AttemptExport{
		ExportedAt: s.now().UTC(),
		Count:      len(records),
		Summary:    summary,
		Records:    records,
	}, nil
}
