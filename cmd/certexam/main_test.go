package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavelanni/certexam/internal/model"
	"github.com/pavelanni/certexam/internal/service"
	"github.com/pavelanni/certexam/internal/store"
)

func writeTemplatesFile(t *testing.T, dir, name string, n int) string {
	t.Helper()
	var templates []model.ExamTemplate
	for i := 0; i < n; i++ {
		cfg := model.DefaultConfig()
		cfg.Name = "imported"
		cfg.QuestionSets = []model.QuestionSetQuota{{
			Type: model.QuestionTypeMultipleChoice, NumberOfSet: 1, NumberOfQuestions: 1,
			NumberOfCorrectAnswers: 1, NumberOfIncorrectAnswers: 1,
		}}
		templates = append(templates, model.ExamTemplate{Config: cfg})
	}
	data, err := json.Marshal(templates)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestImportTemplatesSkipsKnownFiles(t *testing.T) {
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	svc := service.New(s, model.DefaultEngineConfig())
	dir := t.TempDir()
	path := writeTemplatesFile(t, dir, "exams.json", 2)

	if err := importTemplates(ctx, s, svc, []string{path}); err != nil {
		t.Fatalf("first import: %v", err)
	}
	if err := importTemplates(ctx, s, svc, []string{path}); err != nil {
		t.Fatalf("second import: %v", err)
	}

	// A changed file is skipped as well.
	writeTemplatesFile(t, dir, "exams.json", 3)
	if err := importTemplates(ctx, s, svc, []string{path}); err != nil {
		t.Fatalf("changed import: %v", err)
	}

	all, err := s.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("got %d templates, want 2", len(all))
	}
	pending, err := s.ListModerations(ctx, model.ModerationPending)
	if err != nil {
		t.Fatalf("ListModerations: %v", err)
	}
	if len(pending) != 2 {
		t.Errorf("got %d pending moderations, want 2", len(pending))
	}
}

func TestImportTemplatesRejectsInvalidConfig(t *testing.T) {
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`[{"config":{"passingPercent":120}}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	err = importTemplates(ctx, s, service.New(s, model.DefaultEngineConfig()), []string{path})
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if h, _ := s.GetImportedFileHash(ctx, path); h != "" {
		t.Errorf("failed import recorded hash %q", h)
	}
}

func TestParseObjectIDs(t *testing.T) {
	id := primitive.NewObjectID()
	got, err := parseObjectIDs([]string{" " + id.Hex() + " "})
	if err != nil {
		t.Fatalf("parseObjectIDs: %v", err)
	}
	if len(got) != 1 || got[0] != id {
		t.Errorf("got %v, want [%s]", got, id.Hex())
	}
	if _, err := parseObjectIDs([]string{"nope"}); err == nil {
		t.Error("expected error for invalid id")
	}
}
