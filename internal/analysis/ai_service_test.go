package analysis

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/seanblong/repoinsight/internal/document"
	"github.com/seanblong/repoinsight/pkg/models"
)

type mockLLM struct {
	complete func(ctx context.Context, prompt string) (string, error)
}

func (m *mockLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return m.complete(ctx, prompt)
}

func TestPreprocessCommits_TwoCommits(t *testing.T) {
	svc := newAIService(t, &mockLLM{})
	data := sampleData()

	docs, err := svc.PreprocessCommits(data.Commits)
	if err != nil {
		t.Fatalf("PreprocessCommits failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	for i, d := range docs {
		if d.Metadata[document.MetaCommitID] != data.Commits[i].ID {
			t.Errorf("Document %d: expected id %s, got %v", i, data.Commits[i].ID, d.Metadata[document.MetaCommitID])
		}
	}
}

func TestPreprocessContent_SplitsLargeFiles(t *testing.T) {
	svc := newAIService(t, &mockLLM{})
	big := strings.Repeat("line of code\n", 200)

	docs, err := svc.PreprocessContent([]models.FileRecord{
		{FilePath: "big.go", FileContent: big},
		{FilePath: "small.go", FileContent: "package small"},
	})
	if err != nil {
		t.Fatalf("PreprocessContent failed: %v", err)
	}
	if len(docs) < 3 {
		t.Fatalf("Expected the large file to be split, got %d documents", len(docs))
	}
	if docs[len(docs)-1].Metadata[document.MetaFilePath] != "small.go" {
		t.Errorf("Expected document order preserved, got %v", docs[len(docs)-1].Metadata)
	}
	for _, d := range docs[:len(docs)-1] {
		if d.Metadata[document.MetaFilePath] != "big.go" {
			t.Errorf("Unexpected metadata: %v", d.Metadata)
		}
	}
}

func TestScoreCommits(t *testing.T) {
	var mapPrompts atomic.Int32
	llm := &mockLLM{complete: func(ctx context.Context, prompt string) (string, error) {
		if strings.HasPrefix(prompt, "These are git diff") {
			mapPrompts.Add(1)
			return "adds a greeting", nil
		}
		return "```json\n" + `{"explanation": "인사 기능", "score": {"readability": 90, "reusability": 80, "performance": 70, "testability": 60, "exception": 50, "scoreComment": "좋음"}}` + "\n```", nil
	}}
	svc := newAIService(t, llm)

	docs, _ := svc.PreprocessCommits(sampleData().Commits)
	explanation, score, err := svc.ScoreCommits(context.Background(), docs)
	if err != nil {
		t.Fatalf("ScoreCommits failed: %v", err)
	}
	if n := mapPrompts.Load(); n != 2 {
		t.Errorf("Expected commit map prompt per document, got %d", n)
	}
	if explanation != "인사 기능" || score.Readability != 90 || score.Exception != 50 || score.Total() != 70 {
		t.Errorf("Unexpected judgement: %q %+v", explanation, score)
	}
}

func TestGenerateReadme(t *testing.T) {
	llm := &mockLLM{complete: func(ctx context.Context, prompt string) (string, error) {
		if strings.HasPrefix(prompt, "Summarize this: ") {
			return "summary", nil
		}
		return "## 주제\nCoATest", nil
	}}
	svc := newAIService(t, llm)

	docs, _ := svc.PreprocessContent(sampleData().Content)
	got, err := svc.GenerateReadme(context.Background(), docs)
	if err != nil {
		t.Fatalf("GenerateReadme failed: %v", err)
	}
	if got != "## 주제\nCoATest" {
		t.Errorf("Unexpected README: %q", got)
	}
}
