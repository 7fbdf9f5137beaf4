package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"assessment-service/internal/domain"
)

func TestContentCacheCaches(t *testing.T) {
	store := NewStore()
	store.PutContent(sampleContent())
	loader := &countingLoader{ContentLoader: store}
	cache := NewContentCache(loader, time.Minute)

	if _, err := cache.GetContent(context.Background(), "a1"); err != nil {
		t.Fatalf("get content: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := cache.GetContent(context.Background(), "a1"); err != nil {
		t.Fatalf("get content 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestContentCacheRejectsBrokenAnswerKey(t *testing.T) {
	store := NewStore()
	content := sampleContent()
	bad := 7
	content.Questions[0].CorrectChoice = &bad
	store.PutContent(content)
	loader := &countingLoader{ContentLoader: store}
	cache := NewContentCache(loader, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cache.GetContent(context.Background(), "a1"); !errors.Is(err, domain.ErrInvalidContent) {
			t.Fatalf("expected invalid content, got %v", err)
		}
	}
	if loader.calls != 2 {
		t.Fatalf("invalid content must not be cached, loader calls %d", loader.calls)
	}
}

func TestContentCacheExpires(t *testing.T) {
	store := NewStore()
	store.PutContent(sampleContent())
	loader := &countingLoader{ContentLoader: store}
	cache := NewContentCache(loader, time.Minute)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	cache.clock = func() time.Time { return now }

	_, _ = cache.GetContent(context.Background(), "a1")
	now = now.Add(2 * time.Minute)
	_, _ = cache.GetContent(context.Background(), "a1")
	if loader.calls != 2 {
		t.Fatalf("expected expired entry to reload, loader calls %d", loader.calls)
	}
}

func TestContentCacheUnknownAssessment(t *testing.T) {
	cache := NewContentCache(NewStore(), time.Minute)
	_, err := cache.GetContent(context.Background(), "missing")
	if !errors.Is(err, domain.ErrAssessmentNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

type countingLoader struct {
	ContentLoader
	calls int
}

func (l *countingLoader) LoadContent(ctx context.Context, assessmentID string) (domain.Content, error) {
	l.calls++
	return l.ContentLoader.LoadContent(ctx, assessmentID)
}

func sampleContent() domain.Content {
	one, two := 1, 2
	return domain.Content{
		Assessment: domain.Assessment{ID: "a1", Title: "Aptitude", Kind: "spi", AutoGradable: true},
		Questions: []domain.Question{
			{ID: "q2", Prompt: "3 - 1?", Choices: []string{"1", "2", "3", "4"}, CorrectChoice: &two, Position: 2},
			{ID: "q1", Prompt: "0 + 1?", Choices: []string{"1", "2", "3", "4"}, CorrectChoice: &one, Position: 1},
		},
	}
}
