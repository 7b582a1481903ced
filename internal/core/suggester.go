package core

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

// Suggester proposes a priority and deadline for a task draft.
type Suggester interface {
	Suggest(ctx context.Context, title, description string) (models.AISuggestion, error)
}

// SuggestDays is how far ahead the mock suggestion places the deadline.
const SuggestDays = 3

// MockSuggester simulates a remote analysis: it waits a fixed delay and
// returns a random priority with a deadline SuggestDays from now. It never
// touches the network.
type MockSuggester struct {
	Delay time.Duration
	Now   func() time.Time
	// Intn returns a value in [0, n). Defaults to math/rand/v2.
	Intn func(n int) int
}

// NewMockSuggester returns a MockSuggester with the given delay.
func NewMockSuggester(delay time.Duration) *MockSuggester {
	return &MockSuggester{Delay: delay}
}

// Suggest waits Delay (or until ctx is done) and returns the suggestion.
func (m *MockSuggester) Suggest(ctx context.Context, _, _ string) (models.AISuggestion, error) {
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return models.AISuggestion{}, ctx.Err()
		case <-timer.C:
		}
	}

	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	intn := rand.IntN
	if m.Intn != nil {
		intn = m.Intn
	}

	return models.AISuggestion{
		SuggestedPriority: models.Priority(intn(int(models.MaxPriority)) + 1),
		SuggestedDeadline: models.Timestamp{Time: now().Add(SuggestDays * 24 * time.Hour)},
	}, nil
}

// keywordRule maps title keywords to a priority.
type keywordRule struct {
	words    []string
	priority models.Priority
}

var keywordRules = []keywordRule{
	{words: []string{"urgent", "asap", "critical", "emergency"}, priority: 5},
	{words: []string{"important", "high", "priority"}, priority: 4},
	{words: []string{"medium", "normal"}, priority: 3},
	{words: []string{"low", "minor", "small"}, priority: 2},
}

// deadlineDays maps a priority to the number of days until the suggested
// deadline; higher priority means sooner.
var deadlineDays = map[models.Priority]int{1: 14, 2: 10, 3: 7, 4: 3, 5: 1}

// KeywordSuggester is the offline heuristic the server falls back to when it
// has no model configured: priority from title keywords, deadline from
// priority.
type KeywordSuggester struct {
	Now func() time.Time
}

// Suggest scores the title and derives a deadline. It never fails.
func (k KeywordSuggester) Suggest(ctx context.Context, title, _ string) (models.AISuggestion, error) {
	if err := ctx.Err(); err != nil {
		return models.AISuggestion{}, err
	}
	now := time.Now
	if k.Now != nil {
		now = k.Now
	}

	priority := KeywordPriority(title)
	days, ok := deadlineDays[priority]
	if !ok {
		days = 7
	}
	return models.AISuggestion{
		SuggestedPriority: priority,
		SuggestedDeadline: models.Timestamp{Time: now().AddDate(0, 0, days)},
	}, nil
}

// KeywordPriority scores a title by the first matching keyword group.
func KeywordPriority(title string) models.Priority {
	lower := strings.ToLower(title)
	for _, rule := range keywordRules {
		for _, w := range rule.words {
			if strings.Contains(lower, w) {
				return rule.priority
			}
		}
	}
	return models.DefaultPriority
}

// TaskAnalyzer is the subset of the API client that RemoteSuggester needs.
type TaskAnalyzer interface {
	AnalyzeTask(ctx context.Context, title, description string) (models.AISuggestion, error)
}

// RemoteSuggester delegates analysis to the server's analyze endpoint.
type RemoteSuggester struct {
	API TaskAnalyzer
}

// Suggest calls the server and clamps the returned priority into range.
func (r RemoteSuggester) Suggest(ctx context.Context, title, description string) (models.AISuggestion, error) {
	s, err := r.API.AnalyzeTask(ctx, title, description)
	if err != nil {
		return models.AISuggestion{}, fmt.Errorf("analyzing task: %w", err)
	}
	s.SuggestedPriority = s.SuggestedPriority.Clamp()
	return s, nil
}

// NewSuggester builds the Suggester named by cfg.
func NewSuggester(cfg models.AIConfig, api TaskAnalyzer) (Suggester, error) {
	switch cfg.Suggester {
	case "", models.SuggesterMock:
		return NewMockSuggester(cfg.Delay), nil
	case models.SuggesterKeyword:
		return KeywordSuggester{}, nil
	case models.SuggesterRemote:
		if api == nil {
			return nil, fmt.Errorf("remote suggester requires an API client")
		}
		return RemoteSuggester{API: api}, nil
	default:
		return nil, fmt.Errorf("unknown suggester %q", cfg.Suggester)
	}
}
