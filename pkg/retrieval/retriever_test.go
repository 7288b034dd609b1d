package retrieval

import (
	"context"
	"iter"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type staticSource []string

func (s staticSource) Snippets(context.Context) iter.Seq[string] {
	return slices.Values(s)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Show ALL tasks", []string{"show", "all", "tasks"}},
		{"in_progress and e-mail", []string{"in_progress", "and", "e-mail"}},
		{"Все задачи за сентябрь 2025!", []string{"все", "задачи", "за", "сентябрь", "2025"}},
		{"table tasks(id:integer, created_at:timestamp)", []string{"table", "tasks", "id", "integer", "created_at", "timestamp"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.in))
		})
	}
}

func TestScore(t *testing.T) {
	candidate := "table tasks(id:integer, status:text, created_at:timestamp)"

	assert.Equal(t, 0, Score(nil, candidate))
	assert.Equal(t, 1, Score([]string{"tasks"}, candidate))
	assert.Equal(t, 2, Score([]string{"tasks", "status", "users"}, candidate))
	assert.Equal(t, 1, Score([]string{"tasks", "tasks", "tasks"}, candidate), "presence only")
}

func TestScore_Monotonic(t *testing.T) {
	candidates := []string{
		"table tasks(id:integer, status:text)",
		"fk tasks.assignee_id -> users.id",
		"active statuses: new, in_progress",
	}
	base := Tokenize("show tasks")
	for _, c := range candidates {
		before := Score(base, c)
		for _, extra := range []string{"status", "users", "in_progress", "unrelated"} {
			after := Score(append(slices.Clone(base), extra), c)
			assert.GreaterOrEqual(t, after, before, "%q + %q", c, extra)
		}
	}
}

func TestRetriever_Retrieve(t *testing.T) {
	source := staticSource{
		"table comments(id:integer, task_id:integer)",
		"table tasks(id:integer, status:text)",
		"table users(id:integer, name:text)",
		"fk comments.task_id -> tasks.id",
	}
	r := NewRetriever(source, nil, zap.NewNop())

	got := r.Retrieve(context.Background(), "tasks with status done", 3)
	assert.Equal(t, []string{
		"table tasks(id:integer, status:text)",
		"completed status: done, closed",
		"fk comments.task_id -> tasks.id",
	}, got)
}

func TestRetriever_StableTies(t *testing.T) {
	source := staticSource{"table b(x:int)", "table a(y:int)"}
	r := NewRetriever(source, []string{"rule one"}, zap.NewNop())

	got := r.Retrieve(context.Background(), "nothing matches", 10)
	assert.Equal(t, []string{"table b(x:int)", "table a(y:int)", "rule one"}, got)
}

func TestRetriever_DefaultK(t *testing.T) {
	var source staticSource
	for range 20 {
		source = append(source, "table t(x:int)")
	}
	r := NewRetriever(source, nil, zap.NewNop())

	assert.Len(t, r.Retrieve(context.Background(), "q", 0), DefaultK)
}

func TestRetriever_EmptyCatalogStillReturnsRules(t *testing.T) {
	r := NewRetriever(staticSource{}, nil, zap.NewNop())

	got := r.Retrieve(context.Background(), "active tasks", 12)
	assert.Equal(t, "active statuses: new, in_progress", got[0])
	assert.Len(t, got, len(DefaultBusinessRules))
}
