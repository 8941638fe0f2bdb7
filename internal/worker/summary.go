package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/task"
)

// DefaultSummaryLimit is how many entries a summary covers when the task does not say.
const DefaultSummaryLimit = 20

// NoContextMessage is the result of summarising an empty context log.
const NoContextMessage = "No context entries found to summarize."

// Summary condenses recent context entries into a daily_summary entry.
type Summary struct {
	Chat  Chatter
	Model string
}

func (s *Summary) Specialty() string { return "context_summary" }

func (s *Summary) Execute(ctx context.Context, t *task.Task, cx ContextIO) (any, error) {
	p := SummaryParams{Limit: DefaultSummaryLimit}
	if err := decodeParams(t.Params, &p); err != nil {
		return nil, err
	}
	entries, err := cx.Latest(ctx, p.Limit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return NoContextMessage, nil
	}

	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.CreatedAt.Format(time.RFC3339), e.Type, e.Content)
	}
	prompt := fmt.Sprintf(`
Please provide a concise summary of the following context entries:

%s
Create a clear overview that captures key points and essential information from these entries.
The summary should be comprehensive yet brief, highlighting the most important aspects.
`, b.String())

	content, err := complete(ctx, s.Chat, s.Specialty(), s.Model, 0.3, prompt)
	if err != nil {
		return nil, err
	}
	if _, err := cx.Append(ctx, contextdb.Entry{
		Content: content,
		Type:    "daily_summary",
		TaskID:  t.ID,
	}); err != nil {
		return nil, err
	}
	return content, nil
}
