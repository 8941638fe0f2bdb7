package worker

import (
	"context"
	"fmt"
	"strings"

	"github.com/nidhogg/honeycomb/internal/contextdb"
	"github.com/nidhogg/honeycomb/internal/provider"
	"github.com/nidhogg/honeycomb/internal/task"
)

const (
	recentContextLimit = 5
	previewLen         = 100
)

// complete sends a single user prompt through the router.
func complete(ctx context.Context, chat Chatter, route, model string, temperature float64, prompt string) (string, error) {
	resp, err := chat.Route(ctx, route, &provider.ChatRequest{
		Model:       model,
		Messages:    []provider.Message{{Role: "user", Content: prompt}},
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// recentContext joins the content of the latest entries, newest first.
func recentContext(ctx context.Context, cx ContextIO) (string, error) {
	entries, err := cx.Latest(ctx, recentContextLimit)
	if err != nil {
		return "", err
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Content
	}
	return strings.Join(lines, "\n"), nil
}

// recordResult appends a short preview of content to the context log.
func recordResult(ctx context.Context, cx ContextIO, t *task.Task, label, entryType, content string) error {
	_, err := cx.Append(ctx, contextdb.Entry{
		Content: fmt.Sprintf("%s task result: %s...", label, preview(content)),
		Type:    entryType,
		TaskID:  t.ID,
	})
	return err
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewLen {
		return s
	}
	return string(r[:previewLen])
}
