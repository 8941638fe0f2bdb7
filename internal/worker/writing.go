package worker

import (
	"context"
	"fmt"

	"github.com/nidhogg/honeycomb/internal/task"
)

// Writing drafts text with an LLM.
type Writing struct {
	Chat  Chatter
	Model string
}

func (w *Writing) Specialty() string { return "writing" }

func (w *Writing) Execute(ctx context.Context, t *task.Task, cx ContextIO) (any, error) {
	var p WritingParams
	if err := decodeParams(t.Params, &p); err != nil {
		return nil, err
	}
	recent, err := recentContext(ctx, cx)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`
Task: %s
Tone: %s
Length: %s

Recent Context:
%s

Please complete the writing task described above, taking into account any relevant context.
`, orDefault(p.Prompt, t.Description), orDefault(p.Tone, "professional"), orDefault(p.Length, "medium"), recent)

	content, err := complete(ctx, w.Chat, w.Specialty(), w.Model, 0.7, prompt)
	if err != nil {
		return nil, err
	}
	if err := recordResult(ctx, cx, t, "Writing", "writing_result", content); err != nil {
		return nil, err
	}
	return content, nil
}

// Research summarises a topic with an LLM.
type Research struct {
	Chat  Chatter
	Model string
}

func (r *Research) Specialty() string { return "research" }

func (r *Research) Execute(ctx context.Context, t *task.Task, cx ContextIO) (any, error) {
	var p ResearchParams
	if err := decodeParams(t.Params, &p); err != nil {
		return nil, err
	}
	recent, err := recentContext(ctx, cx)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`
Task: Research on %s
Depth: %s

Recent Context:
%s

Please conduct research on the topic described above, taking into account any relevant context.
Provide a comprehensive summary with key points, insights, and relevant information.
`, orDefault(p.Topic, t.Description), orDefault(p.Depth, "medium"), recent)

	content, err := complete(ctx, r.Chat, r.Specialty(), r.Model, 0.5, prompt)
	if err != nil {
		return nil, err
	}
	if err := recordResult(ctx, cx, t, "Research", "research_result", content); err != nil {
		return nil, err
	}
	return content, nil
}
