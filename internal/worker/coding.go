package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/nidhogg/honeycomb/internal/task"
)

var fencedBlock = regexp.MustCompile("(?s)```(?:\\w+)?\\n(.+?)\\n```")

// Coding generates code with an LLM and optionally writes it to a file.
// Relative file paths are resolved against Workdir when it is set.
type Coding struct {
	Chat    Chatter
	Model   string
	Workdir string
}

func (c *Coding) Specialty() string { return "coding" }

func (c *Coding) Execute(ctx context.Context, t *task.Task, cx ContextIO) (any, error) {
	var p CodingParams
	if err := decodeParams(t.Params, &p); err != nil {
		return nil, err
	}
	recent, err := recentContext(ctx, cx)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`
Task: %s
Programming Language: %s
File Path (if applicable): %s

Recent Context:
%s

Please write code that solves the described task, taking into account any relevant context.
Provide clean, efficient, well-documented code that follows best practices.
`, t.Description, orDefault(p.Language, "python"), p.FilePath, recent)

	content, err := complete(ctx, c.Chat, c.Specialty(), c.Model, 0.2, prompt)
	if err != nil {
		return nil, err
	}
	if err := recordResult(ctx, cx, t, "Coding", "coding_result", content); err != nil {
		return nil, err
	}
	if p.FilePath == "" {
		return content, nil
	}

	// A failed write still completes the task; the result says what happened.
	path := c.resolve(p.FilePath)
	if err := writeCode(path, extractCode(content)); err != nil {
		return fmt.Sprintf("Error saving code to file: %v\n\nCode:\n%s", err, content), nil
	}
	return fmt.Sprintf("Code saved to %s:\n\n%s", p.FilePath, content), nil
}

func (c *Coding) resolve(path string) string {
	if c.Workdir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Workdir, path)
}

// extractCode returns the first fenced code block, or all of content.
func extractCode(content string) string {
	if m := fencedBlock.FindStringSubmatch(content); m != nil {
		return m[1]
	}
	return content
}

func writeCode(path, code string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(code), 0o644)
}
