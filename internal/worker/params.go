package worker

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// WritingParams are the parameters of a writing task.
type WritingParams struct {
	Prompt string `mapstructure:"prompt"`
	Tone   string `mapstructure:"tone"`
	Length string `mapstructure:"length"`
}

// CodingParams are the parameters of a coding task.
type CodingParams struct {
	Language string `mapstructure:"language"`
	FilePath string `mapstructure:"file_path"`
}

// ResearchParams are the parameters of a research task.
type ResearchParams struct {
	Topic string `mapstructure:"topic"`
	Depth string `mapstructure:"depth"`
}

// CommandParams are the parameters of a command task.
type CommandParams struct {
	Command string `mapstructure:"command"`
}

// SummaryParams are the parameters of a context summary task.
type SummaryParams struct {
	Limit int `mapstructure:"limit"`
}

// decodeParams fills out from a task's params map. Numbers that arrived
// as JSON floats or strings are converted to the field type.
func decodeParams(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("params decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("decode params: %w", err)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
