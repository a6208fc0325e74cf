package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alantheprice/refactord/pkg/utils"
	ollama "github.com/ollama/ollama/api"
)

// SkeletonText is a decoded file preview given to a file selector.
type SkeletonText struct {
	Path    string
	Content string
}

// SelectInput is the planning context handed to a file selector.
type SelectInput struct {
	RequestID   string
	Instruction string
	Skeletons   []SkeletonText
	Seed        int64
}

type ollamaClient interface {
	Chat(ctx context.Context, req *ollama.ChatRequest, fn ollama.ChatResponseFunc) error
}

type ollamaClientFactory func() (ollamaClient, error)

func defaultOllamaFactory() (ollamaClient, error) {
	client, err := ollama.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("could not create ollama client: %w", err)
	}
	return client, nil
}

// OllamaOptions configures the Ollama adapters.
type OllamaOptions struct {
	Model       string
	Temperature float64
	MaxRetries  int
}

// OllamaClient talks to an Ollama server (OLLAMA_HOST) and implements both
// TextGenerator and the planner's file selection.
type OllamaClient struct {
	opts    OllamaOptions
	factory ollamaClientFactory
	backoff *utils.RateLimitBackoff
}

// NewOllamaClient creates an Ollama-backed generator.
func NewOllamaClient(opts OllamaOptions) *OllamaClient {
	return newOllamaClientWithFactory(opts, defaultOllamaFactory)
}

func newOllamaClientWithFactory(opts OllamaOptions, factory ollamaClientFactory) *OllamaClient {
	backoff := utils.NewRateLimitBackoff()
	if opts.MaxRetries >= 0 {
		backoff.MaxRetries = opts.MaxRetries
	}
	return &OllamaClient{opts: opts, factory: factory, backoff: backoff}
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string {
	return c.opts.Model
}

func (c *OllamaClient) chat(ctx context.Context, messages []ollama.Message, seed int64, format json.RawMessage) (string, error) {
	client, err := c.factory()
	if err != nil {
		return "", err
	}
	stream := false
	req := &ollama.ChatRequest{
		Model:    c.opts.Model,
		Messages: messages,
		Stream:   &stream,
		Format:   format,
		Options: map[string]interface{}{
			"temperature": c.opts.Temperature,
			"seed":        seed,
		},
	}

	var content strings.Builder
	err = c.backoff.Do(ctx, func(ctx context.Context) error {
		content.Reset()
		return client.Chat(ctx, req, func(res ollama.ChatResponse) error {
			content.WriteString(res.Message.Content)
			return nil
		})
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}
	return content.String(), nil
}

// Generate asks the model for a rewrite of in.Content. The seed makes the
// sampling reproducible for a given request.
func (c *OllamaClient) Generate(ctx context.Context, in GenerateInput) (string, error) {
	messages := []ollama.Message{
		{Role: "system", Content: in.SystemContext},
		{Role: "user", Content: refactorUserPrompt(in.Path, in.Content)},
	}
	out, err := c.chat(ctx, messages, in.Seed, nil)
	if err != nil {
		return "", err
	}
	return StripCodeFences(out), nil
}

type selectionResponse struct {
	Files []struct {
		Path   string `json:"path"`
		Reason string `json:"reason"`
	} `json:"files"`
	RelevantFiles []string `json:"relevant_files"`
}

// SelectFiles asks the model which skeletons matter for the instruction. The
// result is untrusted: callers must restrict it to known paths.
func (c *OllamaClient) SelectFiles(ctx context.Context, in SelectInput) (map[string]string, error) {
	messages := []ollama.Message{
		{Role: "user", Content: selectionPrompt(in.Instruction, in.Skeletons)},
	}
	out, err := c.chat(ctx, messages, in.Seed, json.RawMessage(`"json"`))
	if err != nil {
		return nil, err
	}
	return ParseSelection(out)
}

// ParseSelection decodes a selection response. Both {"files":[{path,reason}]}
// and {"relevant_files":[path]} shapes are accepted.
func ParseSelection(raw string) (map[string]string, error) {
	var resp selectionResponse
	if err := json.Unmarshal([]byte(StripJSONFences(raw)), &resp); err != nil {
		return nil, fmt.Errorf("invalid selection response: %w", err)
	}
	selected := make(map[string]string, len(resp.Files)+len(resp.RelevantFiles))
	for _, f := range resp.Files {
		if f.Path != "" {
			selected[f.Path] = strings.TrimSpace(f.Reason)
		}
	}
	for _, p := range resp.RelevantFiles {
		if _, ok := selected[p]; !ok && p != "" {
			selected[p] = ""
		}
	}
	return selected, nil
}

// StripJSONFences removes a surrounding ```json fence if present.
func StripJSONFences(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "```") {
		return strings.TrimSpace(StripCodeFences(trimmed))
	}
	return trimmed
}
