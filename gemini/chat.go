package gemini

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/room4-2/auralis/transcript"
)

// DefaultMaxToolRounds bounds function-call round trips per user turn.
const DefaultMaxToolRounds = 4

// ErrTooManyToolRounds is returned when the model keeps calling functions
// without producing a reply.
var ErrTooManyToolRounds = errors.New("too many function call rounds")

// ToolCaller runs a named function with model-supplied arguments.
type ToolCaller interface {
	Call(ctx context.Context, name string, args map[string]any) map[string]any
}

// Generator is the part of the models service Chat uses.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Chat drives the front desk over text with GenerateContent. The system
// prompt is kept as the first history turn so pruning never drops it.
type Chat struct {
	models        Generator
	model         string
	config        *genai.GenerateContentConfig
	tools         ToolCaller
	history       *transcript.History
	maxToolRounds int
	logger        *zap.Logger
}

// NewChat returns a text chat. models is usually client.Models.
func NewChat(models Generator, model, systemPrompt string, decls []*genai.Tool, tools ToolCaller, logger *zap.Logger) *Chat {
	if logger == nil {
		logger = zap.NewNop()
	}
	history := transcript.NewHistory(transcript.DefaultMaxTurns)
	history.Append(transcript.RoleSystem, systemPrompt)

	return &Chat{
		models: models,
		model:  model,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Tools:             decls,
		},
		tools:         tools,
		history:       history,
		maxToolRounds: DefaultMaxToolRounds,
		logger:        logger,
	}
}

// History returns the bounded conversation history.
func (c *Chat) History() *transcript.History {
	return c.history
}

// Send runs one user turn, resolving any function calls, and returns the
// agent's reply.
func (c *Chat) Send(ctx context.Context, text string) (string, error) {
	if c.history.Append(transcript.RoleUser, text) {
		c.logger.Debug("history pruned")
	}
	contents := c.contents()

	for round := 0; round < c.maxToolRounds; round++ {
		resp, err := c.models.GenerateContent(ctx, c.model, contents, c.config)
		if err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			reply := resp.Text()
			c.history.Append(transcript.RoleAgent, reply)
			return reply, nil
		}

		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			contents = append(contents, resp.Candidates[0].Content)
		}

		parts := make([]*genai.Part, 0, len(calls))
		for _, fc := range calls {
			c.logger.Info("function call", zap.String("name", fc.Name))
			result := c.tools.Call(ctx, fc.Name, fc.Args)
			part := genai.NewPartFromFunctionResponse(fc.Name, result)
			part.FunctionResponse.ID = fc.ID
			parts = append(parts, part)
		}
		contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))
	}

	return "", ErrTooManyToolRounds
}

func (c *Chat) contents() []*genai.Content {
	turns := c.history.Turns()
	out := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case transcript.RoleUser:
			out = append(out, genai.NewContentFromText(t.Text, genai.RoleUser))
		case transcript.RoleAgent:
			out = append(out, genai.NewContentFromText(t.Text, genai.RoleModel))
		}
	}
	return out
}
