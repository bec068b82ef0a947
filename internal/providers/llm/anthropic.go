package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/antoniostano/kiosk/internal/reliability"
)

const (
	anthropicRetries    = 2
	anthropicRetryBase  = 250 * time.Millisecond
	anthropicRetryCap   = 2 * time.Second
)

// AnthropicProvider backs both the chat and inner-task call paths with a
// single Claude model. Streaming uses the SDK's server-sent-event iterator;
// the non-streaming Call always happens alongside it (the executor races
// them), so this provider keeps both paths simple rather than trying to
// derive one from the other.
type AnthropicProvider struct {
	client anthropic.Client
	model  anthropic.Model
	system string
}

func NewAnthropicProvider(apiKey, model, systemPrompt string) *AnthropicProvider {
	return &AnthropicProvider{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
		system: systemPrompt,
	}
}

func (p *AnthropicProvider) toParams(input ChatInput) anthropic.MessageNewParams {
	messages := make([]anthropic.MessageParam, 0, len(input.Messages))
	for _, m := range input.Messages {
		if m.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		} else {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		}
	}
	system := p.system
	if input.Mode == "PERSONAL" && input.PersonalName != "" {
		system = fmt.Sprintf("%s\nYou are speaking with %s directly.", system, input.PersonalName)
	}
	return anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1024,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages:  messages,
	}
}

func (p *AnthropicProvider) Call(ctx context.Context, input ChatInput) (ChatOutput, error) {
	params := p.toParams(input)
	var lastErr error
	for attempt := 0; attempt <= anthropicRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ChatOutput{}, ctx.Err()
			case <-time.After(reliability.ExponentialBackoff(attempt, anthropicRetryBase, anthropicRetryCap)):
			}
		}
		msg, err := p.client.Messages.New(ctx, params)
		if err == nil {
			var text string
			for _, block := range msg.Content {
				if block.Type == "text" {
					text += block.Text
				}
			}
			return ChatOutput{Text: text, Expression: "neutral"}, nil
		}
		lastErr = err
		if !isRetryableAnthropicError(err) {
			break
		}
	}
	return ChatOutput{}, fmt.Errorf("anthropic chat call: %w", lastErr)
}

// isRetryableAnthropicError classifies the SDK's wrapped HTTP error the same
// way the kiosk's retry-budget code classifies any other upstream status.
func isRetryableAnthropicError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return reliability.IsRetryableHTTPStatus(apiErr.StatusCode)
	}
	return false
}

func (p *AnthropicProvider) Stream(ctx context.Context, input ChatInput, onDelta DeltaHandler) error {
	stream := p.client.Messages.NewStreaming(ctx, p.toParams(input))
	for stream.Next() {
		event := stream.Current()
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		text := delta.Delta.Text
		if text == "" {
			continue
		}
		if err := onDelta(text); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic chat stream: %w", err)
	}
	return nil
}

func (p *AnthropicProvider) InnerTask(ctx context.Context, input InnerTaskInput) (string, error) {
	messages := make([]anthropic.MessageParam, 0, len(input.Messages)+1)
	for _, m := range input.Messages {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(input.Extra)))

	msg, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{{
			Text: "Respond with a single JSON object only, no prose, for task: " + input.Task,
		}},
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic inner task %s: %w", input.Task, err)
	}
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
