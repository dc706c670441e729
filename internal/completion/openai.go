// Package completion обращается к API генерации ответов (OpenAI-совместимому)
// в потоковом и обычном режимах.
package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/magabrotheeeer/gregai-backend/internal/config"
)

// ErrEmptyResponse ответ не содержит вариантов.
var ErrEmptyResponse = errors.New("completion returned no choices")

// Message сообщение контекста диалога.
type Message struct {
	Role    string
	Content string
}

// Client клиент API генерации ответов.
type Client struct {
	api          *openai.Client
	model        string
	systemPrompt string
	timeout      time.Duration
}

// New создаёт клиент из настроек. Пустой BaseURL означает api.openai.com.
func New(cfg config.Completion) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{
		api:          openai.NewClientWithConfig(oc),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		timeout:      cfg.Timeout,
	}
}

// Stream отправляет историю диалога и передаёт каждый фрагмент ответа в onDelta
// сразу по получении. Возвращает собранный ответ целиком.
// Весь вызов ограничен таймаутом клиента.
func (c *Client) Stream(ctx context.Context, history []Message, onDelta func(string) error) (string, error) {
	const op = "completion.Stream"
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: c.messages(history),
		Stream:   true,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = stream.Close()
	}()

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return full.String(), nil
		}
		if err != nil {
			return full.String(), fmt.Errorf("%s: %w", op, err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if err := onDelta(delta); err != nil {
			return full.String(), fmt.Errorf("%s: %w", op, err)
		}
	}
}

// Complete выполняет обычный (не потоковый) запрос с собственной системной инструкцией.
func (c *Client) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	const op = "completion.Complete"
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) messages(history []Message) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if c.systemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt})
	}
	for _, m := range history {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return msgs
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
