package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"englishtutor/pkg/config"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// Client implements Completer on the OpenAI chat-completion API.
type Client struct {
	client *openai.Client
	model  string
}

func NewClient(cfg *config.Config) *Client {
	client := openai.NewClient(cfg.OpenAIKey)
	return &Client{
		client: client,
		model:  cfg.OpenAIModel,
	}
}

func (c *Client) Complete(ctx context.Context, messages []Message) (string, Usage, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: convertMessages(messages),
	})
	if err != nil {
		logrus.Errorf("OpenAI completion request failed: %v", err)
		return "", Usage{}, err
	}

	if len(resp.Choices) == 0 {
		return "", Usage{}, errors.New("no response from OpenAI")
	}

	usage := convertUsage(resp.Model, resp.Usage)
	parts := []ContentPart{{Kind: PartPlainText, Text: resp.Choices[0].Message.Content}}
	return Flatten(parts), usage, nil
}

// Stream requests an incremental completion. The returned channel yields
// content chunks as deltas arrive and is closed after the terminal event.
func (c *Client) Stream(ctx context.Context, messages []Message) (<-chan Chunk, error) {
	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: convertMessages(messages),
		StreamOptions: &openai.StreamOptions{
			IncludeUsage: true,
		},
	})
	if err != nil {
		logrus.Errorf("OpenAI stream request failed: %v", err)
		return nil, err
	}

	out := make(chan Chunk)
	go func() {
		defer close(out)
		defer stream.Close()

		var usage Usage
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				out <- Chunk{Final: true, Usage: usage}
				return
			}
			if err != nil {
				out <- Chunk{Err: err}
				return
			}

			if resp.Usage != nil {
				usage = convertUsage(resp.Model, *resp.Usage)
			}
			if usage.ModelName == "" && resp.Model != "" {
				usage.ModelName = resp.Model
			}

			if len(resp.Choices) > 0 && resp.Choices[0].Delta.Content != "" {
				out <- Chunk{Parts: []ContentPart{{
					Kind: PartPlainText,
					Text: resp.Choices[0].Delta.Content,
				}}}
			}
		}
	}()
	return out, nil
}

// Transcribe converts an audio recording into text via the Whisper API.
func (c *Client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	resp, err := c.client.CreateTranscription(
		ctx,
		openai.AudioRequest{
			Model:    openai.Whisper1,
			FilePath: audioPath,
			Language: "en",
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}

	return resp.Text, nil
}

func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	converted := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		converted = append(converted, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}
	return converted
}

func convertUsage(model string, u openai.Usage) Usage {
	usage := Usage{
		ModelName:        model,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
	if u.PromptTokensDetails != nil {
		usage.CachedPromptTokens = u.PromptTokensDetails.CachedTokens
	}
	return usage
}
