// Package reason holds the single call out to the external language-model
// service: it turns a merged dataset plus conversation context into a
// natural-language answer.
package reason

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/chainquery/chainquery/agent/contract"
)

type Service struct {
	runner compose.Runnable[map[string]any, *schema.Message]
}

func NewService(ctx context.Context, chatModel einomodel.BaseChatModel, systemPrompt string) (*Service, error) {
	runner, err := compileSynthesisGraph(ctx, chatModel, systemPrompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrReasoningFailure, err)
	}
	return &Service{runner: runner}, nil
}

// Synthesize produces the answer text for one request. The payload handed
// to the model is the synthesis request serialized as JSON; the model sees
// exactly what the merger produced, nothing more.
func (s *Service) Synthesize(ctx context.Context, req contractx.SynthesisRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("%w: marshal synthesis payload: %v", contractx.ErrReasoningFailure, err)
	}

	msg, err := s.runner.Invoke(ctx, map[string]any{
		"input": string(payload),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrReasoningFailure, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("%w: model returned empty answer", contractx.ErrReasoningFailure)
	}
	return strings.TrimSpace(msg.Content), nil
}
