package provideradapter

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/aocs/gateway/internal/reqmodel"
)

// AnthropicAdapter handles the Claude Messages API wire format: a top-level
// "system" string separate from the "messages" array, and "input_tokens"/
// "output_tokens" usage fields instead of OpenAI's prompt/completion naming.
type AnthropicAdapter struct{}

type anthropicMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type anthropicResponse struct {
	Model      string `json:"model,omitempty"`
	StopReason string `json:"stop_reason,omitempty"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage anthropicUsage `json:"usage"`
}

func (a *AnthropicAdapter) Name() string { return "anthropic" }

func (a *AnthropicAdapter) CanParse(payload []byte) bool {
	s := string(payload)
	return strings.Contains(s, `"anthropic_version"`) ||
		strings.Contains(s, `"input_tokens"`) ||
		(strings.Contains(s, `"messages"`) && strings.Contains(s, `"system"`))
}

func (a *AnthropicAdapter) ParseRequest(payload []byte, modelID string) (*reqmodel.Request, error) {
	start := findJSONStart(payload)
	if start < 0 {
		return nil, errNotJSON
	}
	var req anthropicRequest
	if err := json.Unmarshal(payload[start:], &req); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = modelID
	}

	out := &reqmodel.Request{
		Provider:   a.Name(),
		Model:      model,
		Streaming:  req.Stream,
		Messages:   make([]reqmodel.Message, 0, len(req.Messages)+1),
		Parameters: map[string]float64{},
		ReceivedAt: time.Now(),
	}
	if req.Temperature != 0 {
		out.Parameters["temperature"] = req.Temperature
	}
	if req.System != "" {
		out.Messages = append(out.Messages, reqmodel.Message{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, reqmodel.Message{
			Role:    m.Role,
			Content: flattenContent(m.Content),
		})
	}
	return out, nil
}

func (a *AnthropicAdapter) SerializeRequest(req *reqmodel.Request) ([]byte, error) {
	out := anthropicRequest{
		Model:    req.Model,
		Stream:   req.Streaming,
		Messages: make([]anthropicMessage, 0, len(req.Messages)),
	}
	if t, ok := req.Parameters["temperature"]; ok {
		out.Temperature = t
	}
	for _, m := range req.Messages {
		if m.Role == "system" {
			if out.System != "" {
				out.System += "\n"
			}
			out.System += m.Content
			continue
		}
		out.Messages = append(out.Messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return json.Marshal(out)
}

func (a *AnthropicAdapter) ParseResponse(payload []byte, modelID string) (*reqmodel.Response, error) {
	start := findJSONStart(payload)
	if start < 0 {
		return nil, errNotJSON
	}
	var resp anthropicResponse
	if err := json.Unmarshal(payload[start:], &resp); err != nil {
		return nil, err
	}

	out := &reqmodel.Response{
		Provider:     a.Name(),
		Model:        firstNonEmpty(resp.Model, modelID),
		FinishReason: resp.StopReason,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}
	var b strings.Builder
	for i, part := range resp.Content {
		if part.Type != "text" {
			continue
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(part.Text)
	}
	out.Content = b.String()
	return out, nil
}

// SerializeResponse re-encodes resp into a Claude Messages API body.
func (a *AnthropicAdapter) SerializeResponse(resp *reqmodel.Response) ([]byte, error) {
	out := anthropicResponse{
		Model:      resp.Model,
		StopReason: resp.FinishReason,
		Usage:      anthropicUsage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens},
	}
	out.Content = []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{{Type: "text", Text: resp.Content}}
	return json.Marshal(out)
}

var _ ProviderAdapter = (*AnthropicAdapter)(nil)
