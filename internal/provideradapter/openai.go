package provideradapter

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/aocs/gateway/internal/reqmodel"
)

// OpenAIAdapter handles the OpenAI chat-completions wire format and its
// drop-in-compatible siblings (Azure OpenAI, Groq, Together, Fireworks,
// vLLM, Ollama all speak the same schema), matching the provider family the
// teacher's OpenAIParser covers.
type OpenAIAdapter struct{}

type openaiMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content,omitempty"`
}

type openaiRequest struct {
	Model       string          `json:"model,omitempty"`
	Messages    []openaiMessage `json:"messages,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openaiUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type openaiResponse struct {
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage openaiUsage `json:"usage"`
}

func (a *OpenAIAdapter) Name() string { return "openai" }

func (a *OpenAIAdapter) CanParse(payload []byte) bool {
	s := string(payload)
	return (strings.Contains(s, `"model"`) && strings.Contains(s, `"messages"`)) ||
		strings.Contains(s, `"chat/completions"`) ||
		(strings.Contains(s, `"choices"`) && strings.Contains(s, `"finish_reason"`))
}

func (a *OpenAIAdapter) ParseRequest(payload []byte, modelID string) (*reqmodel.Request, error) {
	start := findJSONStart(payload)
	if start < 0 {
		return nil, errNotJSON
	}
	var req openaiRequest
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
		Messages:   make([]reqmodel.Message, 0, len(req.Messages)),
		Parameters: map[string]float64{},
		ReceivedAt: time.Now(),
	}
	if req.Temperature != 0 {
		out.Parameters["temperature"] = req.Temperature
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, reqmodel.Message{
			Role:    m.Role,
			Content: flattenContent(m.Content),
		})
	}
	return out, nil
}

func (a *OpenAIAdapter) SerializeRequest(req *reqmodel.Request) ([]byte, error) {
	out := openaiRequest{
		Model:    req.Model,
		Stream:   req.Streaming,
		Messages: make([]openaiMessage, 0, len(req.Messages)),
	}
	if t, ok := req.Parameters["temperature"]; ok {
		out.Temperature = t
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, openaiMessage{Role: m.Role, Content: m.Content})
	}
	return json.Marshal(out)
}

func (a *OpenAIAdapter) ParseResponse(payload []byte, modelID string) (*reqmodel.Response, error) {
	start := findJSONStart(payload)
	if start < 0 {
		return nil, errNotJSON
	}
	var resp openaiResponse
	if err := json.Unmarshal(payload[start:], &resp); err != nil {
		return nil, err
	}

	out := &reqmodel.Response{
		Provider:     a.Name(),
		Model:        firstNonEmpty(resp.Model, modelID),
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
		out.FinishReason = resp.Choices[0].FinishReason
	}
	return out, nil
}

// SerializeResponse re-encodes resp into an OpenAI chat-completion body.
func (a *OpenAIAdapter) SerializeResponse(resp *reqmodel.Response) ([]byte, error) {
	out := openaiResponse{
		Model: resp.Model,
		Usage: openaiUsage{PromptTokens: resp.InputTokens, CompletionTokens: resp.OutputTokens},
	}
	out.Choices = make([]struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	}, 1)
	out.Choices[0].Message.Content = resp.Content
	out.Choices[0].FinishReason = resp.FinishReason
	return json.Marshal(out)
}

// flattenContent handles both OpenAI's plain-string content and its
// multi-part array form ({"type":"text","text":"..."} entries).
func flattenContent(content interface{}) string {
	switch v := content.(type) {
	case string:
		return v
	case []interface{}:
		var b strings.Builder
		for i, part := range v {
			m, ok := part.(map[string]interface{})
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				if i > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		return b.String()
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ ProviderAdapter = (*OpenAIAdapter)(nil)
