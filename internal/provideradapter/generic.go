package provideradapter

import (
	"encoding/json"
	"time"

	"github.com/aocs/gateway/internal/reqmodel"
)

// GenericAdapter is the registry fallback for a provider family with no
// dedicated adapter: it decodes a best-effort {model, messages} shape and
// passes everything else through under Request.Extra, matching the
// teacher's generic_ai_detector.go role of catching anything the named
// parsers don't recognize rather than rejecting it outright.
type GenericAdapter struct{}

type genericMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type genericRequest struct {
	Model       string           `json:"model,omitempty"`
	Messages    []genericMessage `json:"messages,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	Stream      bool             `json:"stream,omitempty"`
}

func (a *GenericAdapter) Name() string { return "generic" }

func (a *GenericAdapter) CanParse(payload []byte) bool {
	return findJSONStart(payload) >= 0
}

func (a *GenericAdapter) ParseRequest(payload []byte, modelID string) (*reqmodel.Request, error) {
	start := findJSONStart(payload)
	if start < 0 {
		return nil, errNotJSON
	}
	var req genericRequest
	var raw map[string]interface{}
	if err := json.Unmarshal(payload[start:], &req); err != nil {
		return nil, err
	}
	_ = json.Unmarshal(payload[start:], &raw)

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
		Extra:      raw,
		ReceivedAt: time.Now(),
	}
	if req.Temperature != 0 {
		out.Parameters["temperature"] = req.Temperature
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, reqmodel.Message{Role: m.Role, Content: m.Content})
	}
	return out, nil
}

func (a *GenericAdapter) SerializeRequest(req *reqmodel.Request) ([]byte, error) {
	out := genericRequest{Model: req.Model, Stream: req.Streaming, Messages: make([]genericMessage, 0, len(req.Messages))}
	if t, ok := req.Parameters["temperature"]; ok {
		out.Temperature = t
	}
	for _, m := range req.Messages {
		out.Messages = append(out.Messages, genericMessage{Role: m.Role, Content: m.Content})
	}
	return json.Marshal(out)
}

func (a *GenericAdapter) ParseResponse(payload []byte, modelID string) (*reqmodel.Response, error) {
	start := findJSONStart(payload)
	if start < 0 {
		return nil, errNotJSON
	}
	var resp struct {
		Model   string `json:"model"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(payload[start:], &resp); err != nil {
		return nil, err
	}
	return &reqmodel.Response{
		Provider: a.Name(),
		Model:    firstNonEmpty(resp.Model, modelID),
		Content:  resp.Content,
	}, nil
}

// SerializeResponse re-encodes resp into the generic {model, content} shape.
func (a *GenericAdapter) SerializeResponse(resp *reqmodel.Response) ([]byte, error) {
	return json.Marshal(struct {
		Model   string `json:"model"`
		Content string `json:"content"`
	}{Model: resp.Model, Content: resp.Content})
}

var _ ProviderAdapter = (*GenericAdapter)(nil)
