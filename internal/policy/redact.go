package policy

import (
	"strings"

	"github.com/aocs/gateway/internal/reqmodel"
)

// ApplyRedact rewrites the matched spans in req's messages, returning a new
// Request the pipeline forwards downstream in place of the original (spec
// §4.2: "the rewritten request is what downstream sees"). The input request
// is left untouched.
func ApplyRedact(req *reqmodel.Request, spans []string) *reqmodel.Request {
	if len(spans) == 0 {
		return req
	}

	out := req.Clone()
	for i, m := range out.Messages {
		out.Messages[i].Content = redactSpans(m.Content, spans)
		for j, p := range m.Parts {
			out.Messages[i].Parts[j].Text = redactSpans(p.Text, spans)
		}
	}
	return out
}

const redactionMarker = "[REDACTED]"

func redactSpans(text string, spans []string) string {
	for _, span := range spans {
		if span == "" {
			continue
		}
		text = strings.ReplaceAll(text, span, redactionMarker)
	}
	return text
}
