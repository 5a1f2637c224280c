package scanner

import (
	"context"
	"strings"
	"time"

	"github.com/aocs/gateway/internal/reqmodel"
)

// toxicTerm is a crude word-list entry; production deployments are expected
// to replace this scanner with a model-backed one via the Scanner interface.
type toxicTerm struct {
	term     string
	severity reqmodel.Severity
}

var toxicTerms = []toxicTerm{
	{"kill yourself", reqmodel.SeverityCritical},
	{"i will kill you", reqmodel.SeverityCritical},
	{"slur", reqmodel.SeverityMedium},
	{"hate speech", reqmodel.SeverityMedium},
	{"i hope you die", reqmodel.SeverityHigh},
	{"worthless piece of", reqmodel.SeverityMedium},
}

// ToxicityScanner flags hostile or abusive language via a fixed term list.
// It is intentionally simple: a stand-in for a classifier-backed scanner
// that implements the same Scanner interface.
type ToxicityScanner struct{}

func NewToxicityScanner() *ToxicityScanner { return &ToxicityScanner{} }

func (s *ToxicityScanner) ID() string   { return "toxicity" }
func (s *ToxicityScanner) Name() string { return "Toxicity Wordlist" }

func (s *ToxicityScanner) Scan(ctx context.Context, req *reqmodel.Request) reqmodel.ScannerVerdict {
	start := time.Now()
	lower := strings.ToLower(req.FlattenedUserText())

	var findings []reqmodel.Finding
	for _, t := range toxicTerms {
		if strings.Contains(lower, t.term) {
			findings = append(findings, reqmodel.Finding{
				Type:       "ToxicLanguage",
				Severity:   t.severity,
				Confidence: 0.5,
				Location:   "messages[user]",
				ScannerID:  s.ID(),
			})
		}
	}

	return verdictFromFindings(s.ID(), findings, float64(time.Since(start).Microseconds())/1000)
}

var _ Scanner = (*ToxicityScanner)(nil)
