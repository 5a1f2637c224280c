package scanner

import (
	"context"
	"regexp"
	"time"

	"github.com/aocs/gateway/internal/reqmodel"
)

// piiRule binds a regex to the finding metadata it produces when matched.
type piiRule struct {
	findingType string
	severity    reqmodel.Severity
	confidence  float64
	pattern     *regexp.Regexp
}

var piiRules = []piiRule{
	{
		findingType: "SSN",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.85,
		pattern:     regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		findingType: "CreditCard",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.8,
		pattern:     regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`),
	},
	{
		findingType: "Email",
		severity:    reqmodel.SeverityLow,
		confidence:  0.9,
		pattern:     regexp.MustCompile(`\b[\w.+-]+@[\w-]+\.[\w.-]+\b`),
	},
	{
		findingType: "PhoneNumber",
		severity:    reqmodel.SeverityMedium,
		confidence:  0.6,
		pattern:     regexp.MustCompile(`\b(?:\+?1[ -]?)?\(?\d{3}\)?[ -]?\d{3}[ -]?\d{4}\b`),
	},
	{
		findingType: "IPAddress",
		severity:    reqmodel.SeverityLow,
		confidence:  0.5,
		pattern:     regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`),
	},
}

// PIIScanner flags spans of pattern-recognizable personal data in the
// request's user text: SSNs, card numbers, emails, phone numbers, IPs.
type PIIScanner struct{}

func NewPIIScanner() *PIIScanner { return &PIIScanner{} }

func (s *PIIScanner) ID() string   { return "pii" }
func (s *PIIScanner) Name() string { return "PII Detector" }

func (s *PIIScanner) Scan(ctx context.Context, req *reqmodel.Request) reqmodel.ScannerVerdict {
	start := time.Now()
	text := req.FlattenedUserText()

	var findings []reqmodel.Finding
	for _, rule := range piiRules {
		matches := rule.pattern.FindAllString(text, -1)
		for _, m := range matches {
			findings = append(findings, reqmodel.Finding{
				Type:       rule.findingType,
				Severity:   rule.severity,
				Confidence: rule.confidence,
				Location:   "messages[user]",
				Evidence:   reqmodel.MaskEvidence(m),
				ScannerID:  s.ID(),
			})
		}
	}

	return verdictFromFindings(s.ID(), findings, float64(time.Since(start).Microseconds())/1000)
}

var _ Scanner = (*PIIScanner)(nil)
