package scanner

import (
	"context"
	"regexp"
	"time"

	"github.com/aocs/gateway/internal/reqmodel"
)

// dlpRule matches a secret/credential shape leaking into model input.
var dlpRules = []piiRule{
	{
		findingType: "AWSAccessKey",
		severity:    reqmodel.SeverityCritical,
		confidence:  0.9,
		pattern:     regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`),
	},
	{
		findingType: "GenericAPIKey",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.6,
		pattern:     regexp.MustCompile(`(?i)\b(api[_-]?key|secret|token)["':= ]{1,3}[A-Za-z0-9_\-]{20,}\b`),
	},
	{
		findingType: "PrivateKeyBlock",
		severity:    reqmodel.SeverityCritical,
		confidence:  0.95,
		pattern:     regexp.MustCompile(`-----BEGIN (RSA |EC |OPENSSH |)PRIVATE KEY-----`),
	},
	{
		findingType: "SlackToken",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.85,
		pattern:     regexp.MustCompile(`\bxox[baprs]-[A-Za-z0-9-]{10,}\b`),
	},
	{
		findingType: "ConnectionString",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.7,
		pattern:     regexp.MustCompile(`(?i)\b[a-z][a-z0-9+.-]*://[^\s:]+:[^\s@]+@[^\s]+`),
	},
}

// DLPScanner flags credential- and secret-shaped spans leaking into model
// input, so a pasted .env file or key doesn't get forwarded upstream.
type DLPScanner struct{}

func NewDLPScanner() *DLPScanner { return &DLPScanner{} }

func (s *DLPScanner) ID() string   { return "dlp" }
func (s *DLPScanner) Name() string { return "Data Loss Prevention" }

func (s *DLPScanner) Scan(ctx context.Context, req *reqmodel.Request) reqmodel.ScannerVerdict {
	start := time.Now()
	text := req.FlattenedText()

	var findings []reqmodel.Finding
	for _, rule := range dlpRules {
		for _, m := range rule.pattern.FindAllString(text, -1) {
			findings = append(findings, reqmodel.Finding{
				Type:        rule.findingType,
				Severity:    rule.severity,
				Confidence:  rule.confidence,
				Location:    "messages",
				Evidence:    reqmodel.MaskEvidence(m),
				Remediation: "strip credential before forwarding upstream",
				ScannerID:   s.ID(),
			})
		}
	}

	return verdictFromFindings(s.ID(), findings, float64(time.Since(start).Microseconds())/1000)
}

var _ Scanner = (*DLPScanner)(nil)
