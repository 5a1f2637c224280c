package scanner

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/aocs/gateway/internal/reqmodel"
)

// EntropyScanner flags spans of unusually high Shannon entropy inside
// otherwise-ordinary prose — encoded, encrypted, or steganographically
// packed payloads riding along in an input that reads as plain text to a
// shallower scanner. Business prose typically sits around 3.5-4.5 bits per
// character; base64/hex-encoded blobs and ciphertext push well past 5.5.
// Adapted from internal/security/entropy.go's CalculateShannonEntropy.
type EntropyScanner struct {
	Threshold float64
	MinLength int
}

// NewEntropyScanner builds a scanner with the teacher's default 5.5-bit
// threshold, requiring at least 24 characters before a span is scored (short
// strings produce noisy entropy estimates).
func NewEntropyScanner() *EntropyScanner {
	return &EntropyScanner{Threshold: 5.5, MinLength: 24}
}

func (s *EntropyScanner) ID() string   { return "entropy" }
func (s *EntropyScanner) Name() string { return "Entropy Anomaly" }

func (s *EntropyScanner) Scan(ctx context.Context, req *reqmodel.Request) reqmodel.ScannerVerdict {
	start := time.Now()
	var findings []reqmodel.Finding

	for _, tok := range strings.Fields(req.FlattenedText()) {
		tok = strings.Trim(tok, ".,!?;:()[]{}\"'")
		if len(tok) < s.MinLength {
			continue
		}
		e := shannonEntropy(tok)
		if e < s.Threshold {
			continue
		}
		findings = append(findings, reqmodel.Finding{
			Type:        "HighEntropySpan",
			Severity:    severityForEntropy(e),
			Confidence:  confidenceForEntropy(e, s.Threshold),
			Location:    "messages",
			Evidence:    reqmodel.MaskEvidence(tok),
			Remediation: "inspect span for encoded payload before forwarding upstream",
			ScannerID:   s.ID(),
		})
	}

	return verdictFromFindings(s.ID(), findings, float64(time.Since(start).Microseconds())/1000)
}

// shannonEntropy measures the randomness of data in bits per character.
func shannonEntropy(data string) float64 {
	if len(data) == 0 {
		return 0
	}
	counts := make(map[rune]int)
	total := 0
	for _, r := range data {
		if unicode.IsSpace(r) {
			continue
		}
		counts[r]++
		total++
	}
	if total == 0 {
		return 0
	}
	var entropy float64
	for _, count := range counts {
		p := float64(count) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func severityForEntropy(e float64) reqmodel.Severity {
	switch {
	case e >= 7.0:
		return reqmodel.SeverityHigh
	case e >= 6.0:
		return reqmodel.SeverityMedium
	default:
		return reqmodel.SeverityLow
	}
}

func confidenceForEntropy(e, threshold float64) float64 {
	c := 0.4 + (e-threshold)*0.2
	if c > 0.95 {
		return 0.95
	}
	return c
}

var _ Scanner = (*EntropyScanner)(nil)
