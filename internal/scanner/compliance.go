package scanner

import (
	"context"
	"regexp"
	"time"

	"github.com/aocs/gateway/internal/reqmodel"
)

// complianceRule is one entry of the per-standard rule table described in
// spec §4.1: {id, standard, name, severity, pattern_or_validator, remediation}.
// Rule ids are unique per standard, not globally (see DESIGN.md for the
// hipaa-002 duplication this resolves).
type complianceRule struct {
	id          string
	standard    string
	name        string
	severity    reqmodel.Severity
	confidence  float64
	pattern     *regexp.Regexp
	validator   func(text string) bool
	remediation string
}

func (r complianceRule) fires(text string) bool {
	if r.pattern != nil && r.pattern.MatchString(text) {
		return true
	}
	if r.validator != nil && r.validator(text) {
		return true
	}
	return false
}

func (r complianceRule) match(text string) string {
	if r.pattern != nil {
		if m := r.pattern.FindString(text); m != "" {
			return m
		}
	}
	return text
}

var complianceRules = []complianceRule{
	{
		id:          "hipaa-001",
		standard:    "HIPAA",
		name:        "MedicalRecordNumber",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.85,
		pattern:     regexp.MustCompile(`(?i)\bMRN[:# ]?\d{6,10}\b`),
		remediation: "remove medical record number before forwarding",
	},
	{
		id:          "hipaa-002",
		standard:    "HIPAA",
		name:        "HealthPlanBeneficiaryNumber",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.8,
		pattern:     regexp.MustCompile(`(?i)\bhealth\s?plan\s?(beneficiary\s?)?(number|id)[:# ]?\w{6,}\b`),
		remediation: "remove health plan identifier before forwarding",
	},
	{
		id:          "pci-002",
		standard:    "PCI-DSS",
		name:        "CardVerificationValue",
		severity:    reqmodel.SeverityCritical,
		confidence:  0.9,
		pattern:     regexp.MustCompile(`(?i)\bcvv[:# ]?\d{3,4}\b`),
		remediation: "CVV must never be transmitted or stored, strip immediately",
	},
	{
		id:          "sox-001",
		standard:    "SOX",
		name:        "FinancialStatementReference",
		severity:    reqmodel.SeverityMedium,
		confidence:  0.7,
		pattern:     regexp.MustCompile(`(?i)\b(10-K|10-Q|material weakness)\b`),
		remediation: "route through financial disclosure review",
	},
	{
		id:          "glba-001",
		standard:    "GLBA",
		name:        "AccountNumberDisclosure",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.75,
		pattern:     regexp.MustCompile(`(?i)\baccount\s?number[:# ]?\d{8,17}\b`),
		remediation: "mask financial account numbers",
	},
	{
		id:          "ferpa-001",
		standard:    "FERPA",
		name:        "StudentEducationRecord",
		severity:    reqmodel.SeverityMedium,
		confidence:  0.7,
		pattern:     regexp.MustCompile(`(?i)\bstudent\s?id[:# ]?\d{5,}\b`),
		remediation: "student records require FERPA-compliant handling",
	},
	{
		id:          "coppa-001",
		standard:    "COPPA",
		name:        "ChildUnderThirteenDisclosure",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.6,
		validator: func(text string) bool {
			return childAgeDisclosurePattern.MatchString(text)
		},
		remediation: "do not collect personal data from users identifying as under 13",
	},
	{
		id:          "ccpa-001",
		standard:    "CCPA",
		name:        "CaliforniaConsumerRequest",
		severity:    reqmodel.SeverityLow,
		confidence:  0.6,
		pattern:     regexp.MustCompile(`(?i)\b(do not sell my (personal )?information|right to delete my data)\b`),
		remediation: "route to privacy-request handling workflow",
	},
	{
		id:          "cpra-001",
		standard:    "CPRA",
		name:        "SensitivePersonalInformation",
		severity:    reqmodel.SeverityMedium,
		confidence:  0.65,
		pattern:     regexp.MustCompile(`(?i)\b(precise geolocation|genetic data|biometric)\b`),
		remediation: "classify as sensitive personal information under CPRA",
	},
	{
		id:          "gdpr-001",
		standard:    "GDPR",
		name:        "SpecialCategoryData",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.7,
		pattern:     regexp.MustCompile(`(?i)\b(racial origin|religious belief|trade union membership|sexual orientation)\b`),
		remediation: "special category data requires an explicit lawful basis",
	},
	{
		id:          "pipeda-001",
		standard:    "PIPEDA",
		name:        "CanadianSINDisclosure",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.85,
		pattern:     regexp.MustCompile(`\b\d{3}[ -]\d{3}[ -]\d{3}\b`),
		remediation: "Canadian SIN must be masked before forwarding",
	},
	{
		id:          "lgpd-001",
		standard:    "LGPD",
		name:        "CPFDisclosure",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.85,
		pattern:     regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b`),
		remediation: "Brazilian CPF must be masked before forwarding",
	},
	{
		id:          "pdpa-001",
		standard:    "PDPA",
		name:        "NRICDisclosure",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.8,
		pattern:     regexp.MustCompile(`(?i)\b[STFG]\d{7}[A-Z]\b`),
		remediation: "Singapore NRIC must be masked before forwarding",
	},
	{
		id:          "soc2-001",
		standard:    "SOC2",
		name:        "InternalControlDisclosure",
		severity:    reqmodel.SeverityLow,
		confidence:  0.5,
		pattern:     regexp.MustCompile(`(?i)\binternal\s?control\s?(weakness|deficiency)\b`),
		remediation: "route to security review before forwarding",
	},
	{
		id:          "iso27001-001",
		standard:    "ISO27001",
		name:        "ISMSAssetDisclosure",
		severity:    reqmodel.SeverityLow,
		confidence:  0.5,
		pattern:     regexp.MustCompile(`(?i)\b(information security management system|isms) asset (register|inventory)\b`),
		remediation: "asset register contents are confidential",
	},
	{
		id:          "nist-001",
		standard:    "NIST",
		name:        "ControlledUnclassifiedInformation",
		severity:    reqmodel.SeverityHigh,
		confidence:  0.75,
		pattern:     regexp.MustCompile(`(?i)\bcontrolled unclassified information\b|\bCUI\b`),
		remediation: "CUI requires NIST 800-171 handling controls",
	},
}

var childAgeDisclosurePattern = regexp.MustCompile(`(?i)\bi(?:'m| am)\s+(?:[7-9]|1[0-2])\s+years?\s+old\b`)

// ComplianceScanner evaluates the fixed per-standard rule table against the
// flattened user text, per spec §4.1.
type ComplianceScanner struct {
	rules []complianceRule
}

// NewComplianceScanner builds a scanner over the built-in rule table.
func NewComplianceScanner() *ComplianceScanner {
	return &ComplianceScanner{rules: complianceRules}
}

func (s *ComplianceScanner) ID() string   { return "compliance" }
func (s *ComplianceScanner) Name() string { return "Compliance Rule Table" }

func (s *ComplianceScanner) Scan(ctx context.Context, req *reqmodel.Request) reqmodel.ScannerVerdict {
	start := time.Now()
	text := req.FlattenedUserText()

	var findings []reqmodel.Finding
	for _, rule := range s.rules {
		if !rule.fires(text) {
			continue
		}
		findings = append(findings, reqmodel.Finding{
			Type:        rule.standard + "_" + rule.name,
			Severity:    rule.severity,
			Confidence:  rule.confidence,
			Location:    "messages[user]",
			Evidence:    reqmodel.MaskEvidence(rule.match(text)),
			Remediation: rule.remediation,
			ScannerID:   s.ID(),
		})
	}

	return verdictFromFindings(s.ID(), findings, float64(time.Since(start).Microseconds())/1000)
}

var _ Scanner = (*ComplianceScanner)(nil)
