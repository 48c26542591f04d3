package rules

// Category tags used by the builtin catalog.
const (
	CategoryPersonal    = "personal"
	CategoryFinancial   = "financial"
	CategoryMedical     = "medical"
	CategoryNetwork     = "network"
	CategoryCredentials = "credentials"
)

// DefaultCatalog returns the builtin rule catalog. Rules are value types;
// callers get a fresh slice on every call and may append their own rules
// without affecting other callers.
//
// Priorities are chosen so that structured, low-false-positive detectors win
// over broad numeric ones when spans tie on length: keys and tokens first,
// then structured identifiers, then contact data, then catch-alls.
func DefaultCatalog() []Rule {
	return []Rule{
		{
			ID:          "credentials.aws-access-key",
			Name:        "AWS Access Key ID",
			Category:    CategoryCredentials,
			Sensitivity: SensitivityBasic,
			Pattern:     `\bAKIA[0-9A-Z]{16}\b`,
			Strategy:    Fixed("[REDACTED:aws-key]"),
			Priority:    100,
			Enabled:     true,
		},
		{
			ID:          "credentials.api-key",
			Name:        "API key / bearer token",
			Category:    CategoryCredentials,
			Sensitivity: SensitivityBasic,
			Pattern:     `(?i)\b(?:api[_-]?key|apikey|secret[_-]?key|bearer)[\s"':=]+[A-Za-z0-9_\-.]{16,}`,
			Strategy:    Fixed("[REDACTED:api-key]"),
			Priority:    95,
			Enabled:     true,
		},
		{
			ID:          "credentials.jwt",
			Name:        "JWT token",
			Category:    CategoryCredentials,
			Sensitivity: SensitivityBasic,
			Pattern:     `\beyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-.+/=]+`,
			Strategy:    Fixed("[REDACTED:jwt]"),
			Priority:    95,
			Enabled:     true,
		},
		{
			ID:          "credentials.private-key",
			Name:        "PEM private key header",
			Category:    CategoryCredentials,
			Sensitivity: SensitivityBasic,
			Pattern:     `-----BEGIN [A-Z ]*PRIVATE KEY-----`,
			Strategy:    Fixed("[REDACTED:private-key]"),
			Priority:    95,
			Enabled:     true,
		},
		{
			ID:          "credentials.connection-string",
			Name:        "Database connection string",
			Category:    CategoryCredentials,
			Sensitivity: SensitivityModerate,
			Pattern:     `(?i)\b(?:postgres|postgresql|mysql|mongodb|redis|amqp)://[^\s"']+`,
			Strategy:    Fixed("[REDACTED:connection-string]"),
			Priority:    90,
			Enabled:     true,
		},
		{
			ID:          "financial.ssn",
			Name:        "US Social Security Number",
			Category:    CategoryFinancial,
			Sensitivity: SensitivityBasic,
			Pattern:     `\b\d{3}-\d{2}-\d{4}\b`,
			Strategy:    FormatPreserving(),
			Priority:    80,
			Enabled:     true,
		},
		{
			ID:          "financial.credit-card",
			Name:        "Payment card number",
			Category:    CategoryFinancial,
			Sensitivity: SensitivityBasic,
			Pattern:     `\b(?:\d{4}[ -]?){3}\d{4}\b`,
			Strategy:    FormatPreserving(),
			Priority:    80,
			Enabled:     true,
		},
		{
			ID:          "financial.iban",
			Name:        "IBAN",
			Category:    CategoryFinancial,
			Sensitivity: SensitivityModerate,
			Pattern:     `\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`,
			Strategy:    FormatPreserving(),
			Priority:    75,
			Enabled:     true,
		},
		{
			ID:          "personal.email",
			Name:        "Email address",
			Category:    CategoryPersonal,
			Sensitivity: SensitivityBasic,
			Pattern:     `\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`,
			Strategy:    Pseudonym("email"),
			Priority:    70,
			Enabled:     true,
		},
		{
			ID:          "personal.phone",
			Name:        "Phone number",
			Category:    CategoryPersonal,
			Sensitivity: SensitivityModerate,
			Pattern:     `\b(?:\+?\d{1,3}[ .\-]?)?\(?\d{3}\)?[ .\-]?\d{3}[ .\-]?\d{4}\b`,
			Strategy:    Pseudonym("phone"),
			Priority:    60,
			Enabled:     true,
		},
		{
			ID:          "personal.street-address",
			Name:        "Street address",
			Category:    CategoryPersonal,
			Sensitivity: SensitivityHigh,
			Pattern:     `(?i)\b\d+\s+[A-Za-z][A-Za-z ]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct)\b`,
			Strategy:    Pseudonym("address"),
			Priority:    55,
			Enabled:     true,
		},
		{
			ID:          "medical.mrn",
			Name:        "Medical record number",
			Category:    CategoryMedical,
			Sensitivity: SensitivityHigh,
			Pattern:     `(?i)\bMRN[:# ]?\d{6,10}\b`,
			Strategy:    Fixed("[REDACTED:mrn]"),
			Priority:    85,
			Enabled:     true,
		},
		{
			ID:          "network.ipv4",
			Name:        "IPv4 address",
			Category:    CategoryNetwork,
			Sensitivity: SensitivityModerate,
			Pattern:     `\b(?:(?:25[0-5]|2[0-4]\d|[01]?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|[01]?\d?\d)\b`,
			Strategy:    Pseudonym("ip"),
			Priority:    65,
			Enabled:     true,
		},
		{
			ID:          "network.mac",
			Name:        "MAC address",
			Category:    CategoryNetwork,
			Sensitivity: SensitivityHigh,
			Pattern:     `(?i)\b(?:[0-9a-f]{2}[:\-]){5}[0-9a-f]{2}\b`,
			Strategy:    CharacterMask('*'),
			Priority:    65,
			Enabled:     true,
		},
		{
			ID:          "network.ipv6",
			Name:        "IPv6 address",
			Category:    CategoryNetwork,
			Sensitivity: SensitivityHigh,
			Pattern:     `(?i)\b(?:[0-9a-f]{1,4}:){7}[0-9a-f]{1,4}\b`,
			Strategy:    CharacterMask('*'),
			Priority:    64,
			Enabled:     true,
		},
		{
			// Broad catch-all; low priority so structured detectors such as
			// SSN or card numbers win any overlap on the same digits.
			ID:          "financial.number-sequence",
			Name:        "Long digit sequence",
			Category:    CategoryFinancial,
			Sensitivity: SensitivityMaximum,
			Pattern:     `\b\d{9,}\b`,
			Strategy:    CharacterMask('#'),
			Priority:    10,
			Enabled:     true,
		},
	}
}
