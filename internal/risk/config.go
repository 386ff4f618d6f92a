package risk

import (
	"fmt"
	"math"
	"strings"

	"kycdoc/internal/domain"
	kycerrors "kycdoc/pkg/errors"
)

// Config carries the immutable rule data for the risk scorer. All denylists
// and weights are injected at construction so tests can substitute fixtures.
type Config struct {
	// CategoryWeights must cover all six categories and sum to 1.0.
	CategoryWeights map[domain.RiskCategory]float64

	// Level thresholds: score < ThresholdLow is low, score < ThresholdMedium
	// is medium, anything else is high.
	ThresholdLow    float64
	ThresholdMedium float64

	HighRiskCountries      map[string]bool
	DisposableEmailDomains map[string]bool
	SuspiciousNamePatterns []string

	// CountryCodes maps lowercase country names to ISO 3166-1 alpha-2 codes.
	// Unknown names fall back to the first two letters, uppercased.
	CountryCodes map[string]string

	IdentityDocumentTypes map[domain.DocumentType]bool
	AllowedMimeTypes      map[string]bool

	MinFileSizeBytes int64
	MaxFileSizeBytes int64

	PIIConfidenceFloor float64
	QualityScoreFloor  float64
}

// DefaultConfig returns the production rule set.
func DefaultConfig() Config {
	return Config{
		CategoryWeights: map[domain.RiskCategory]float64{
			domain.RiskCategoryIdentityVerification: 0.25,
			domain.RiskCategoryDocumentQuality:      0.20,
			domain.RiskCategoryBehavioralPatterns:   0.15,
			domain.RiskCategoryGeographicRisk:       0.15,
			domain.RiskCategoryRegulatoryCompliance: 0.15,
			domain.RiskCategoryFraudIndicators:      0.10,
		},
		ThresholdLow:    0.3,
		ThresholdMedium: 0.7,
		HighRiskCountries: toSet(
			"AF", "BY", "CF", "CG", "CD", "CU", "ER", "GW", "HT", "IR",
			"IQ", "KP", "LB", "LY", "ML", "MM", "NI", "PK", "SO", "SS",
			"SD", "SY", "TR", "UA", "VE", "YE", "ZW",
		),
		DisposableEmailDomains: toSet(
			"tempmail.org", "10minutemail.com", "guerrillamail.com", "mailinator.com",
		),
		SuspiciousNamePatterns: []string{"test", "fake", "dummy", "anonymous", "user", "admin"},
		CountryCodes: map[string]string{
			"united states": "US", "usa": "US",
			"united kingdom": "GB", "uk": "GB",
			"canada": "CA", "germany": "DE", "france": "FR",
			"afghanistan": "AF", "belarus": "BY", "cuba": "CU",
			"iran": "IR", "iraq": "IQ", "north korea": "KP",
			"syria": "SY", "venezuela": "VE", "yemen": "YE",
		},
		IdentityDocumentTypes: map[domain.DocumentType]bool{
			domain.DocumentTypePassport:       true,
			domain.DocumentTypeDriversLicense: true,
			domain.DocumentTypeNationalID:     true,
		},
		AllowedMimeTypes: toSet("application/pdf", "image/jpeg", "image/png"),

		MinFileSizeBytes: 50_000,
		MaxFileSizeBytes: 20_000_000,

		PIIConfidenceFloor: 0.7,
		QualityScoreFloor:  0.5,
	}
}

// Validate checks the structural invariants of the rule set.
func (c Config) Validate() error {
	if len(c.CategoryWeights) != len(domain.RiskCategories) {
		return kycerrors.Wrap(kycerrors.ErrInvalidRiskConfig,
			fmt.Sprintf("expected %d category weights, got %d", len(domain.RiskCategories), len(c.CategoryWeights)))
	}

	var sum float64
	for _, category := range domain.RiskCategories {
		weight, ok := c.CategoryWeights[category]
		if !ok {
			return kycerrors.Wrap(kycerrors.ErrInvalidRiskConfig,
				fmt.Sprintf("missing weight for category %q", category))
		}
		if weight < 0 || weight > 1 {
			return kycerrors.Wrap(kycerrors.ErrInvalidRiskConfig,
				fmt.Sprintf("weight for category %q out of range: %f", category, weight))
		}
		sum += weight
	}
	if math.Abs(sum-1.0) > 1e-9 {
		return kycerrors.Wrap(kycerrors.ErrInvalidRiskConfig,
			fmt.Sprintf("category weights sum to %f, want 1.0", sum))
	}

	if !(c.ThresholdLow > 0 && c.ThresholdLow < c.ThresholdMedium && c.ThresholdMedium < 1) {
		return kycerrors.Wrap(kycerrors.ErrInvalidRiskConfig,
			fmt.Sprintf("invalid level thresholds: low=%f medium=%f", c.ThresholdLow, c.ThresholdMedium))
	}

	return nil
}

// CountryCode resolves a country name to an alpha-2 code using the lookup
// table, falling back to the first two letters uppercased.
func (c Config) CountryCode(countryName string) string {
	name := strings.ToLower(strings.TrimSpace(countryName))
	if code, ok := c.CountryCodes[name]; ok {
		return code
	}
	if len(name) < 2 {
		return strings.ToUpper(name)
	}
	return strings.ToUpper(name[:2])
}

func toSet(values ...string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
