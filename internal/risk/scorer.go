// Package risk implements the weighted multi-factor KYC risk scorer. Six
// category assessors turn customer and document signals into risk factors;
// the aggregator folds them into a single score and level.
package risk

import (
	"time"

	"kycdoc/internal/analysis"
	"kycdoc/internal/domain"
	"kycdoc/pkg/logger"
)

// Signals bundles the collaborator outputs accumulated by the workflow up
// to the risk-assessment step. SubmittedAt is the reference time for the
// age and rapid-submission checks so that scoring stays reproducible.
type Signals struct {
	Documents    []analysis.DocumentAnalysis
	Authenticity []analysis.AuthenticityResult
	PII          []analysis.PIIResult
	SubmittedAt  time.Time
}

// Scorer evaluates customers against the injected rule set. Scorer is
// stateless after construction and safe for concurrent use.
type Scorer struct {
	cfg    Config
	logger logger.Logger
}

// NewScorer validates the rule set and returns a scorer.
func NewScorer(cfg Config, log logger.Logger) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{
		cfg:    cfg,
		logger: log,
	}, nil
}

// Assess runs all six category assessors in the fixed category order,
// aggregates their factors, and produces the complete assessment result.
func (s *Scorer) Assess(customer *domain.Customer, documents []domain.Document, sig Signals) *domain.RiskAssessmentResult {
	var factors []domain.RiskFactor
	factors = append(factors, s.assessIdentityVerification(customer, documents, sig)...)
	factors = append(factors, s.assessDocumentQuality(documents, sig)...)
	factors = append(factors, s.assessBehavioralPatterns(customer, sig)...)
	factors = append(factors, s.assessGeographicRisk(customer)...)
	factors = append(factors, s.assessRegulatoryCompliance(customer, sig)...)
	factors = append(factors, s.assessFraudIndicators(customer)...)

	overallScore, riskLevel := s.Aggregate(factors)

	result := &domain.RiskAssessmentResult{
		CustomerID:          customer.ID,
		OverallRiskScore:    overallScore,
		RiskLevel:           riskLevel,
		RiskFactors:         factors,
		Recommendations:     s.Recommend(factors, riskLevel),
		ConfidenceScore:     s.Confidence(factors),
		AssessmentTimestamp: time.Now().UTC(),
	}

	s.logger.Debug("risk assessment computed", map[string]interface{}{
		"customer_id":   customer.ID.String(),
		"risk_score":    overallScore,
		"risk_level":    string(riskLevel),
		"factors_count": len(factors),
	})

	return result
}

// Aggregate combines factors into the overall score and level. Factors are
// grouped by category; each category contributes the arithmetic mean of its
// factors' weight*score, multiplied by the fixed category weight. The sum
// is clamped to [0,1]. Identical factor lists always produce identical
// output.
func (s *Scorer) Aggregate(factors []domain.RiskFactor) (float64, domain.RiskLevel) {
	contributions := make(map[domain.RiskCategory][]float64, len(domain.RiskCategories))
	for _, factor := range factors {
		contributions[factor.Category] = append(contributions[factor.Category], factor.Contribution())
	}

	var overall float64
	for _, category := range domain.RiskCategories {
		values := contributions[category]
		if len(values) == 0 {
			continue
		}
		var sum float64
		for _, v := range values {
			sum += v
		}
		overall += s.cfg.CategoryWeights[category] * (sum / float64(len(values)))
	}

	if overall > 1.0 {
		overall = 1.0
	}
	if overall < 0.0 {
		overall = 0.0
	}

	return overall, s.RiskLevelForScore(overall)
}

// RiskLevelForScore maps a score to its discrete level. The level is always
// derived from the score, never assigned independently.
func (s *Scorer) RiskLevelForScore(score float64) domain.RiskLevel {
	switch {
	case score < s.cfg.ThresholdLow:
		return domain.RiskLevelLow
	case score < s.cfg.ThresholdMedium:
		return domain.RiskLevelMedium
	default:
		return domain.RiskLevelHigh
	}
}

// Recommend produces the de-duplicated action list for a factor set. Output
// order follows first appearance but callers should treat it as a set.
func (s *Scorer) Recommend(factors []domain.RiskFactor, level domain.RiskLevel) []string {
	var recommendations []string

	switch level {
	case domain.RiskLevelHigh:
		recommendations = append(recommendations,
			"Require manual review by senior analyst",
			"Request additional documentation",
			"Consider enhanced due diligence procedures",
			"Verify customer identity through alternative means",
		)
	case domain.RiskLevelMedium:
		recommendations = append(recommendations,
			"Assign to experienced analyst for review",
			"Verify suspicious findings",
			"Consider requesting additional documentation",
		)
	default:
		recommendations = append(recommendations, "Proceed with standard processing")
	}

	present := make(map[domain.RiskCategory]bool, len(factors))
	for _, factor := range factors {
		present[factor.Category] = true
	}

	if present[domain.RiskCategoryIdentityVerification] {
		recommendations = append(recommendations, "Verify identity documents with issuing authorities")
	}
	if present[domain.RiskCategoryDocumentQuality] {
		recommendations = append(recommendations, "Request higher quality document images")
	}
	if present[domain.RiskCategoryGeographicRisk] {
		recommendations = append(recommendations, "Apply enhanced due diligence for high-risk jurisdiction")
	}
	if present[domain.RiskCategoryFraudIndicators] {
		recommendations = append(recommendations, "Investigate potential fraud indicators")
	}

	return dedupe(recommendations)
}

// Confidence scores the assessment itself: base 0.5, +0.1 per factor,
// +0.1 per factor with weight above 0.7, capped at 1.0.
func (s *Scorer) Confidence(factors []domain.RiskFactor) float64 {
	if len(factors) == 0 {
		return 0.5
	}

	highWeight := 0
	for _, factor := range factors {
		if factor.Weight > 0.7 {
			highWeight++
		}
	}

	confidence := 0.5 + float64(len(factors))*0.1 + float64(highWeight)*0.1
	if confidence > 1.0 {
		return 1.0
	}
	return confidence
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
