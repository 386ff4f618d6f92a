package risk

import (
	"testing"
	"time"

	"kycdoc/internal/analysis"
	"kycdoc/internal/domain"
	"kycdoc/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScorerRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CategoryWeights[domain.RiskCategoryFraudIndicators] = 0.5 // sum != 1.0

	_, err := NewScorer(cfg, logger.NewNop())
	require.Error(t, err)
	assert.ErrorContains(t, err, "category weights")

	cfg = DefaultConfig()
	delete(cfg.CategoryWeights, domain.RiskCategoryGeographicRisk)
	_, err = NewScorer(cfg, logger.NewNop())
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.ThresholdLow = 0.8 // low above medium
	_, err = NewScorer(cfg, logger.NewNop())
	require.Error(t, err)
}

func TestAssessCleanCustomerScoresZero(t *testing.T) {
	s := newTestScorer(t)
	customer := cleanCustomer()

	result := s.Assess(customer, cleanDocuments(customer.ID), Signals{SubmittedAt: submittedAt(customer)})

	assert.Zero(t, result.OverallRiskScore)
	assert.Equal(t, domain.RiskLevelLow, result.RiskLevel)
	assert.Empty(t, result.RiskFactors)
	assert.Equal(t, 0.5, result.ConfidenceScore)
	assert.Equal(t, []string{"Proceed with standard processing"}, result.Recommendations)
}

func TestAssessScoreAlwaysWithinBounds(t *testing.T) {
	s := newTestScorer(t)

	// Worst-case profile: no documents, disposable email, high-risk country,
	// suspicious name, underage, night registration, rapid submission.
	customer := cleanCustomer()
	customer.FirstName = "Test"
	customer.LastName = "Dummy"
	customer.Email = "xxx111@tempmail.org"
	customer.Country = "Iran"
	customer.Nationality = "Syria"
	customer.AddressLine1 = ""
	customer.City = ""
	customer.CreatedAt = time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)
	dob := customer.CreatedAt.AddDate(-12, 0, 0)
	customer.DateOfBirth = &dob

	result := s.Assess(customer, nil, Signals{
		SubmittedAt: customer.CreatedAt.Add(time.Minute),
		Authenticity: []analysis.AuthenticityResult{
			{DocumentID: "a", Authentic: false},
		},
	})

	assert.GreaterOrEqual(t, result.OverallRiskScore, 0.0)
	assert.LessOrEqual(t, result.OverallRiskScore, 1.0)
	assert.Equal(t, s.RiskLevelForScore(result.OverallRiskScore), result.RiskLevel)
	assert.NotEmpty(t, result.RiskFactors)
}

func TestAssessIsDeterministic(t *testing.T) {
	s := newTestScorer(t)
	customer := cleanCustomer()
	customer.Country = "Afghanistan"
	docs := cleanDocuments(customer.ID)

	sig := Signals{
		SubmittedAt: submittedAt(customer),
		PII: []analysis.PIIResult{{
			DocumentID: "d1",
			ConfidenceScores: map[string]float64{
				"name": 0.3, "address": 0.4, "id_number": 0.5, "date_of_birth": 0.6,
			},
		}},
	}

	first := s.Assess(customer, docs, sig)
	second := s.Assess(customer, docs, sig)

	assert.Equal(t, first.OverallRiskScore, second.OverallRiskScore)
	assert.Equal(t, first.RiskFactors, second.RiskFactors)
	assert.Equal(t, first.Recommendations, second.Recommendations)
	assert.Equal(t, first.ConfidenceScore, second.ConfidenceScore)
}

func TestAggregateWeightedCategoryMeans(t *testing.T) {
	s := newTestScorer(t)

	// Two identity factors average before the category weight applies.
	factors := []domain.RiskFactor{
		{Category: domain.RiskCategoryIdentityVerification, Weight: 0.8, Score: 0.5},
		{Category: domain.RiskCategoryIdentityVerification, Weight: 0.4, Score: 1.0},
		{Category: domain.RiskCategoryFraudIndicators, Weight: 0.7, Score: 0.8},
	}

	score, level := s.Aggregate(factors)

	// identity: mean(0.4, 0.4) = 0.4 -> 0.25*0.4 = 0.10
	// fraud: 0.56 -> 0.10*0.56 = 0.056
	assert.InDelta(t, 0.156, score, 1e-9)
	assert.Equal(t, domain.RiskLevelLow, level)
}

func TestAggregateEmptyFactors(t *testing.T) {
	s := newTestScorer(t)

	score, level := s.Aggregate(nil)
	assert.Zero(t, score)
	assert.Equal(t, domain.RiskLevelLow, level)
}

func TestRiskLevelBoundaries(t *testing.T) {
	s := newTestScorer(t)

	assert.Equal(t, domain.RiskLevelLow, s.RiskLevelForScore(0.0))
	assert.Equal(t, domain.RiskLevelLow, s.RiskLevelForScore(0.29999))
	assert.Equal(t, domain.RiskLevelMedium, s.RiskLevelForScore(0.3))
	assert.Equal(t, domain.RiskLevelMedium, s.RiskLevelForScore(0.69999))
	assert.Equal(t, domain.RiskLevelHigh, s.RiskLevelForScore(0.7))
	assert.Equal(t, domain.RiskLevelHigh, s.RiskLevelForScore(1.0))
}

func TestScenarioUnderageOnly(t *testing.T) {
	s := newTestScorer(t)
	customer := cleanCustomer()
	sub := submittedAt(customer)
	dob := sub.AddDate(-10, 0, 0)
	customer.DateOfBirth = &dob

	result := s.Assess(customer, cleanDocuments(customer.ID), Signals{SubmittedAt: sub})

	// One compliance factor at 1.0*1.0, category weight 0.15.
	assert.InDelta(t, 0.15, result.OverallRiskScore, 1e-9)
	assert.Equal(t, domain.RiskLevelLow, result.RiskLevel)
}

func TestScenarioHighRiskCountryOnly(t *testing.T) {
	s := newTestScorer(t)
	customer := cleanCustomer()
	customer.Country = "Afghanistan"
	customer.Nationality = "Afghanistan"

	result := s.Assess(customer, cleanDocuments(customer.ID), Signals{SubmittedAt: submittedAt(customer)})

	// 0.8*0.9 = 0.72, geographic weight 0.15.
	assert.InDelta(t, 0.108, result.OverallRiskScore, 1e-9)
	assert.Contains(t, result.Recommendations, "Apply enhanced due diligence for high-risk jurisdiction")
}

func TestScenarioDisposableEmailOnly(t *testing.T) {
	s := newTestScorer(t)
	customer := cleanCustomer()
	customer.Email = "john.smith@mailinator.com"

	result := s.Assess(customer, cleanDocuments(customer.ID), Signals{SubmittedAt: submittedAt(customer)})

	// 0.8*0.8 = 0.64, behavioral weight 0.15.
	assert.InDelta(t, 0.096, result.OverallRiskScore, 1e-9)
}

func TestScenarioNoDocuments(t *testing.T) {
	s := newTestScorer(t)
	customer := cleanCustomer()

	result := s.Assess(customer, nil, Signals{SubmittedAt: submittedAt(customer)})

	// identity 0.8*0.9=0.72 -> 0.25*0.72 = 0.18
	// quality 1.0*1.0=1.0 -> 0.20*1.0 = 0.20
	assert.InDelta(t, 0.38, result.OverallRiskScore, 1e-9)
	assert.Equal(t, domain.RiskLevelMedium, result.RiskLevel)
	// Two factors, both above the high-weight threshold.
	assert.InDelta(t, 0.9, result.ConfidenceScore, 1e-9)
}

func TestConfidenceScoring(t *testing.T) {
	s := newTestScorer(t)

	assert.Equal(t, 0.5, s.Confidence(nil))

	factors := []domain.RiskFactor{
		{Weight: 0.5},
		{Weight: 0.8},
	}
	// 0.5 + 2*0.1 + 1*0.1
	assert.InDelta(t, 0.8, s.Confidence(factors), 1e-9)

	many := make([]domain.RiskFactor, 10)
	for i := range many {
		many[i] = domain.RiskFactor{Weight: 0.9}
	}
	assert.Equal(t, 1.0, s.Confidence(many))
}

func TestRecommendationsDeduplicated(t *testing.T) {
	s := newTestScorer(t)

	factors := []domain.RiskFactor{
		{Category: domain.RiskCategoryIdentityVerification, Weight: 0.8, Score: 0.9},
		{Category: domain.RiskCategoryIdentityVerification, Weight: 0.6, Score: 0.6},
		{Category: domain.RiskCategoryDocumentQuality, Weight: 1.0, Score: 1.0},
		{Category: domain.RiskCategoryFraudIndicators, Weight: 0.7, Score: 0.8},
	}

	recommendations := s.Recommend(factors, domain.RiskLevelHigh)

	seen := make(map[string]int)
	for _, rec := range recommendations {
		seen[rec]++
	}
	for rec, count := range seen {
		assert.Equal(t, 1, count, "duplicate recommendation: %s", rec)
	}

	assert.Contains(t, recommendations, "Require manual review by senior analyst")
	assert.Contains(t, recommendations, "Verify identity documents with issuing authorities")
	assert.Contains(t, recommendations, "Request higher quality document images")
	assert.Contains(t, recommendations, "Investigate potential fraud indicators")
	assert.NotContains(t, recommendations, "Proceed with standard processing")
}

func TestRecommendationsMediumLevel(t *testing.T) {
	s := newTestScorer(t)

	recommendations := s.Recommend(nil, domain.RiskLevelMedium)

	assert.Equal(t, []string{
		"Assign to experienced analyst for review",
		"Verify suspicious findings",
		"Consider requesting additional documentation",
	}, recommendations)
}
