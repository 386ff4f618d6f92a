package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RiskCategory is one of the six fixed risk dimensions.
type RiskCategory string

const (
	RiskCategoryIdentityVerification RiskCategory = "identity_verification"
	RiskCategoryDocumentQuality      RiskCategory = "document_quality"
	RiskCategoryBehavioralPatterns   RiskCategory = "behavioral_patterns"
	RiskCategoryGeographicRisk       RiskCategory = "geographic_risk"
	RiskCategoryRegulatoryCompliance RiskCategory = "regulatory_compliance"
	RiskCategoryFraudIndicators      RiskCategory = "fraud_indicators"
)

// RiskCategories lists all categories in the fixed aggregation order.
var RiskCategories = []RiskCategory{
	RiskCategoryIdentityVerification,
	RiskCategoryDocumentQuality,
	RiskCategoryBehavioralPatterns,
	RiskCategoryGeographicRisk,
	RiskCategoryRegulatoryCompliance,
	RiskCategoryFraudIndicators,
}

// RiskLevel is the discrete level derived from the overall score.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// Evidence carries the structured facts backing a risk factor. Only the
// fields relevant to the factor are populated; Extra holds anything that
// does not fit the typed fields.
type Evidence struct {
	DocumentCount            int            `json:"document_count,omitempty"`
	IDDocumentCount          int            `json:"id_document_count,omitempty"`
	DocumentTypes            []DocumentType `json:"document_types,omitempty"`
	FailedDocuments          int            `json:"failed_documents,omitempty"`
	TotalDocuments           int            `json:"total_documents,omitempty"`
	LowConfidenceFields      []string       `json:"low_confidence_fields,omitempty"`
	UnsupportedFiles         []string       `json:"unsupported_files,omitempty"`
	SmallFiles               []string       `json:"small_files,omitempty"`
	LargeFiles               []string       `json:"large_files,omitempty"`
	PoorQualityDocuments     []string       `json:"poor_quality_documents,omitempty"`
	RegistrationHour         int            `json:"registration_hour,omitempty"`
	MinutesSinceRegistration float64        `json:"minutes_since_registration,omitempty"`
	EmailDomain              string         `json:"email_domain,omitempty"`
	Email                    string         `json:"email,omitempty"`
	Country                  string         `json:"country,omitempty"`
	CountryCode              string         `json:"country_code,omitempty"`
	Nationality              string         `json:"nationality,omitempty"`
	Age                      float64        `json:"age,omitempty"`
	DateOfBirth              string         `json:"date_of_birth,omitempty"`
	MissingFields            []string       `json:"missing_fields,omitempty"`
	NamePattern              string         `json:"name_pattern,omitempty"`
	FullName                 string         `json:"full_name,omitempty"`
	Extra                    Metadata       `json:"extra,omitempty"`
}

// RiskFactor is a single weighted, scored signal produced by one assessor
// during one assessment pass. Factors are never mutated after creation.
type RiskFactor struct {
	Category    RiskCategory `json:"category"`
	FactorName  string       `json:"factor_name"`
	Weight      float64      `json:"weight"`
	Score       float64      `json:"score"`
	Description string       `json:"description"`
	Evidence    Evidence     `json:"evidence"`
}

// Contribution returns weight*score, the value aggregated per category.
func (f RiskFactor) Contribution() float64 {
	return f.Weight * f.Score
}

// RiskAssessmentResult is the outcome of one full assessment invocation.
type RiskAssessmentResult struct {
	CustomerID          uuid.UUID    `json:"customer_id"`
	OverallRiskScore    float64      `json:"overall_risk_score"`
	RiskLevel           RiskLevel    `json:"risk_level"`
	RiskFactors         []RiskFactor `json:"risk_factors"`
	Recommendations     []string     `json:"recommendations"`
	ConfidenceScore     float64      `json:"confidence_score"`
	AssessmentTimestamp time.Time    `json:"assessment_timestamp"`
}

// RiskAssessmentRecord is the persisted form of an assessment. Individual
// factors are stored as a JSON document; only the aggregate survives.
type RiskAssessmentRecord struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	CustomerID      uuid.UUID       `json:"customer_id" db:"customer_id"`
	SessionID       *uuid.UUID      `json:"session_id,omitempty" db:"session_id"`
	RiskScore       decimal.Decimal `json:"risk_score" db:"risk_score"`
	RiskLevel       RiskLevel       `json:"risk_level" db:"risk_level"`
	RiskFactors     json.RawMessage `json:"risk_factors" db:"risk_factors"`
	Recommendations json.RawMessage `json:"recommendations" db:"recommendations"`
	ConfidenceScore decimal.Decimal `json:"confidence_score" db:"confidence_score"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}
