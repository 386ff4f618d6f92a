package risk

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"kycdoc/internal/domain"
)

// Each assessor inspects one aspect of the customer/document bundle and
// emits zero or more risk factors. Assessors are pure: they read their
// inputs and the injected config, nothing else. Absence of data is a risk
// signal, never an error.

func (s *Scorer) assessIdentityVerification(customer *domain.Customer, documents []domain.Document, sig Signals) []domain.RiskFactor {
	var factors []domain.RiskFactor

	var idDocTypes []domain.DocumentType
	for _, doc := range documents {
		if s.cfg.IdentityDocumentTypes[doc.DocumentType] {
			idDocTypes = append(idDocTypes, doc.DocumentType)
		}
	}

	switch len(idDocTypes) {
	case 0:
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryIdentityVerification,
			FactorName:  "missing_identity_document",
			Weight:      0.8,
			Score:       0.9,
			Description: "No identity documents provided",
			Evidence: domain.Evidence{
				DocumentCount:   len(documents),
				IDDocumentCount: 0,
			},
		})
	case 1:
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryIdentityVerification,
			FactorName:  "single_identity_document",
			Weight:      0.4,
			Score:       0.5,
			Description: "Only one identity document provided",
			Evidence: domain.Evidence{
				IDDocumentCount: 1,
				DocumentTypes:   idDocTypes,
			},
		})
	}

	failedAuth := 0
	for _, result := range sig.Authenticity {
		if !result.Authentic {
			failedAuth++
		}
	}
	if failedAuth > 0 {
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryIdentityVerification,
			FactorName:  "document_authenticity_failure",
			Weight:      0.9,
			Score:       0.8,
			Description: "Document authenticity verification failed",
			Evidence: domain.Evidence{
				FailedDocuments: failedAuth,
				TotalDocuments:  len(sig.Authenticity),
			},
		})
	}

	var lowConfidence []string
	for _, result := range sig.PII {
		fields := make([]string, 0, len(result.ConfidenceScores))
		for field := range result.ConfidenceScores {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			if confidence := result.ConfidenceScores[field]; confidence < s.cfg.PIIConfidenceFloor {
				lowConfidence = append(lowConfidence, fmt.Sprintf("%s: %.2f", field, confidence))
			}
		}
	}
	if len(lowConfidence) > 0 {
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryIdentityVerification,
			FactorName:  "low_pii_confidence",
			Weight:      0.6,
			Score:       0.6,
			Description: "Low confidence in PII extraction",
			Evidence: domain.Evidence{
				LowConfidenceFields: lowConfidence,
			},
		})
	}

	return factors
}

func (s *Scorer) assessDocumentQuality(documents []domain.Document, sig Signals) []domain.RiskFactor {
	if len(documents) == 0 {
		return []domain.RiskFactor{{
			Category:    domain.RiskCategoryDocumentQuality,
			FactorName:  "no_documents",
			Weight:      1.0,
			Score:       1.0,
			Description: "No documents uploaded",
			Evidence:    domain.Evidence{DocumentCount: 0},
		}}
	}

	var factors []domain.RiskFactor
	var unsupported, smallFiles, largeFiles []string

	for _, doc := range documents {
		if !s.cfg.AllowedMimeTypes[doc.MimeType] {
			unsupported = append(unsupported, doc.FileName)
		}
		if doc.FileSize < s.cfg.MinFileSizeBytes {
			smallFiles = append(smallFiles, doc.FileName)
		} else if doc.FileSize > s.cfg.MaxFileSizeBytes {
			largeFiles = append(largeFiles, doc.FileName)
		}
	}

	if len(unsupported) > 0 {
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryDocumentQuality,
			FactorName:  "unsupported_format",
			Weight:      0.5,
			Score:       0.6,
			Description: "Documents in unsupported formats",
			Evidence:    domain.Evidence{UnsupportedFiles: unsupported},
		})
	}

	if len(smallFiles) > 0 {
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryDocumentQuality,
			FactorName:  "small_file_size",
			Weight:      0.7,
			Score:       0.7,
			Description: "Documents with suspiciously small file sizes",
			Evidence: domain.Evidence{
				SmallFiles: smallFiles,
				// Oversized files carry no factor of their own.
				LargeFiles: largeFiles,
			},
		})
	}

	var poorQuality []string
	for _, summary := range sig.Documents {
		if summary.QualityScore < s.cfg.QualityScoreFloor {
			poorQuality = append(poorQuality, summary.DocumentID)
		}
	}
	if len(poorQuality) > 0 {
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryDocumentQuality,
			FactorName:  "poor_quality_documents",
			Weight:      0.6,
			Score:       0.6,
			Description: "Documents with poor quality scores",
			Evidence: domain.Evidence{
				PoorQualityDocuments: poorQuality,
				LargeFiles:           largeFiles,
			},
		})
	}

	return factors
}

func (s *Scorer) assessBehavioralPatterns(customer *domain.Customer, sig Signals) []domain.RiskFactor {
	var factors []domain.RiskFactor

	registeredAt := customer.CreatedAt
	if hour := registeredAt.Hour(); hour >= 2 && hour <= 6 {
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryBehavioralPatterns,
			FactorName:  "unusual_registration_time",
			Weight:      0.3,
			Score:       0.4,
			Description: "Registration during unusual hours",
			Evidence:    domain.Evidence{RegistrationHour: hour},
		})
	}

	sinceRegistration := sig.SubmittedAt.Sub(registeredAt)
	if sinceRegistration < 5*time.Minute {
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryBehavioralPatterns,
			FactorName:  "rapid_submission",
			Weight:      0.5,
			Score:       0.6,
			Description: "Very quick document submission after registration",
			Evidence: domain.Evidence{
				MinutesSinceRegistration: sinceRegistration.Minutes(),
			},
		})
	}

	if domainPart, ok := emailDomain(customer.Email); ok && s.cfg.DisposableEmailDomains[domainPart] {
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryBehavioralPatterns,
			FactorName:  "suspicious_email_domain",
			Weight:      0.8,
			Score:       0.8,
			Description: "Email from temporary/suspicious domain",
			Evidence:    domain.Evidence{EmailDomain: domainPart},
		})
	}

	return factors
}

func (s *Scorer) assessGeographicRisk(customer *domain.Customer) []domain.RiskFactor {
	if customer.Country == "" {
		return []domain.RiskFactor{{
			Category:    domain.RiskCategoryGeographicRisk,
			FactorName:  "unknown_country",
			Weight:      0.6,
			Score:       0.5,
			Description: "Customer country not specified",
			Evidence:    domain.Evidence{},
		}}
	}

	var factors []domain.RiskFactor

	countryCode := s.cfg.CountryCode(customer.Country)
	if s.cfg.HighRiskCountries[countryCode] {
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryGeographicRisk,
			FactorName:  "high_risk_jurisdiction",
			Weight:      0.8,
			Score:       0.9,
			Description: "Customer from high-risk jurisdiction",
			Evidence: domain.Evidence{
				Country:     customer.Country,
				CountryCode: countryCode,
			},
		})
	}

	if customer.Nationality != "" {
		if nationalityCode := s.cfg.CountryCode(customer.Nationality); nationalityCode != countryCode {
			factors = append(factors, domain.RiskFactor{
				Category:    domain.RiskCategoryGeographicRisk,
				FactorName:  "nationality_country_mismatch",
				Weight:      0.4,
				Score:       0.3,
				Description: "Mismatch between nationality and country of residence",
				Evidence: domain.Evidence{
					Nationality: customer.Nationality,
					Country:     customer.Country,
				},
			})
		}
	}

	return factors
}

func (s *Scorer) assessRegulatoryCompliance(customer *domain.Customer, sig Signals) []domain.RiskFactor {
	var factors []domain.RiskFactor

	if customer.DateOfBirth != nil {
		age := sig.SubmittedAt.Sub(*customer.DateOfBirth).Hours() / 24 / 365.25
		if age < 18 {
			factors = append(factors, domain.RiskFactor{
				Category:    domain.RiskCategoryRegulatoryCompliance,
				FactorName:  "underage_customer",
				Weight:      1.0,
				Score:       1.0,
				Description: "Customer is under legal age",
				Evidence: domain.Evidence{
					Age:         age,
					DateOfBirth: customer.DateOfBirth.Format("2006-01-02"),
				},
			})
		} else if age > 100 {
			factors = append(factors, domain.RiskFactor{
				Category:    domain.RiskCategoryRegulatoryCompliance,
				FactorName:  "unusual_age",
				Weight:      0.6,
				Score:       0.4,
				Description: "Customer age seems unrealistic",
				Evidence:    domain.Evidence{Age: age},
			})
		}
	} else {
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryRegulatoryCompliance,
			FactorName:  "missing_date_of_birth",
			Weight:      0.7,
			Score:       0.6,
			Description: "Date of birth not provided",
			Evidence:    domain.Evidence{},
		})
	}

	var missing []string
	for _, check := range []struct {
		field string
		value string
	}{
		{"first_name", customer.FirstName},
		{"last_name", customer.LastName},
		{"email", customer.Email},
		{"address_line1", customer.AddressLine1},
		{"city", customer.City},
		{"country", customer.Country},
	} {
		if strings.TrimSpace(check.value) == "" {
			missing = append(missing, check.field)
		}
	}
	if len(missing) > 0 {
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryRegulatoryCompliance,
			FactorName:  "incomplete_customer_data",
			Weight:      0.5,
			Score:       float64(len(missing)) * 0.1,
			Description: "Required customer data fields missing",
			Evidence:    domain.Evidence{MissingFields: missing},
		})
	}

	return factors
}

func (s *Scorer) assessFraudIndicators(customer *domain.Customer) []domain.RiskFactor {
	var factors []domain.RiskFactor

	fullName := strings.ToLower(customer.FullName())
	for _, pattern := range s.cfg.SuspiciousNamePatterns {
		if strings.Contains(fullName, pattern) {
			factors = append(factors, domain.RiskFactor{
				Category:    domain.RiskCategoryFraudIndicators,
				FactorName:  "suspicious_name_pattern",
				Weight:      0.7,
				Score:       0.8,
				Description: "Name contains suspicious patterns",
				Evidence: domain.Evidence{
					NamePattern: pattern,
					FullName:    fullName,
				},
			})
			break // first match wins
		}
	}

	if hasRepeatedRun(customer.FirstName) || hasRepeatedRun(customer.LastName) {
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryFraudIndicators,
			FactorName:  "repeated_characters_name",
			Weight:      0.5,
			Score:       0.6,
			Description: "Name contains unusual repeated characters",
			Evidence: domain.Evidence{
				FullName: customer.FullName(),
			},
		})
	}

	if local, ok := emailLocalPart(customer.Email); ok && hasRepeatedAlnumRun(local) {
		factors = append(factors, domain.RiskFactor{
			Category:    domain.RiskCategoryFraudIndicators,
			FactorName:  "suspicious_email_pattern",
			Weight:      0.4,
			Score:       0.5,
			Description: "Email contains suspicious character patterns",
			Evidence:    domain.Evidence{Email: customer.Email},
		})
	}

	return factors
}

func emailDomain(email string) (string, bool) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", false
	}
	return strings.ToLower(email[at+1:]), true
}

func emailLocalPart(email string) (string, bool) {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "", false
	}
	return strings.ToLower(email[:at]), true
}

// hasRepeatedRun reports whether text contains three or more identical
// consecutive characters.
func hasRepeatedRun(text string) bool {
	runes := []rune(text)
	if len(runes) < 3 {
		return false
	}
	for i := 0; i+2 < len(runes); i++ {
		if runes[i] == runes[i+1] && runes[i+1] == runes[i+2] {
			return true
		}
	}
	return false
}

// hasRepeatedAlnumRun is hasRepeatedRun restricted to ASCII letters and
// digits, matching the email local-part check.
func hasRepeatedAlnumRun(text string) bool {
	runes := []rune(text)
	for i := 0; i+2 < len(runes); i++ {
		r := runes[i]
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			continue
		}
		if r == runes[i+1] && r == runes[i+2] {
			return true
		}
	}
	return false
}
