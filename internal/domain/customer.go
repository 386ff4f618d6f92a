// Package domain defines the core business entities for the KYC document
// processing system.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CustomerStatus represents the lifecycle state of a customer record.
type CustomerStatus string

const (
	CustomerStatusActive    CustomerStatus = "active"
	CustomerStatusInactive  CustomerStatus = "inactive"
	CustomerStatusSuspended CustomerStatus = "suspended"
)

// DocumentType represents types of KYC documents.
type DocumentType string

const (
	DocumentTypePassport       DocumentType = "passport"
	DocumentTypeDriversLicense DocumentType = "drivers_license"
	DocumentTypeNationalID     DocumentType = "national_id"
	DocumentTypeUtilityBill    DocumentType = "utility_bill"
	DocumentTypeBankStatement  DocumentType = "bank_statement"
	DocumentTypeSelfieWithID   DocumentType = "selfie_with_id"
)

// Customer represents an onboarding applicant.
type Customer struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	FirstName    string         `json:"first_name" db:"first_name"`
	LastName     string         `json:"last_name" db:"last_name"`
	Email        string         `json:"email" db:"email"`
	DateOfBirth  *time.Time     `json:"date_of_birth,omitempty" db:"date_of_birth"`
	Nationality  string         `json:"nationality,omitempty" db:"nationality"`
	AddressLine1 string         `json:"address_line1,omitempty" db:"address_line1"`
	AddressLine2 string         `json:"address_line2,omitempty" db:"address_line2"`
	City         string         `json:"city,omitempty" db:"city"`
	Country      string         `json:"country,omitempty" db:"country"`
	Status       CustomerStatus `json:"status" db:"status"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at" db:"updated_at"`
}

// FullName returns "first last" as used by the fraud checks.
func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Document represents an uploaded KYC document's metadata. Raw bytes live in
// external blob storage and never enter this core.
type Document struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	CustomerID   uuid.UUID    `json:"customer_id" db:"customer_id"`
	DocumentType DocumentType `json:"document_type" db:"document_type"`
	FileName     string       `json:"file_name" db:"file_name"`
	MimeType     string       `json:"mime_type" db:"mime_type"`
	FileSize     int64        `json:"file_size" db:"file_size"`
	StorageRef   string       `json:"storage_ref,omitempty" db:"storage_ref"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// Metadata is a JSON-compatible map persisted as a JSONB column.
type Metadata map[string]interface{}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &m)
}
