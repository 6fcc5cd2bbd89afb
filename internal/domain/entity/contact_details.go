package entity

import "strings"

// ContactDetails holds the requester's contact form input
type ContactDetails struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,booking_email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
}

// Contact form field names, in focus order
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldCompany = "company"
)

var ContactFields = []string{FieldName, FieldEmail, FieldPhone, FieldCompany}

func IsContactField(field string) bool {
	for _, f := range ContactFields {
		if f == field {
			return true
		}
	}
	return false
}

// Trimmed returns a copy with surrounding whitespace removed from every field
func (d ContactDetails) Trimmed() ContactDetails {
	return ContactDetails{
		Name:    strings.TrimSpace(d.Name),
		Email:   strings.TrimSpace(d.Email),
		Phone:   strings.TrimSpace(d.Phone),
		Company: strings.TrimSpace(d.Company),
	}
}

// PhoneOrNA returns the phone number or "N/A" when none was given
func (d ContactDetails) PhoneOrNA() string {
	return orNA(d.Phone)
}

// CompanyOrNA returns the company or "N/A" when none was given
func (d ContactDetails) CompanyOrNA() string {
	return orNA(d.Company)
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// ValidationKind classifies a field validation failure
type ValidationKind string

const (
	MissingField  ValidationKind = "MissingField"
	InvalidFormat ValidationKind = "InvalidFormat"
)

// FieldError is the inline annotation attached to a failing field
type FieldError struct {
	Field   string         `json:"field"`
	Kind    ValidationKind `json:"kind"`
	Message string         `json:"message"`
}
