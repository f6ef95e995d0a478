package domain

import (
	"encoding/json"
	"time"
)

// Account is a user record owned by the dev auth backend. The portal never
// sees it; it only receives the Profile projection.
type Account struct {
	ID                string
	Username          string
	Email             string
	FirstName         string
	LastName          string
	Role              Role
	Country           string
	City              string
	CertificateNumber string
	PromotionMethods  []string
	PasswordHash      string
	IsActive          bool
	ActivationToken   string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Profile returns the public user shape sent to clients.
func (a *Account) Profile() *User {
	u := &User{
		ID:               UserID(a.ID),
		Username:         a.Username,
		Email:            a.Email,
		FirstName:        a.FirstName,
		LastName:         a.LastName,
		Role:             a.Role,
		Country:          a.Country,
		City:             a.City,
		PromotionMethods: append(PromotionMethods{}, a.PromotionMethods...),
	}
	if a.CertificateNumber != "" {
		cert, _ := json.Marshal(a.CertificateNumber)
		u.Extra = map[string]json.RawMessage{"certificate_number": cert}
	}
	return u
}

// TokenPair is a freshly issued access/refresh pair.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// FieldErrors is a per-field validation failure, rendered the way DRF does:
// {"field": ["message", ...]}.
type FieldErrors map[string][]string

func (f FieldErrors) Error() string {
	return "validation failed"
}

// Add appends msg to field.
func (f FieldErrors) Add(field, msg string) {
	f[field] = append(f[field], msg)
}

// ProfileUpdate carries the editable profile fields. Nil pointers are left
// unchanged.
type ProfileUpdate struct {
	FirstName        *string   `json:"first_name"`
	LastName         *string   `json:"last_name"`
	Email            *string   `json:"email"`
	Country          *string   `json:"country"`
	City             *string   `json:"city"`
	PromotionMethods *[]string `json:"promotion_methods"`
}

// Apply writes the set fields onto a.
func (p ProfileUpdate) Apply(a *Account) {
	if p.FirstName != nil {
		a.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		a.LastName = *p.LastName
	}
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.Country != nil {
		a.Country = *p.Country
	}
	if p.City != nil {
		a.City = *p.City
	}
	if p.PromotionMethods != nil {
		a.PromotionMethods = append([]string{}, (*p.PromotionMethods)...)
	}
}
