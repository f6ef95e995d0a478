package domain

import (
	"encoding/json"
	"strings"
)

// Session is the persisted authenticated state of one client. It is stored
// as a single record so the two tokens and the user can never be read torn.
type Session struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
	User         *User  `json:"user"`
}

// Empty reports whether the session carries no identity and no tokens.
func (s Session) Empty() bool {
	return s.User == nil && s.AccessToken == "" && s.RefreshToken == ""
}

// Clone returns a copy with its own User.
func (s Session) Clone() Session {
	s.User = s.User.Clone()
	return s
}

// RefreshBundle is what the backend returns for a token refresh. Refresh is
// only set when the backend rotates refresh tokens; User only when it sends
// updated profile fields alongside the new access token.
type RefreshBundle struct {
	Access  string                     `json:"access"`
	Refresh string                     `json:"refresh,omitempty"`
	User    map[string]json.RawMessage `json:"user,omitempty"`
}

// Credentials is the transient input to a login.
type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identifier returns the username, or the email when no username was given.
func (c Credentials) Identifier() string {
	if u := strings.TrimSpace(c.Username); u != "" {
		return u
	}
	return strings.TrimSpace(c.Email)
}

// RegistrationRequest is the transient input to a registration.
type RegistrationRequest struct {
	FirstName        string   `json:"first_name"`
	LastName         string   `json:"last_name"`
	Username         string   `json:"username"`
	Email            string   `json:"email"`
	Password         string   `json:"password"`
	ConfirmPassword  string   `json:"confirm_password"`
	Country          string   `json:"country"`
	City             string   `json:"city"`
	PromotionMethods []string `json:"promotion_methods"`
	Role             Role     `json:"role"`
}

// Normalize trims and defaults the role and guarantees a non-nil list of
// promotion methods, so the payload always carries `[]` rather than null.
func (r RegistrationRequest) Normalize() RegistrationRequest {
	r.Role = NormalizeRole(string(r.Role))
	if r.PromotionMethods == nil {
		r.PromotionMethods = []string{}
	} else {
		r.PromotionMethods = append([]string{}, r.PromotionMethods...)
	}
	return r
}
