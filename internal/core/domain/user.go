package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// UserID is the backend's user identifier. The Django backend sends an
// integer; the dev backend may send a string. Both decode here.
type UserID string

func (id UserID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(strconv.FormatInt(n, 10)), nil
	}
	return json.Marshal(string(id))
}

func (id *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = UserID(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("user id: %w", err)
		}
		*id = UserID(n.String())
	}
	return nil
}

// PromotionMethods is the ordered list of channels an affiliate promotes
// through. The backend stores it as free text, so it may arrive as a JSON
// list, a comma-separated string, an encoded list inside a string, or null.
type PromotionMethods []string

func (p *PromotionMethods) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*p = nil
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var list []string
		if err := json.Unmarshal(b, &list); err != nil {
			return fmt.Errorf("promotion methods: %w", err)
		}
		*p = list
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("promotion methods: %w", err)
	}
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "[") {
		var list []string
		if err := json.Unmarshal([]byte(s), &list); err == nil {
			*p = list
			return nil
		}
		// Python repr of a list, e.g. "['social_media', 'blog']"
		s = strings.Trim(s, "[]")
	}

	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.Trim(strings.TrimSpace(part), `'"`)
		if part != "" {
			out = append(out, part)
		}
	}
	*p = out
	return nil
}

// User is the identity record cached by a session. Fields the portal does
// not model are kept in Extra so that merges and round trips through the
// store never drop server-sent profile data.
type User struct {
	ID               UserID           `json:"id"`
	Username         string           `json:"username"`
	Email            string           `json:"email,omitempty"`
	FirstName        string           `json:"first_name,omitempty"`
	LastName         string           `json:"last_name,omitempty"`
	Role             Role             `json:"role"`
	Country          string           `json:"country,omitempty"`
	City             string           `json:"city,omitempty"`
	PromotionMethods PromotionMethods `json:"promotion_methods,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// userFields mirrors User without its methods so encoding/json does not recurse.
type userFields User

var knownUserKeys = []string{
	"id", "username", "email", "first_name", "last_name",
	"role", "country", "city", "promotion_methods",
}

func (u User) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(userFields(u))
	if err != nil {
		return nil, err
	}
	if len(u.Extra) == 0 {
		return known, nil
	}

	fields := make(map[string]json.RawMessage, len(u.Extra)+len(knownUserKeys))
	for k, v := range u.Extra {
		fields[k] = v
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(known, &decoded); err != nil {
		return nil, err
	}
	for k, v := range decoded {
		fields[k] = v
	}
	return json.Marshal(fields)
}

func (u *User) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("user: %w", err)
	}

	var known userFields
	if err := json.Unmarshal(b, &known); err != nil {
		return fmt.Errorf("user: %w", err)
	}
	for _, k := range knownUserKeys {
		delete(fields, k)
	}
	if len(fields) > 0 {
		known.Extra = fields
	} else {
		known.Extra = nil
	}

	*u = User(known)
	return nil
}

// Clone returns a deep copy of u. A nil receiver yields nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.PromotionMethods != nil {
		c.PromotionMethods = append(PromotionMethods(nil), u.PromotionMethods...)
	}
	if u.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(u.Extra))
		for k, v := range u.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

// Merge shallow-merges fields over u and returns the result; u is not
// modified. A nil receiver merges over an empty user.
func (u *User) Merge(fields map[string]json.RawMessage) (*User, error) {
	base := map[string]json.RawMessage{}
	if u != nil {
		b, err := json.Marshal(u)
		if err != nil {
			return nil, fmt.Errorf("merge user: %w", err)
		}
		if err := json.Unmarshal(b, &base); err != nil {
			return nil, fmt.Errorf("merge user: %w", err)
		}
	}
	for k, v := range fields {
		base[k] = v
	}

	b, err := json.Marshal(base)
	if err != nil {
		return nil, fmt.Errorf("merge user: %w", err)
	}
	var merged User
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, fmt.Errorf("merge user: %w", err)
	}
	return &merged, nil
}

// RawFields encodes each value of patch so it can be passed to Merge.
func RawFields(patch map[string]any) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(patch))
	for k, v := range patch {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = b
	}
	return out, nil
}
