package metadata

import "encoding/json"

// User is the acting user exposed to @agent mappings. The named fields are
// an explicit enumeration; anything else arrives through Extra and is only
// kept when it survives a JSON round-trip.
type User struct {
	ID          string `json:"id"`
	FullName    string `json:"fullname"`
	GivenName   string `json:"given_name,omitempty"`
	FamilyName  string `json:"family_name,omitempty"`
	Email       string `json:"email,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
	AbsoluteURL string `json:"absolute_url,omitempty"`

	Extra map[string]any `json:"extra,omitempty"`
}

// SerializableAttributes flattens the user into the attribute map consumed
// by @agent sources. Extra attributes that cannot be JSON-encoded are
// dropped rather than failing the generation.
func (u *User) SerializableAttributes() map[string]any {
	attrs := map[string]any{}
	if u == nil {
		return attrs
	}

	named := *u
	named.Extra = nil
	raw, err := json.Marshal(&named)
	if err != nil {
		return attrs
	}
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return attrs
	}

	for name, value := range u.Extra {
		encoded, err := json.Marshal(value)
		if err != nil {
			continue
		}
		var decoded any
		if err := json.Unmarshal(encoded, &decoded); err != nil {
			continue
		}
		attrs[name] = decoded
	}
	return attrs
}
