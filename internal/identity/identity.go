// Package identity derives the active signer/contact identity from the
// dual-role point-of-contact and signer fields.
package identity

import (
	"strings"

	"github.com/parisxmas/OxiDB/OxiLeads/internal/fields"
	"github.com/parisxmas/OxiDB/OxiLeads/internal/models"
)

type role struct {
	active, sign, poc fields.Field
}

var roles = []role{
	{fields.FirstName, fields.FirstNameSign, fields.FirstNamePOC},
	{fields.LastName, fields.LastNameSign, fields.LastNamePOC},
	{fields.Title, fields.TitleSign, fields.TitlePOC},
	{fields.Email, fields.EmailSign, fields.EmailPOC},
	{fields.MobilePhone, fields.MobilePhoneSign, fields.MobilePhonePOC},
	{fields.LinkedIn, fields.LinkedInSign, fields.LinkedInPOC},
}

// Defaults are the stand-ins used when no name or email can be resolved.
type Defaults struct {
	FirstName string
	LastName  string
	Email     string
}

// DefaultDefaults are non-identifying placeholders.
var DefaultDefaults = Defaults{
	FirstName: "Contact",
	LastName:  "Person",
	Email:     "contact@example.com",
}

// Resolver fills the active identity fields.
type Resolver struct {
	// Strict makes a missing first name, last name or email a
	// ValidationError instead of substituting Defaults.
	Strict   bool
	Defaults Defaults
}

// NewResolver returns a lenient resolver with the given defaults; zero
// values fall back to DefaultDefaults.
func NewResolver(strict bool, d Defaults) *Resolver {
	if d.FirstName == "" {
		d.FirstName = DefaultDefaults.FirstName
	}
	if d.LastName == "" {
		d.LastName = DefaultDefaults.LastName
	}
	if d.Email == "" {
		d.Email = DefaultDefaults.Email
	}
	return &Resolver{Strict: strict, Defaults: d}
}

// Resolve returns a copy of in with first_name, last_name, title, email,
// mobile_phone, linkedin and full_name set. Priority per field is signer,
// then point of contact, then a value already present under the active
// name.
func (r *Resolver) Resolve(in fields.Canonical) (fields.Canonical, error) {
	out := in.Clone()
	for _, ro := range roles {
		switch {
		case in.Get(ro.sign) != "":
			out[ro.active] = in.Get(ro.sign)
		case in.Get(ro.poc) != "":
			out[ro.active] = in.Get(ro.poc)
		default:
			out[ro.active] = in.Get(ro.active)
		}
	}

	missing := map[fields.Field]string{
		fields.FirstName: r.Defaults.FirstName,
		fields.LastName:  r.Defaults.LastName,
		fields.Email:     r.Defaults.Email,
	}
	for _, f := range []fields.Field{fields.FirstName, fields.LastName, fields.Email} {
		if out[f] != "" {
			continue
		}
		if r.Strict {
			return nil, &models.ValidationError{Field: string(f), Msg: "no signer or point-of-contact value"}
		}
		out[f] = missing[f]
	}

	out[fields.FullName] = strings.TrimSpace(out[fields.FirstName] + " " + out[fields.LastName])
	return out, nil
}
