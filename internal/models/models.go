package models

import "time"

// Profile is the central directory entity. A nil ExternalIdentityID means the
// profile was seeded/imported and is claimable by any identity without one.
type Profile struct {
	ID                 string  `json:"id"`
	ExternalIdentityID *string `json:"external_identity_id,omitempty"`
	Slug               string  `json:"slug"`

	FullName   string `json:"full_name"`
	PhotoURL   string `json:"photo_url"`
	Bio        string `json:"bio"`
	Background string `json:"background"`
	Country    string `json:"country"`
	City       string `json:"city"`

	WorkingOn   *string `json:"working_on,omitempty"`
	LookingFor  *string `json:"looking_for,omitempty"`
	AskMeAbout  *string `json:"ask_me_about,omitempty"`
	LinkedinURL *string `json:"linkedin_url,omitempty"`
	TwitterURL  *string `json:"twitter_url,omitempty"`
	GithubURL   *string `json:"github_url,omitempty"`
	WebsiteURL  *string `json:"website_url,omitempty"`

	CodeID      *int      `json:"code_id,omitempty"`
	IsPublished bool      `json:"is_published"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Claimed reports whether the profile is owned by an identity.
func (p *Profile) Claimed() bool {
	return p.ExternalIdentityID != nil && *p.ExternalIdentityID != ""
}

// ProfileFields carries the mutable, user-supplied fields for create/update.
type ProfileFields struct {
	Slug        string  `json:"slug"`
	FullName    string  `json:"full_name"`
	PhotoURL    string  `json:"photo_url"`
	Bio         string  `json:"bio"`
	Background  string  `json:"background"`
	Country     string  `json:"country"`
	City        string  `json:"city"`
	WorkingOn   *string `json:"working_on,omitempty"`
	LookingFor  *string `json:"looking_for,omitempty"`
	AskMeAbout  *string `json:"ask_me_about,omitempty"`
	LinkedinURL *string `json:"linkedin_url,omitempty"`
	TwitterURL  *string `json:"twitter_url,omitempty"`
	GithubURL   *string `json:"github_url,omitempty"`
	WebsiteURL  *string `json:"website_url,omitempty"`
}

// IdentityPatch is the subset of fields the identity provider is allowed to
// overwrite on a profile. Nil fields are left untouched.
type IdentityPatch struct {
	FullName *string
	PhotoURL *string
}

func (p IdentityPatch) Empty() bool {
	return (p.FullName == nil || *p.FullName == "") &&
		(p.PhotoURL == nil || *p.PhotoURL == "")
}

// Project belongs to exactly one profile and is cascade-deleted with it.
type Project struct {
	ID          string    `json:"id"`
	ProfileID   string    `json:"profile_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         *string   `json:"url,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IdentityUpdateEvent is the normalized form of a provider "user.updated"
// webhook payload.
type IdentityUpdateEvent struct {
	EventID    string
	IdentityID string
	FirstName  string
	LastName   string
	PhotoURL   string
	ObservedAt time.Time
}

// FullName joins the non-empty name parts with a single space.
func (e IdentityUpdateEvent) FullName() string {
	switch {
	case e.FirstName != "" && e.LastName != "":
		return e.FirstName + " " + e.LastName
	case e.FirstName != "":
		return e.FirstName
	default:
		return e.LastName
	}
}
