package profile

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"member-directory/internal/models"
	"member-directory/internal/slug"
)

// Field length bounds, mirrored by the directory frontend.
const (
	FullNameMin   = 2
	FullNameMax   = 100
	BioMin        = 10
	BioMax        = 120
	BackgroundMin = 2
	BackgroundMax = 50
	LocationMin   = 2
	LocationMax   = 60
	WorkingOnMax  = 200
	LookingForMax = 200
	AskMeAboutMax = 150
)

// Validate checks all field-level constraints on user-supplied profile
// fields. Returns the first violation as a *ValidationError.
func Validate(f models.ProfileFields) error {
	if err := checkLength("full_name", f.FullName, FullNameMin, FullNameMax); err != nil {
		return err
	}

	if !slug.Valid(f.Slug) {
		return &ValidationError{
			Field: "slug",
			Message: fmt.Sprintf("must be %d-%d characters of lowercase letters, numbers, and hyphens",
				slug.MinLength, slug.MaxLength),
		}
	}

	if err := checkLength("bio", f.Bio, BioMin, BioMax); err != nil {
		return err
	}
	if err := checkLength("background", f.Background, BackgroundMin, BackgroundMax); err != nil {
		return err
	}
	if err := checkLength("country", f.Country, LocationMin, LocationMax); err != nil {
		return err
	}
	if err := checkLength("city", f.City, LocationMin, LocationMax); err != nil {
		return err
	}

	if f.PhotoURL == "" {
		return &ValidationError{Field: "photo_url", Message: "is required"}
	}
	if err := checkURL("photo_url", f.PhotoURL); err != nil {
		return err
	}

	if err := checkOptionalMax("working_on", f.WorkingOn, WorkingOnMax); err != nil {
		return err
	}
	if err := checkOptionalMax("looking_for", f.LookingFor, LookingForMax); err != nil {
		return err
	}
	if err := checkOptionalMax("ask_me_about", f.AskMeAbout, AskMeAboutMax); err != nil {
		return err
	}

	for field, v := range map[string]*string{
		"linkedin_url": f.LinkedinURL,
		"twitter_url":  f.TwitterURL,
		"github_url":   f.GithubURL,
		"website_url":  f.WebsiteURL,
	} {
		if v == nil || *v == "" {
			continue
		}
		if err := checkURL(field, *v); err != nil {
			return err
		}
	}

	return nil
}

func checkLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < min {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at least %d characters", min)}
	}
	if n > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}
	}
	return nil
}

func checkOptionalMax(field string, value *string, max int) error {
	if value == nil {
		return nil
	}
	if utf8.RuneCountInString(*value) > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}
	}
	return nil
}

func checkURL(field, value string) error {
	u, err := url.Parse(value)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{Field: field, Message: "must be a valid URL"}
	}
	return nil
}
