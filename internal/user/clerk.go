package user

import "encoding/json"

// ClerkWebhookEvent is the envelope Clerk posts to the user webhook.
type ClerkWebhookEvent struct {
	Type   string          `json:"type"`
	Object string          `json:"object"`
	Data   json.RawMessage `json:"data"`
}

type ClerkEmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
	Verification struct {
		Status string `json:"status"`
	} `json:"verification"`
}

type ClerkUserData struct {
	ID                    string              `json:"id"`
	Username              string              `json:"username"`
	FirstName             string              `json:"first_name"`
	LastName              string              `json:"last_name"`
	ImageURL              string              `json:"image_url"`
	ProfileImageURL       string              `json:"profile_image_url"`
	PrimaryEmailAddressID string              `json:"primary_email_address_id"`
	EmailAddresses        []ClerkEmailAddress `json:"email_addresses"`
}

// PrimaryEmail returns the primary address, falling back to the first one.
func (d ClerkUserData) PrimaryEmail() (ClerkEmailAddress, bool) {
	for _, e := range d.EmailAddresses {
		if e.ID == d.PrimaryEmailAddressID {
			return e, true
		}
	}
	if len(d.EmailAddresses) > 0 {
		return d.EmailAddresses[0], true
	}
	return ClerkEmailAddress{}, false
}

// DisplayName prefers the Clerk username, then first and last name.
func (d ClerkUserData) DisplayName() string {
	if d.Username != "" {
		return d.Username
	}
	return d.FirstName + d.LastName
}

func (d ClerkUserData) Image() string {
	if d.ImageURL != "" {
		return d.ImageURL
	}
	return d.ProfileImageURL
}
