package models

import "time"

// Profile is the signed-in user's own card.
type Profile struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	FullName    string    `json:"full_name,omitempty"`
	Title       string    `json:"title,omitempty"`
	Company     string    `json:"company,omitempty"`
	Designation string    `json:"designation,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	WhatsApp    string    `json:"whatsapp,omitempty"`
	LinkedIn    string    `json:"linkedin,omitempty"`
	Website     string    `json:"website,omitempty"`
	About       string    `json:"about,omitempty"`
	PhotoURL    string    `json:"photo_url,omitempty"`
	LogoURL     string    `json:"logo_url,omitempty"`
	Slug        string    `json:"slug,omitempty"`
	CardDesign  string    `json:"card_design,omitempty"`
	CardName    string    `json:"card_name,omitempty"`
	Layout      string    `json:"layout,omitempty"`
	Plan        string    `json:"plan,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
