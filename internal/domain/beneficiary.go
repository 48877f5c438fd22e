package domain

import "time"

// Beneficiary is a thin read model over the identity system's beneficiary
// record. The core only needs existence checks and display data; account
// management lives elsewhere.
type Beneficiary struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
