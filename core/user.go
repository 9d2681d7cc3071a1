package core

import "time"

// User is the durable identity record created on first successful login.
// Address is the primary key; profile and preference data live elsewhere.
type User struct {
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}
