package model

// User is the legacy flat entity of earlier board variants. It shares the
// normalized-store shape with Order but carries its own coordinates.
type User struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Active    bool    `json:"active"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// Key returns the store identity of the user.
func (u User) Key() int64 { return u.ID }
