package models

import "time"

// UserRole tags which variant of user a record represents.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleVolunteer UserRole = "VOLUNTEER"
	RoleRequester UserRole = "REQUESTER"
)

// Valid reports whether the role is known.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleVolunteer, RoleRequester:
		return true
	}
	return false
}

// User is a directory entry. Available and Rating are only meaningful for volunteers.
type User struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Role      UserRole  `db:"role" json:"role"`
	Verified  bool      `db:"verified" json:"verified"`
	Available *bool     `db:"available" json:"available,omitempty"`
	Rating    *float64  `db:"rating" json:"rating,omitempty"`
	Location  *Location `db:"location" json:"location"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsAvailable treats an unset availability flag as available.
func (u *User) IsAvailable() bool {
	return u.Available == nil || *u.Available
}

// Dispatchable reports whether the user counts towards the all-declined rule.
func (u *User) Dispatchable() bool {
	return u.Role == RoleVolunteer && u.Verified && u.IsAvailable()
}

// Clone returns a deep copy.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Available != nil {
		v := *u.Available
		c.Available = &v
	}
	if u.Rating != nil {
		v := *u.Rating
		c.Rating = &v
	}
	if u.Location != nil {
		loc := *u.Location
		c.Location = &loc
	}
	return &c
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role     *UserRole
	Verified *bool
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
