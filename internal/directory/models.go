package directory

import "time"

// Center is a care center. Every user belongs to at most one center and call
// quotas are bucketed by the center's local day.
type Center struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Timezone  string    `json:"timezone" db:"timezone"`
	Address   string    `json:"address,omitempty" db:"address"`
	Phone     string    `json:"phone,omitempty" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// User is an end user who logs in with an opaque token (QR code or link).
// LoginToken is the only credential and must never be logged in full.
type User struct {
	ID         string    `json:"id" db:"id"`
	FullName   string    `json:"full_name" db:"full_name"`
	LoginToken string    `json:"login_token" db:"login_token"`
	CenterID   string    `json:"center_id,omitempty" db:"center_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Account is a user resolved from a login token together with its center timezone.
// Timezone is empty when the user has no center or the center has none set.
type Account struct {
	User
	Timezone string `json:"timezone,omitempty"`
}

// Profile is a staff member (admin or manager) of the dashboard.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	FullName  string    `json:"full_name" db:"full_name"`
	Role      string    `json:"role" db:"role"`
	CenterID  string    `json:"center_id,omitempty" db:"center_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type CenterInput struct {
	Name     string `json:"name" validate:"required,max=200"`
	Timezone string `json:"timezone" validate:"omitempty,timezone"`
	Address  string `json:"address" validate:"max=500"`
	Phone    string `json:"phone" validate:"max=50"`
}

type CenterPatch struct {
	Name     *string `json:"name" validate:"omitempty,min=1,max=200"`
	Timezone *string `json:"timezone" validate:"omitempty,timezone"`
	Address  *string `json:"address" validate:"omitempty,max=500"`
	Phone    *string `json:"phone" validate:"omitempty,max=50"`
}

type UserInput struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	CenterID string `json:"center_id" validate:"omitempty,uuid"`
}

type UserPatch struct {
	FullName *string `json:"full_name" validate:"omitempty,min=1,max=200"`
	CenterID *string `json:"center_id" validate:"omitempty,uuid"`
}

type UserFilter struct {
	CenterID string
	Search   string
	Limit    int
	Offset   int
}

type ProfileInput struct {
	ID       string `json:"id" validate:"omitempty,uuid"`
	Email    string `json:"email" validate:"required,email"`
	FullName string `json:"full_name" validate:"max=200"`
	Role     string `json:"role" validate:"required,oneof=admin manager"`
	CenterID string `json:"center_id" validate:"omitempty,uuid"`
}

type ProfilePatch struct {
	FullName *string `json:"full_name" validate:"omitempty,max=200"`
	Role     *string `json:"role" validate:"omitempty,oneof=admin manager"`
	CenterID *string `json:"center_id" validate:"omitempty,uuid"`
}
