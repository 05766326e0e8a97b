package directory

import (
	"context"
	"errors"
)

var (
	ErrNotFound        = errors.New("directory: not found")
	ErrCenterInUse     = errors.New("directory: center has users")
	ErrDuplicate       = errors.New("directory: duplicate")
	ErrInvalidArgument = errors.New("directory: invalid argument")
)

// Repository is the persistence contract for centers, users and staff profiles.
type Repository interface {
	InsertCenter(ctx context.Context, c Center) error
	UpdateCenter(ctx context.Context, c Center) error
	// DeleteCenter fails with ErrCenterInUse while users are assigned to it.
	DeleteCenter(ctx context.Context, id string) error
	GetCenter(ctx context.Context, id string) (Center, error)
	ListCenters(ctx context.Context) ([]Center, error)

	InsertUser(ctx context.Context, u User) error
	UpdateUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id string) error
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context, f UserFilter) ([]User, error)
	AccountByToken(ctx context.Context, token string) (Account, error)

	InsertProfile(ctx context.Context, p Profile) error
	UpdateProfile(ctx context.Context, p Profile) error
	GetProfile(ctx context.Context, id string) (Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
}
