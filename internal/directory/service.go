package directory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

const (
	loginTokenBytes = 24
	maxTokenLength  = 128

	defaultPageSize = 50
	maxPageSize     = 200
)

// Service manages centers, end users and staff profiles.
type Service struct {
	repo     Repository
	validate *validator.Validate
	// clock is injectable for deterministic tests.
	clock func() time.Time
	// newToken is injectable so tests can force token collisions.
	newToken func() (string, error)

	defaultTimezone string
}

func NewService(repo Repository, defaultTimezone string) *Service {
	return &Service{
		repo:            repo,
		validate:        validator.New(),
		clock:           time.Now,
		newToken:        GenerateLoginToken,
		defaultTimezone: defaultTimezone,
	}
}

// GenerateLoginToken returns 24 random bytes, hex encoded.
func GenerateLoginToken() (string, error) {
	b := make([]byte, loginTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate login token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}

/* ===================== CENTERS ===================== */

func (s *Service) CreateCenter(ctx context.Context, in CenterInput) (Center, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Timezone = strings.TrimSpace(in.Timezone)
	if err := s.check(in); err != nil {
		return Center{}, err
	}
	if in.Timezone == "" {
		in.Timezone = s.defaultTimezone
	}

	c := Center{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Timezone:  in.Timezone,
		Address:   strings.TrimSpace(in.Address),
		Phone:     strings.TrimSpace(in.Phone),
		CreatedAt: s.clock().UTC(),
	}
	if err := s.repo.InsertCenter(ctx, c); err != nil {
		return Center{}, fmt.Errorf("insert center: %w", err)
	}
	return c, nil
}

func (s *Service) UpdateCenter(ctx context.Context, id string, p CenterPatch) (Center, error) {
	if err := s.check(p); err != nil {
		return Center{}, err
	}
	c, err := s.repo.GetCenter(ctx, id)
	if err != nil {
		return Center{}, err
	}
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Timezone != nil {
		c.Timezone = strings.TrimSpace(*p.Timezone)
	}
	if p.Address != nil {
		c.Address = strings.TrimSpace(*p.Address)
	}
	if p.Phone != nil {
		c.Phone = strings.TrimSpace(*p.Phone)
	}
	if c.Name == "" {
		return Center{}, fmt.Errorf("%w: name required", ErrInvalidArgument)
	}
	if err := s.repo.UpdateCenter(ctx, c); err != nil {
		return Center{}, err
	}
	return c, nil
}

func (s *Service) DeleteCenter(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	return s.repo.DeleteCenter(ctx, id)
}

func (s *Service) GetCenter(ctx context.Context, id string) (Center, error) {
	if id == "" {
		return Center{}, ErrNotFound
	}
	return s.repo.GetCenter(ctx, id)
}

func (s *Service) ListCenters(ctx context.Context) ([]Center, error) {
	return s.repo.ListCenters(ctx)
}

/* ===================== USERS ===================== */

func (s *Service) CreateUser(ctx context.Context, in UserInput) (User, error) {
	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.check(in); err != nil {
		return User{}, err
	}

	tok, err := s.newToken()
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:         uuid.NewString(),
		FullName:   in.FullName,
		LoginToken: tok,
		CenterID:   in.CenterID,
		CreatedAt:  s.clock().UTC(),
	}
	if err := s.repo.InsertUser(ctx, u); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, id string, p UserPatch) (User, error) {
	if err := s.check(p); err != nil {
		return User{}, err
	}
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if p.FullName != nil {
		u.FullName = strings.TrimSpace(*p.FullName)
	}
	if p.CenterID != nil {
		u.CenterID = *p.CenterID
	}
	if u.FullName == "" {
		return User{}, fmt.Errorf("%w: full_name required", ErrInvalidArgument)
	}
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// RegenerateToken replaces the user's login token, invalidating printed QR codes.
func (s *Service) RegenerateToken(ctx context.Context, id string) (User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	tok, err := s.newToken()
	if err != nil {
		return User{}, err
	}
	u.LoginToken = tok
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidArgument
	}
	return s.repo.DeleteUser(ctx, id)
}

func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, ErrNotFound
	}
	return s.repo.GetUser(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context, f UserFilter) ([]User, error) {
	if f.Limit <= 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	return s.repo.ListUsers(ctx, f)
}

// AccountByToken resolves a login token. Empty or oversized tokens are
// reported as ErrNotFound without touching storage.
func (s *Service) AccountByToken(ctx context.Context, token string) (Account, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > maxTokenLength {
		return Account{}, ErrNotFound
	}
	return s.repo.AccountByToken(ctx, token)
}

/* ===================== PROFILES ===================== */

func (s *Service) CreateProfile(ctx context.Context, in ProfileInput) (Profile, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.check(in); err != nil {
		return Profile{}, err
	}
	if in.Role == "manager" && in.CenterID == "" {
		return Profile{}, fmt.Errorf("%w: managers need a center", ErrInvalidArgument)
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}

	p := Profile{
		ID:        in.ID,
		Email:     in.Email,
		FullName:  in.FullName,
		Role:      in.Role,
		CenterID:  in.CenterID,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.repo.InsertProfile(ctx, p); err != nil {
		return Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	return p, nil
}

func (s *Service) UpdateProfile(ctx context.Context, id string, in ProfilePatch) (Profile, error) {
	if err := s.check(in); err != nil {
		return Profile{}, err
	}
	p, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if in.FullName != nil {
		p.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Role != nil {
		p.Role = *in.Role
	}
	if in.CenterID != nil {
		p.CenterID = *in.CenterID
	}
	if p.Role == "manager" && p.CenterID == "" {
		return Profile{}, fmt.Errorf("%w: managers need a center", ErrInvalidArgument)
	}
	if err := s.repo.UpdateProfile(ctx, p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *Service) GetProfile(ctx context.Context, id string) (Profile, error) {
	if id == "" {
		return Profile{}, ErrNotFound
	}
	return s.repo.GetProfile(ctx, id)
}

func (s *Service) ListProfiles(ctx context.Context) ([]Profile, error) {
	return s.repo.ListProfiles(ctx)
}

// IsNotFound is a small helper for handlers mapping directory errors.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
