package directory

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryRepo is an in-memory directory used by tests and local runs.
type MemoryRepo struct {
	mu       sync.Mutex
	centers  map[string]Center
	users    map[string]User
	profiles map[string]Profile
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		centers:  map[string]Center{},
		users:    map[string]User{},
		profiles: map[string]Profile{},
	}
}

func (r *MemoryRepo) InsertCenter(ctx context.Context, c Center) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.centers[c.ID]; ok {
		return ErrDuplicate
	}
	r.centers[c.ID] = c
	return nil
}

func (r *MemoryRepo) UpdateCenter(ctx context.Context, c Center) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.centers[c.ID]; !ok {
		return ErrNotFound
	}
	r.centers[c.ID] = c
	return nil
}

func (r *MemoryRepo) DeleteCenter(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.centers[id]; !ok {
		return ErrNotFound
	}
	for _, u := range r.users {
		if u.CenterID == id {
			return ErrCenterInUse
		}
	}
	delete(r.centers, id)
	return nil
}

func (r *MemoryRepo) GetCenter(ctx context.Context, id string) (Center, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.centers[id]
	if !ok {
		return Center{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ListCenters(ctx context.Context) ([]Center, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Center, 0, len(r.centers))
	for _, c := range r.centers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepo) InsertUser(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkUserLocked(u); err != nil {
		return err
	}
	if _, ok := r.users[u.ID]; ok {
		return ErrDuplicate
	}
	r.users[u.ID] = u
	return nil
}

func (r *MemoryRepo) UpdateUser(ctx context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.ID]; !ok {
		return ErrNotFound
	}
	if err := r.checkUserLocked(u); err != nil {
		return err
	}
	r.users[u.ID] = u
	return nil
}

// checkUserLocked mirrors the unique token and center foreign key constraints.
func (r *MemoryRepo) checkUserLocked(u User) error {
	if u.CenterID != "" {
		if _, ok := r.centers[u.CenterID]; !ok {
			return ErrNotFound
		}
	}
	for _, other := range r.users {
		if other.ID != u.ID && other.LoginToken == u.LoginToken {
			return ErrDuplicate
		}
	}
	return nil
}

func (r *MemoryRepo) DeleteUser(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryRepo) GetUser(ctx context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepo) ListUsers(ctx context.Context, f UserFilter) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	search := strings.ToLower(f.Search)
	out := make([]User, 0)
	for _, u := range r.users {
		if f.CenterID != "" && u.CenterID != f.CenterID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(u.FullName), search) {
			continue
		}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if f.Offset >= len(out) {
		return []User{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) AccountByToken(ctx context.Context, token string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.LoginToken != token {
			continue
		}
		a := Account{User: u}
		if c, ok := r.centers[u.CenterID]; ok {
			a.Timezone = c.Timezone
		}
		return a, nil
	}
	return Account{}, ErrNotFound
}

func (r *MemoryRepo) InsertProfile(ctx context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, other := range r.profiles {
		if other.ID == p.ID || strings.EqualFold(other.Email, p.Email) {
			return ErrDuplicate
		}
	}
	r.profiles[p.ID] = p
	return nil
}

func (r *MemoryRepo) UpdateProfile(ctx context.Context, p Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[p.ID]; !ok {
		return ErrNotFound
	}
	r.profiles[p.ID] = p
	return nil
}

func (r *MemoryRepo) GetProfile(ctx context.Context, id string) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (r *MemoryRepo) ListProfiles(ctx context.Context) ([]Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
