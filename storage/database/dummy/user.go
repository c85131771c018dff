package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.Identity {
	idts := make([]user.Identity, 0, len(repo.db.table))
	for _, idt := range repo.db.table {
		idts = append(idts, *idt)
	}
	return idts
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excluded ...user.Identity) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, idt := range repo.query() {
		if idt.Email == email && !isExcluded(idt, excluded) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateIdentity(_ context.Context, idt user.Identity) (user.Identity, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if idt.ID == "" {
		idt.ID = uuid.NewString()
	}
	repo.db.table[idt.ID] = &idt
	return idt, nil
}

func (repo *userRepository) GetIdentityByID(_ context.Context, id string) (user.Identity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if idt, ok := repo.db.table[id]; ok {
		return *idt, nil
	}
	return user.Identity{}, user.ErrNotFound
}

func (repo *userRepository) GetIdentityByEmail(_ context.Context, email string) (user.Identity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, idt := range repo.query() {
		if idt.Email == email {
			return idt, nil
		}
	}
	return user.Identity{}, user.ErrNotFound
}

func (repo *userRepository) FilterIdentities(_ context.Context, filter user.QueryFilter, opts core.QueryOptions) ([]user.Identity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	idts := repo.query()

	// identities with search keyword matching Name or Email ?
	if filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		var filtered []user.Identity
		for _, idt := range idts {
			if strings.Contains(strings.ToLower(idt.Name), kw) ||
				strings.Contains(strings.ToLower(idt.Email), kw) {
				filtered = append(filtered, idt)
			}
		}
		idts = filtered
	}
	if filter.Role != "" {
		var filtered []user.Identity
		for _, idt := range idts {
			if idt.Role == filter.Role {
				filtered = append(filtered, idt)
			}
		}
		idts = filtered
	}
	if filter.ClassID != "" {
		var filtered []user.Identity
		for _, idt := range idts {
			if idt.ClassID == filter.ClassID {
				filtered = append(filtered, idt)
			}
		}
		idts = filtered
	}
	if filter.IsActive != nil {
		var filtered []user.Identity
		for _, idt := range idts {
			if idt.IsActive == *filter.IsActive {
				filtered = append(filtered, idt)
			}
		}
		idts = filtered
	}
	if !filter.CreatedFrom.IsZero() {
		timeUTC := filter.CreatedFrom.UTC()
		var filtered []user.Identity
		for _, idt := range idts {
			if idt.CreatedAt.Equal(timeUTC) || idt.CreatedAt.After(timeUTC) {
				filtered = append(filtered, idt)
			}
		}
		idts = filtered
	}
	if !filter.CreatedTo.IsZero() {
		timeUTC := filter.CreatedTo.UTC()
		var filtered []user.Identity
		for _, idt := range idts {
			if idt.CreatedAt.Before(timeUTC) || idt.CreatedAt.Equal(timeUTC) {
				filtered = append(filtered, idt)
			}
		}
		idts = filtered
	}

	if idts == nil {
		idts = []user.Identity{}
	}
	sortIdentities(idts, opts)
	return idts[:limitSlice(opts.Limit, len(idts))], nil
}

func (repo *userRepository) CountIdentities(ctx context.Context, filter user.QueryFilter) (int, error) {
	idts, err := repo.FilterIdentities(ctx, filter, core.QueryOptions{})
	if err != nil {
		return 0, err
	}
	return len(idts), nil
}

func (repo *userRepository) UpdateIdentity(_ context.Context, idt user.Identity, isActive *bool) (user.Identity, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	// only save set fields
	orig, ok := repo.db.table[idt.ID]
	if !ok {
		return user.Identity{}, user.ErrNotFound
	}
	if idt.Name != "" {
		orig.Name = idt.Name
	}
	if idt.Email != "" {
		orig.Email = idt.Email
	}
	if idt.ClassID != "" {
		orig.ClassID = idt.ClassID
	}
	if idt.PasswordHash != nil {
		orig.PasswordHash = idt.PasswordHash
	}
	if isActive != nil {
		orig.IsActive = *isActive
	}
	orig.UpdatedAt = idt.UpdatedAt

	repo.db.table[idt.ID] = orig
	return *orig, nil
}

func (repo *userRepository) DeleteIdentitiesByID(_ context.Context, ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for _, id := range ids {
		delete(repo.db.table, id)
	}
	return nil
}

func (repo *userRepository) SetLastLogin(_ context.Context, idt user.Identity) (user.Identity, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[idt.ID]
	if !ok {
		return user.Identity{}, user.ErrNotFound
	}
	orig.LastLogin = idt.LastLogin
	if orig.LastLogin.IsZero() {
		orig.LastLogin = nowUTC()
	}
	return *orig, nil
}

func sortIdentities(idts []user.Identity, opts core.QueryOptions) {
	// apply orderings in reverse so the first one dominates
	for i := len(opts.Ordering) - 1; i >= 0; i-- {
		ord := opts.Ordering[i]
		switch ord.Field {
		case "created_at":
			sort.SliceStable(idts, func(i, j int) bool {
				if ord.Ascending {
					return idts[i].CreatedAt.Before(idts[j].CreatedAt)
				}
				return idts[i].CreatedAt.After(idts[j].CreatedAt)
			})
		case "name":
			sort.SliceStable(idts, func(i, j int) bool {
				if ord.Ascending {
					return idts[i].Name < idts[j].Name
				}
				return idts[i].Name > idts[j].Name
			})
		}
	}
}

func isExcluded(idt user.Identity, excluded []user.Identity) bool {
	for _, ex := range excluded {
		if ex.ID == idt.ID {
			return true
		}
	}
	return false
}
