package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tsacademy/academia/core"
	"github.com/tsacademy/academia/core/user"
)

type identityRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Email        string         `db:"email"`
	Role         string         `db:"role"`
	ClassID      sql.NullString `db:"class_id"`
	IsActive     bool           `db:"is_active"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    sql.NullTime   `db:"last_login"`
}

func (r identityRow) identity() user.Identity {
	idt := user.Identity{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         r.Role,
		ClassID:      r.ClassID.String,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastLogin.Valid {
		idt.LastLogin = r.LastLogin.Time
	}
	return idt
}

func rowFromIdentity(idt user.Identity) identityRow {
	row := identityRow{
		ID:           idt.ID,
		Name:         idt.Name,
		Email:        idt.Email,
		Role:         idt.Role,
		IsActive:     idt.IsActive,
		PasswordHash: idt.PasswordHash,
		CreatedAt:    idt.CreatedAt,
		UpdatedAt:    idt.UpdatedAt,
	}
	if idt.ClassID != "" {
		row.ClassID = sql.NullString{String: idt.ClassID, Valid: true}
	}
	if !idt.LastLogin.IsZero() {
		row.LastLogin = sql.NullTime{Time: idt.LastLogin, Valid: true}
	}
	return row
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excluded ...user.Identity) error {
	query := "SELECT COUNT(*) FROM users WHERE email = ?"
	args := []interface{}{email}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, idt := range excluded {
			ids = append(ids, idt.ID)
		}
		query += " AND id NOT IN (?)"
		args = append(args, ids)
	}

	q, qargs, err := sqlx.In(query, args...)
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	var count int
	if err = repo.db.GetContext(ctx, &count, repo.db.Rebind(q), qargs...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateIdentity(ctx context.Context, idt user.Identity) (user.Identity, error) {
	if idt.ID == "" {
		idt.ID = uuid.NewString()
	}
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO users (id, name, email, role, class_id, is_active, password_hash, created_at, updated_at, last_login)
		 VALUES (:id, :name, :email, :role, :class_id, :is_active, :password_hash, :created_at, :updated_at, :last_login)`,
		rowFromIdentity(idt),
	)
	if err != nil {
		return user.Identity{}, errors.Wrap(err, "creating identity")
	}
	return idt, nil
}

func (repo *userRepository) GetIdentityByID(ctx context.Context, id string) (user.Identity, error) {
	var row identityRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT * FROM users WHERE id = ?"), id)
	if err == sql.ErrNoRows {
		return user.Identity{}, user.ErrNotFound
	}
	if err != nil {
		return user.Identity{}, errors.Wrap(err, "getting identity by id")
	}
	return row.identity(), nil
}

func (repo *userRepository) GetIdentityByEmail(ctx context.Context, email string) (user.Identity, error) {
	var row identityRow
	err := repo.db.GetContext(ctx, &row, repo.db.Rebind("SELECT * FROM users WHERE email = ?"), email)
	if err == sql.ErrNoRows {
		return user.Identity{}, user.ErrNotFound
	}
	if err != nil {
		return user.Identity{}, errors.Wrap(err, "getting identity by email")
	}
	return row.identity(), nil
}

func buildUserWhere(filter user.QueryFilter) *whereBuilder {
	wb := new(whereBuilder)
	if filter.Search != "" {
		kw := "%" + filter.Search + "%"
		wb.add("(name ILIKE ? OR email ILIKE ?)", kw, kw)
	}
	if filter.Role != "" {
		wb.add("role = ?", filter.Role)
	}
	if filter.ClassID != "" {
		wb.add("class_id = ?", filter.ClassID)
	}
	if filter.IsActive != nil {
		wb.add("is_active = ?", *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		wb.add("created_at >= ?", filter.CreatedFrom.UTC())
	}
	if !filter.CreatedTo.IsZero() {
		wb.add("created_at <= ?", filter.CreatedTo.UTC())
	}
	return wb
}

func (repo *userRepository) FilterIdentities(ctx context.Context, filter user.QueryFilter, opts core.QueryOptions) ([]user.Identity, error) {
	wb := buildUserWhere(filter)
	var rows []identityRow
	q := repo.db.Rebind("SELECT * FROM users" + wb.clause() + optsClause(opts))
	if err := repo.db.SelectContext(ctx, &rows, q, wb.args...); err != nil {
		return nil, errors.Wrap(err, "filtering identities")
	}
	idts := make([]user.Identity, 0, len(rows))
	for _, row := range rows {
		idts = append(idts, row.identity())
	}
	return idts, nil
}

func (repo *userRepository) CountIdentities(ctx context.Context, filter user.QueryFilter) (int, error) {
	wb := buildUserWhere(filter)
	var count int
	q := repo.db.Rebind("SELECT COUNT(*) FROM users" + wb.clause())
	if err := repo.db.GetContext(ctx, &count, q, wb.args...); err != nil {
		return 0, errors.Wrap(err, "counting identities")
	}
	return count, nil
}

// UpdateIdentity only saves set fields; empty fields keep their stored value.
func (repo *userRepository) UpdateIdentity(ctx context.Context, idt user.Identity, isActive *bool) (user.Identity, error) {
	wb := new(whereBuilder) // reused as a SET accumulator
	if idt.Name != "" {
		wb.add("name = ?", idt.Name)
	}
	if idt.Email != "" {
		wb.add("email = ?", idt.Email)
	}
	if idt.ClassID != "" {
		wb.add("class_id = ?", idt.ClassID)
	}
	if idt.PasswordHash != nil {
		wb.add("password_hash = ?", idt.PasswordHash)
	}
	if isActive != nil {
		wb.add("is_active = ?", *isActive)
	}
	wb.add("updated_at = ?", idt.UpdatedAt)

	q := "UPDATE users SET " + strings.Join(wb.conds, ", ") + " WHERE id = ?"
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), append(wb.args, idt.ID)...)
	if err != nil {
		return user.Identity{}, errors.Wrap(err, "updating identity")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.Identity{}, user.ErrNotFound
	}
	return repo.GetIdentityByID(ctx, idt.ID)
}

func (repo *userRepository) DeleteIdentitiesByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = repo.db.ExecContext(ctx, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "deleting identities")
	}
	return nil
}

func (repo *userRepository) SetLastLogin(ctx context.Context, idt user.Identity) (user.Identity, error) {
	now := time.Now().UTC()
	q := repo.db.Rebind("UPDATE users SET last_login = ? WHERE id = ?")
	if _, err := repo.db.ExecContext(ctx, q, now, idt.ID); err != nil {
		return user.Identity{}, errors.Wrap(err, "setting last login")
	}
	idt.LastLogin = now
	return idt, nil
}
