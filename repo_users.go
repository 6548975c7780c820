package auth

import (
	"context"

	"github.com/uptrace/bun"
)

// Users stores user accounts
type Users interface {
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, record *User) (*User, error)
	Update(ctx context.Context, record *User) (*User, error)
}

type users struct {
	db bun.IDB
}

var _ Users = (*users)(nil)

// NewUsersRepository creates a bun backed Users store
func NewUsersRepository(db bun.IDB) Users {
	return &users{db: db}
}

func (r *users) GetByID(ctx context.Context, id string) (*User, error) {
	record := &User{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, storeError(err, "failed to get user by id")
	}
	return record, nil
}

func (r *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	record := &User{}
	err := r.db.NewSelect().
		Model(record).
		Where("?TableAlias.email_address = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, storeError(err, "failed to get user by email")
	}
	return record, nil
}

func (r *users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	exists, err := r.db.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email_address = ?", NormalizeEmail(email)).
		Exists(ctx)
	if err != nil {
		return false, storeError(err, "failed to check email")
	}
	return exists, nil
}

func (r *users) Create(ctx context.Context, record *User) (*User, error) {
	record.EmailAddress = NormalizeEmail(record.EmailAddress)
	if _, err := r.db.NewInsert().Model(record).Returning("*").Exec(ctx); err != nil {
		return nil, storeError(err, "failed to create user")
	}
	return record, nil
}

func (r *users) Update(ctx context.Context, record *User) (*User, error) {
	res, err := r.db.NewUpdate().
		Model(record).
		WherePK().
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, storeError(err, "failed to update user")
	}
	ok, err := affectedOne(res)
	if err != nil {
		return nil, storeError(err, "failed to update user")
	}
	if !ok {
		return nil, newError(ErrRecordNotFound)
	}
	return record, nil
}
