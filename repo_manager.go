package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

const pgUniqueViolation = "23505"

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	Users() Users
	RefreshTokens() RefreshTokens
	PasswordResets() PasswordResets
	MemberCodes() MemberCodes
	// RunInTx runs fn with a manager whose repositories share a transaction.
	// The transaction is rolled back when fn returns an error.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx RepositoryManager) error) error
}

type mngr struct {
	db             bun.IDB
	users          Users
	refreshTokens  RefreshTokens
	passwordResets PasswordResets
	memberCodes    MemberCodes
}

// NewRepositoryManager creates bun backed repositories over db
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return newManager(db)
}

func newManager(db bun.IDB) *mngr {
	return &mngr{
		db:             db,
		users:          NewUsersRepository(db),
		refreshTokens:  NewRefreshTokensRepository(db),
		passwordResets: NewPasswordResetsRepository(db),
		memberCodes:    NewMemberCodesRepository(db),
	}
}

func (m *mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}
	if m.refreshTokens == nil {
		return errors.New("repository refreshTokens should be initialized")
	}
	if m.passwordResets == nil {
		return errors.New("repository passwordResets should be initialized")
	}
	if m.memberCodes == nil {
		return errors.New("repository memberCodes should be initialized")
	}
	return nil
}

// MustValidate panics if the manager is not fully wired
func MustValidate(m RepositoryManager) {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *mngr) RunInTx(ctx context.Context, fn func(ctx context.Context, tx RepositoryManager) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, newManager(tx))
		})
	}
}

func (m *mngr) Users() Users {
	return m.users
}

func (m *mngr) RefreshTokens() RefreshTokens {
	return m.refreshTokens
}

func (m *mngr) PasswordResets() PasswordResets {
	return m.passwordResets
}

func (m *mngr) MemberCodes() MemberCodes {
	return m.memberCodes
}

func storeError(err error, message string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		e := newError(ErrRecordNotFound)
		e.Source = err
		return e
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		e := newError(ErrRecordConflict, map[string]any{
			"constraint": pgErr.ConstraintName,
		})
		e.Source = err
		return e
	}

	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
