package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSContainsOrderedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(FS(), ".")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}

	assert.Equal(t, []string{
		"00001_create_users.sql",
		"00002_create_refresh_tokens.sql",
		"00003_create_password_resets.sql",
		"00004_create_member_codes.sql",
	}, names)

	for _, name := range names {
		data, err := fs.ReadFile(FS(), name)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(data), "-- +goose Up"), name)
		assert.True(t, strings.Contains(string(data), "-- +goose Down"), name)
	}
}

func TestMemberCodesAreBoundToOneUser(t *testing.T) {
	data, err := fs.ReadFile(FS(), "00004_create_member_codes.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "UNIQUE INDEX IF NOT EXISTS member_codes_user_id_key")
}

func TestPasswordResetCodesAreUnique(t *testing.T) {
	data, err := fs.ReadFile(FS(), "00003_create_password_resets.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "UNIQUE INDEX IF NOT EXISTS password_resets_code_key ON password_resets (code)")
}

func TestUpRunsFromRoot(t *testing.T) {
	orig := upContext
	t.Cleanup(func() { upContext = orig })

	var gotDir string
	upContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}

	require.NoError(t, Up(context.Background(), nil))
	assert.Equal(t, ".", gotDir)
}

func TestUpPropagatesErrors(t *testing.T) {
	orig := upContext
	t.Cleanup(func() { upContext = orig })

	boom := errors.New("boom")
	upContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return boom
	}

	assert.ErrorIs(t, Up(context.Background(), nil), boom)
}
