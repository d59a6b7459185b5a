package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWritesValidMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	path, err := Create(dir, "Add Order Notes!", now)
	require.NoError(t, err)
	assert.Equal(t, "20250301090000_add_order_notes.sql", filepath.Base(path))
	require.NoError(t, Validate(os.DirFS(dir)))

	_, err = Create(dir, "another", now)
	assert.ErrorContains(t, err, "already used")
}

func TestCreateRejectsEmptySlug(t *testing.T) {
	_, err := Create(t.TempDir(), "!!!", time.Now())
	assert.Error(t, err)
}

func TestValidateRejectsBrokenFiles(t *testing.T) {
	cases := map[string]fstest.MapFS{
		"bad name": {
			"bad-name.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
		"unbalanced": {
			"20250101000000_broken.sql": {Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n")},
		},
		"down first": {
			"20250101000000_flipped.sql": {Data: []byte("-- +goose Down\n-- +goose Up\n")},
		},
		"duplicate version": {
			"20250101000000_a.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
			"20250101000000_b.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		},
	}
	for name, fsys := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Validate(fsys))
		})
	}
}

func TestNewMigratorRequiresDB(t *testing.T) {
	_, err := NewMigrator(nil, nil, nil)
	assert.Error(t, err)
}
