// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/internal/store"
	"github.com/holomush/holoauth/pkg/errutil"
)

type mockMigrator struct {
	calls     []string
	steps     int
	forced    int
	status    *store.Status
	err       error
	closeErr  error
	closeCall int
}

func (m *mockMigrator) Up() error   { m.calls = append(m.calls, "up"); return m.err }
func (m *mockMigrator) Down() error { m.calls = append(m.calls, "down"); return m.err }

func (m *mockMigrator) Steps(n int) error {
	m.calls = append(m.calls, "steps")
	m.steps = n
	return m.err
}

func (m *mockMigrator) Force(v int) error {
	m.calls = append(m.calls, "force")
	m.forced = v
	return m.err
}

func (m *mockMigrator) Status() (*store.Status, error) {
	m.calls = append(m.calls, "status")
	return m.status, m.err
}

func (m *mockMigrator) Close() error {
	m.closeCall++
	return m.closeErr
}

// useMockMigrator swaps the migrator factory for the test and records the
// URL it was asked for.
func useMockMigrator(t *testing.T, m *mockMigrator) *string {
	t.Helper()
	var gotURL string
	orig := migratorFactory
	migratorFactory = func(url string) (Migrator, error) {
		gotURL = url
		return m, nil
	}
	t.Cleanup(func() { migratorFactory = orig })
	return &gotURL
}

func runMigrate(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"migrate"}, args...))
	err := root.Execute()
	return buf.String(), err
}

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "non-numeric returns error", input: "abc", wantErr: true},
		{name: "float parses as integer", input: "1.5", wantVersion: 1},
		{name: "trailing chars are ignored", input: "3abc", wantVersion: 3},
		{name: "empty string returns error", input: "", wantErr: true},
		{name: "whitespace only returns error", input: "   ", wantErr: true},
		{name: "leading whitespace is handled", input: "  42", wantVersion: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				assert.Equal(t, 0, version)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}

func TestGetDatabaseURL(t *testing.T) {
	t.Run("missing url", func(t *testing.T) {
		isolateConfig(t)
		_, err := getDatabaseURL(nil)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("memory store", func(t *testing.T) {
		isolateConfig(t)
		configFile = writeConfig(t, "store:\n  driver: memory\n")
		_, err := getDatabaseURL(nil)
		errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	})

	t.Run("from environment", func(t *testing.T) {
		isolateConfig(t)
		t.Setenv("DATABASE_URL", "postgres://localhost:5432/testdb")
		url, err := getDatabaseURL(nil)
		require.NoError(t, err)
		assert.Equal(t, "postgres://localhost:5432/testdb", url)
	})
}

func TestMigrate_Up(t *testing.T) {
	isolateConfig(t)
	m := &mockMigrator{}
	gotURL := useMockMigrator(t, m)

	out, err := runMigrate(t, "--database-url", "postgres://flag/db")
	require.NoError(t, err)
	assert.Equal(t, "postgres://flag/db", *gotURL)
	assert.Equal(t, []string{"up"}, m.calls)
	assert.Equal(t, 1, m.closeCall)
	assert.Contains(t, out, "Migrations completed successfully")

	m.calls = nil
	_, err = runMigrate(t, "up", "--database-url", "postgres://flag/db")
	require.NoError(t, err)
	assert.Equal(t, []string{"up"}, m.calls)
}

func TestMigrate_UpFailure(t *testing.T) {
	isolateConfig(t)
	t.Setenv("DATABASE_URL", "postgres://env/db")
	m := &mockMigrator{err: errors.New("boom"), closeErr: errors.New("close boom")}
	useMockMigrator(t, m)

	out, err := runMigrate(t, "up")
	require.Error(t, err)
	assert.Equal(t, 1, m.closeCall, "migrator is closed on failure")
	assert.Contains(t, out, "failed to close migrator")
}

func TestMigrate_Down(t *testing.T) {
	isolateConfig(t)
	t.Setenv("DATABASE_URL", "postgres://env/db")

	t.Run("requires confirmation", func(t *testing.T) {
		m := &mockMigrator{}
		useMockMigrator(t, m)
		_, err := runMigrate(t, "down")
		errutil.AssertErrorCode(t, err, "CONFIRMATION_REQUIRED")
		assert.Empty(t, m.calls)
	})

	t.Run("rolls back steps", func(t *testing.T) {
		m := &mockMigrator{}
		useMockMigrator(t, m)
		_, err := runMigrate(t, "down", "--yes", "--steps", "2")
		require.NoError(t, err)
		assert.Equal(t, []string{"steps"}, m.calls)
		assert.Equal(t, -2, m.steps)
	})

	t.Run("rolls back everything", func(t *testing.T) {
		m := &mockMigrator{}
		useMockMigrator(t, m)
		_, err := runMigrate(t, "down", "--yes", "--all")
		require.NoError(t, err)
		assert.Equal(t, []string{"down"}, m.calls)
	})

	t.Run("rejects zero steps", func(t *testing.T) {
		m := &mockMigrator{}
		useMockMigrator(t, m)
		_, err := runMigrate(t, "down", "--yes", "--steps", "0")
		errutil.AssertErrorCode(t, err, "INVALID_STEPS")
	})
}

func TestMigrate_StatusAndForce(t *testing.T) {
	isolateConfig(t)
	t.Setenv("DATABASE_URL", "postgres://env/db")

	m := &mockMigrator{status: &store.Status{Version: 1, Dirty: true, Applied: []uint{1}, Pending: []uint{2, 3}}}
	useMockMigrator(t, m)

	out, err := runMigrate(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Current version: 1 (dirty")
	assert.Contains(t, out, "Applied (1):\n  000001_create_users\n")
	assert.Contains(t, out, "Pending (2):")
	assert.Contains(t, out, "000003_create_password_resets")

	out, err = runMigrate(t, "force", "2")
	require.NoError(t, err)
	assert.Equal(t, 2, m.forced)
	assert.Contains(t, out, "Forced migration version to 2")

	_, err = runMigrate(t, "force", "abc")
	errutil.AssertErrorCode(t, err, "INVALID_VERSION")
}
