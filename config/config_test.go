package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "mouseshare"))
	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), got)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "mouseshare"))
	want := Default()
	want.EncryptionEnabled = true
	want.Password = "hunter2"
	want.EdgeThreshold = 4

	require.NoError(t, s.Save(want))
	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestValidateClampsOutOfRange(t *testing.T) {
	s := Settings{EdgeThreshold: 100, CornerDeadZone: -5, TransitionDelay: 42}
	s.Validate()
	assert.Equal(t, 10, s.EdgeThreshold)
	assert.Equal(t, 0, s.CornerDeadZone)
	assert.Equal(t, TransitionDelay0, s.TransitionDelay)
}

func TestIdentityPersistsAcrossLoads(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "mouseshare")
	s := NewStore(dir)
	id1, err := s.LoadOrCreateIdentity()
	require.NoError(t, err)

	s2 := NewStore(dir)
	id2, err := s2.LoadOrCreateIdentity()
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}
