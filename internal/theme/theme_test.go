package theme

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStorage struct{}

func (brokenStorage) Load() (Theme, error) { return "", errors.New("disk on fire") }
func (brokenStorage) Save(Theme) error    { return errors.New("disk on fire") }

func TestParse(t *testing.T) {
	for _, s := range []string{"light", "dark"} {
		got, err := Parse(s)
		require.NoError(t, err)
		assert.Equal(t, Theme(s), got)
	}

	for _, s := range []string{"", "Dark", "sepia"} {
		_, err := Parse(s)
		assert.ErrorIs(t, err, ErrInvalidTheme, s)
	}
}

func TestResolve(t *testing.T) {
	yes := func() bool { return true }
	no := func() bool { return false }

	tests := []struct {
		name        string
		saved       Theme
		storage     Storage
		prefersDark func() bool
		want        Theme
	}{
		{"saved dark wins over light preference", Dark, nil, no, Dark},
		{"saved light wins over dark preference", Light, nil, yes, Light},
		{"nothing saved, system prefers dark", "", nil, yes, Dark},
		{"nothing saved, no preference", "", nil, no, Light},
		{"garbage saved falls back to preference", "purple", nil, yes, Dark},
		{"nil preference callback", "", nil, nil, Light},
		{"storage error falls back to preference", "", brokenStorage{}, yes, Dark},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := tt.storage
			if storage == nil {
				storage = &MemoryStorage{value: tt.saved}
			}
			assert.Equal(t, tt.want, Resolve(storage, tt.prefersDark))
		})
	}

	assert.Equal(t, Light, Resolve(nil, nil))
}

func TestStore_SetNotifiesListenersInOrder(t *testing.T) {
	s := NewStore(Light)

	var calls []string
	_, err := s.Subscribe(func(th Theme) error { calls = append(calls, "first:"+string(th)); return nil })
	require.NoError(t, err)
	_, err = s.Subscribe(func(th Theme) error { calls = append(calls, "second:"+string(th)); return nil })
	require.NoError(t, err)

	require.NoError(t, s.Set(Dark))
	assert.Equal(t, Dark, s.Get())
	assert.Equal(t, []string{"first:light", "second:light", "first:dark", "second:dark"}, calls)
}

func TestStore_SetSameValueIsNoop(t *testing.T) {
	s := NewStore(Dark)
	count := 0
	_, err := s.Subscribe(func(Theme) error { count++; return nil })
	require.NoError(t, err)

	require.NoError(t, s.Set(Dark))
	assert.Equal(t, 1, count, "only the initial subscribe call")
}

func TestStore_SetInvalid(t *testing.T) {
	s := NewStore(Light)
	err := s.Set("neon")
	assert.ErrorIs(t, err, ErrInvalidTheme)
	assert.Equal(t, Light, s.Get())
}

func TestStore_Toggle(t *testing.T) {
	s := NewStore(Light)

	next, err := s.Toggle()
	require.NoError(t, err)
	assert.Equal(t, Dark, next)

	next, err = s.Toggle()
	require.NoError(t, err)
	assert.Equal(t, Light, next)
}

func TestStore_Unsubscribe(t *testing.T) {
	s := NewStore(Light)
	count := 0
	unsubscribe, err := s.Subscribe(func(Theme) error { count++; return nil })
	require.NoError(t, err)

	unsubscribe()
	unsubscribe()
	require.NoError(t, s.Set(Dark))
	assert.Equal(t, 1, count)
}

func TestStore_ListenerErrorsJoined(t *testing.T) {
	s := NewStore(Light)
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ran := false

	_, err := s.Subscribe(func(th Theme) error {
		if th == Dark {
			return errA
		}
		return nil
	})
	require.NoError(t, err)
	_, err = s.Subscribe(func(Theme) error { ran = true; return nil })
	require.NoError(t, err)
	_, err = s.Subscribe(func(th Theme) error {
		if th == Dark {
			return errB
		}
		return nil
	})
	require.NoError(t, err)

	ran = false
	err = s.Set(Dark)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.True(t, ran, "a failing listener must not stop later ones")
	assert.Equal(t, Dark, s.Get())
}

func TestStore_SubscribeInitialFailure(t *testing.T) {
	s := NewStore(Light)
	boom := errors.New("boom")
	count := 0

	_, err := s.Subscribe(func(Theme) error { count++; return boom })
	assert.ErrorIs(t, err, boom)

	require.NoError(t, s.Set(Dark))
	assert.Equal(t, 1, count, "failed subscriber is not registered")
}

func TestStore_ListenerMayGet(t *testing.T) {
	s := NewStore(Light)
	var seen Theme
	_, err := s.Subscribe(func(Theme) error { seen = s.Get(); return nil })
	require.NoError(t, err)

	require.NoError(t, s.Set(Dark))
	assert.Equal(t, Dark, seen)
}

func TestNewStore_InvalidInitial(t *testing.T) {
	assert.Equal(t, Light, NewStore("").Get())
	assert.Equal(t, Dark, NewStore(Dark).Get())
}

func TestPersist_WithMemoryStorage(t *testing.T) {
	storage := &MemoryStorage{}
	s := NewStore(Resolve(storage, func() bool { return true }))

	_, err := s.Subscribe(Persist(storage))
	require.NoError(t, err)
	assert.Equal(t, 1, storage.Saves())

	saved, err := storage.Load()
	require.NoError(t, err)
	assert.Equal(t, Dark, saved)

	require.NoError(t, s.Set(Light))
	saved, err = storage.Load()
	require.NoError(t, err)
	assert.Equal(t, Light, saved)
}

func TestPersist_Error(t *testing.T) {
	s := NewStore(Light)
	_, err := s.Subscribe(Persist(brokenStorage{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to persist theme")
}

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "theme.yaml")
	fs := NewFileStorage(path)
	assert.Equal(t, path, fs.Path())

	saved, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, Theme(""), saved)

	require.NoError(t, fs.Save(Dark))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "theme: dark\n", string(data))

	saved, err = fs.Load()
	require.NoError(t, err)
	assert.Equal(t, Dark, saved)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestFileStorage_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "theme.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: [unterminated"), 0o600))

	_, err := NewFileStorage(path).Load()
	assert.Error(t, err)
	assert.Equal(t, Light, Resolve(NewFileStorage(path), nil))
}
