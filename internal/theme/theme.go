// Package theme holds the light/dark UI preference. Persistence and other
// side effects are plugged in as listeners; the store itself only keeps the
// current value.
package theme

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Theme is a UI colour scheme.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// ErrInvalidTheme is returned for anything other than light or dark.
var ErrInvalidTheme = errors.New("invalid theme")

// Parse validates s as a Theme.
func Parse(s string) (Theme, error) {
	switch Theme(s) {
	case Light, Dark:
		return Theme(s), nil
	default:
		return "", fmt.Errorf("%w: %q (want light or dark)", ErrInvalidTheme, s)
	}
}

// Opposite returns the other theme.
func (t Theme) Opposite() Theme {
	if t == Dark {
		return Light
	}
	return Dark
}

// Listener is called with the current theme.
type Listener func(Theme) error

type subscription struct {
	listener Listener
}

// Store is a theme value with change listeners. Listeners run synchronously,
// in subscription order, on the goroutine that changed the value. A listener
// may call Get but must not call Set, Toggle or Subscribe.
type Store struct {
	mu        sync.Mutex
	value     Theme
	listeners []*subscription

	// notifyMu serialises mutations with their notifications so listeners
	// observe changes in order.
	notifyMu sync.Mutex
}

// NewStore creates a store holding initial, or Light if initial is invalid.
func NewStore(initial Theme) *Store {
	if _, err := Parse(string(initial)); err != nil {
		initial = Light
	}
	return &Store{value: initial}
}

// Resolve picks the starting theme: a valid persisted value, else Dark when
// prefersDark reports so, else Light. Storage errors fall through to the
// system preference.
func Resolve(storage Storage, prefersDark func() bool) Theme {
	if storage != nil {
		saved, err := storage.Load()
		if err != nil {
			logrus.WithError(err).WithField("component", "theme").Warn("Failed to load saved theme")
		} else if t, err := Parse(string(saved)); err == nil {
			return t
		}
	}
	if prefersDark != nil && prefersDark() {
		return Dark
	}
	return Light
}

// Get returns the current theme.
func (s *Store) Get() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set changes the theme and notifies listeners. Setting the current value
// again does nothing. Listener errors are joined and returned; the value is
// changed regardless.
func (s *Store) Set(t Theme) error {
	if _, err := Parse(string(t)); err != nil {
		return err
	}

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.value == t {
		s.mu.Unlock()
		return nil
	}
	s.value = t
	subs := make([]*subscription, len(s.listeners))
	copy(subs, s.listeners)
	s.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.listener(t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Toggle switches between light and dark and returns the new theme.
func (s *Store) Toggle() (Theme, error) {
	next := s.Get().Opposite()
	return next, s.Set(next)
}

// Subscribe registers l and calls it once with the current value. If that
// first call fails, l is not registered.
func (s *Store) Subscribe(l Listener) (unsubscribe func(), err error) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if err := l(s.Get()); err != nil {
		return func() {}, err
	}

	sub := &subscription{listener: l}
	s.mu.Lock()
	s.listeners = append(s.listeners, sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, existing := range s.listeners {
				if existing == sub {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}, nil
}
