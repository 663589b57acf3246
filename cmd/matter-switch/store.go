package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/backkem/matter-switch/pkg/binding"
	"github.com/backkem/matter-switch/pkg/wire"
)

var errNoState = errors.New("state: key not found")

// stateStore keeps the light's cluster state in one file. Every Store
// rewrites the file.
type stateStore struct {
	file *binding.FileStorage

	mu     sync.Mutex
	values map[string][]byte
}

func openStateStore(path string) (*stateStore, error) {
	s := &stateStore{
		file:   binding.NewFileStorage(path),
		values: make(map[string][]byte),
	}
	data, err := s.file.Load()
	if err != nil {
		return nil, fmt.Errorf("state %s: %w", path, err)
	}
	if len(data) > 0 {
		if err := wire.Unmarshal(data, &s.values); err != nil {
			return nil, fmt.Errorf("state %s: %w", path, err)
		}
	}
	return s, nil
}

// Load implements onoff.Storage.
func (s *stateStore) Load(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok {
		return nil, errNoState
	}
	return append([]byte(nil), v...), nil
}

// Store implements onoff.Storage.
func (s *stateStore) Store(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	data, err := wire.Marshal(s.values)
	if err != nil {
		return err
	}
	return s.file.Save(data)
}
