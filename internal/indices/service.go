// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package indices owns the node's index modules and reports their lifecycle
// to observers such as the extension host.
package indices

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/stratanode/strata/internal/extensions"
)

// Sentinel errors.
var (
	ErrIndexExists   = errors.New("index already exists")
	ErrIndexNotFound = errors.New("index not found")
	ErrInvalidName   = errors.New("invalid index name")
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,254}$`)

// AttachObserver is told about every newly created index.
type AttachObserver interface {
	OnModuleAttached(ctx context.Context, module extensions.Module)
}

// Index is one index module.
type Index struct {
	name    string
	uuid    string
	created time.Time

	mu        sync.Mutex
	listeners []extensions.RemovalListener
}

// Name implements extensions.Module.
func (i *Index) Name() string { return i.name }

// UUID implements extensions.Module.
func (i *Index) UUID() string { return i.uuid }

// Created returns when the index was created.
func (i *Index) Created() time.Time { return i.created }

// AddRemovalListener implements extensions.Module.
func (i *Index) AddRemovalListener(fn extensions.RemovalListener) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.listeners = append(i.listeners, fn)
}

func (i *Index) removalListeners() []extensions.RemovalListener {
	i.mu.Lock()
	defer i.mu.Unlock()
	return slices.Clone(i.listeners)
}

// Service creates and deletes indices.
type Service struct {
	mu        sync.RWMutex
	indices   map[string]*Index
	deleting  map[string]struct{}
	observers []AttachObserver
}

// NewService creates an empty index service.
func NewService(observers ...AttachObserver) *Service {
	return &Service{
		indices:   make(map[string]*Index),
		deleting:  make(map[string]struct{}),
		observers: observers,
	}
}

// AddObserver registers o for later creations.
func (s *Service) AddObserver(o AttachObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Create adds an index and reports it to every observer before returning.
func (s *Service) Create(ctx context.Context, name string) (*Index, error) {
	if !namePattern.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	s.mu.Lock()
	if _, ok := s.indices[name]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrIndexExists, name)
	}
	now := time.Now()
	idx := &Index{
		name:    name,
		uuid:    ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		created: now,
	}
	s.indices[name] = idx
	observers := slices.Clone(s.observers)
	s.mu.Unlock()

	slog.InfoContext(ctx, "index created", "module", name, "uuid", idx.uuid)
	for _, o := range observers {
		o.OnModuleAttached(ctx, idx)
	}
	return idx, nil
}

// Delete runs each removal listener of the index once and then removes it.
// A failing or panicking listener never prevents removal.
func (s *Service) Delete(ctx context.Context, name string) error {
	// Claim the index so a concurrent Delete of the same name cannot run the
	// listeners a second time. It stays visible to Get until removed.
	s.mu.Lock()
	idx, ok := s.indices[name]
	if _, claimed := s.deleting[name]; !ok || claimed {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}
	s.deleting[name] = struct{}{}
	s.mu.Unlock()

	for _, fn := range idx.removalListeners() {
		runListener(ctx, idx, fn)
	}

	s.mu.Lock()
	delete(s.indices, name)
	delete(s.deleting, name)
	s.mu.Unlock()
	slog.InfoContext(ctx, "index deleted", "module", name, "uuid", idx.uuid)
	return nil
}

func runListener(ctx context.Context, idx *Index, fn extensions.RemovalListener) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "index removal listener panicked",
				"module", idx.name,
				"panic", r)
		}
	}()
	fn(ctx)
}

// Get returns the index called name.
func (s *Service) Get(name string) (*Index, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indices[name]
	return idx, ok
}

// Names returns every index name, sorted.
func (s *Service) Names() []string {
	s.mu.RLock()
	names := make([]string, 0, len(s.indices))
	for name := range s.indices {
		names = append(names, name)
	}
	s.mu.RUnlock()
	slices.Sort(names)
	return names
}
