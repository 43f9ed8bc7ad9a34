// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

// Package capability decides which host actions an extension may invoke.
//
// Grants are glob patterns over action names, compiled with gobwas/glob using
// ':' and '/' as segment separators:
//   - '*' matches within one segment: "internal:discovery/*" matches
//     "internal:discovery/clusterstate"
//   - '**' crosses separators: "internal:**" matches every internal action
//   - "**" alone grants everything
package capability

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gobwas/glob"
)

// Everything is the grant given to extensions that declare no capabilities.
const Everything = "**"

var separators = []rune{':', '/'}

type compiledGrant struct {
	pattern string
	glob    glob.Glob
}

// Enforcer checks extension grants at dispatch time.
//
// Enforcer is safe for concurrent use. The zero value is ready to use.
type Enforcer struct {
	grants map[string][]compiledGrant // extension id -> compiled grants
	mu     sync.RWMutex
}

// NewEnforcer creates an enforcer with no grants.
func NewEnforcer() *Enforcer {
	return &Enforcer{
		grants: make(map[string][]compiledGrant),
	}
}

// ValidatePattern reports whether pattern compiles as a grant.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return errors.New("empty capability pattern")
	}
	if _, err := glob.Compile(pattern, separators...); err != nil {
		return fmt.Errorf("capability %q: %w", pattern, err)
	}
	return nil
}

// SetGrants replaces the grants of extension. An empty list grants
// Everything. If any pattern is invalid nothing changes.
func (e *Enforcer) SetGrants(extension string, patterns []string) error {
	if extension == "" {
		return errors.New("extension id cannot be empty")
	}
	if len(patterns) == 0 {
		patterns = []string{Everything}
	}

	compiled := make([]compiledGrant, len(patterns))
	for i, pattern := range patterns {
		if err := ValidatePattern(pattern); err != nil {
			return fmt.Errorf("capability %d: %w", i, err)
		}
		compiled[i] = compiledGrant{pattern: pattern, glob: glob.MustCompile(pattern, separators...)}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grants == nil {
		e.grants = make(map[string][]compiledGrant)
	}
	e.grants[extension] = compiled
	return nil
}

// RemoveGrants forgets extension. Safe for unknown ids.
func (e *Enforcer) RemoveGrants(extension string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.grants, extension)
}

// IsRegistered distinguishes "no grants set" from "grant missing".
func (e *Enforcer) IsRegistered(extension string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.grants[extension]
	return ok
}

// GetGrants returns a copy of the patterns granted to extension.
func (e *Enforcer) GetGrants(extension string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	grants, ok := e.grants[extension]
	if !ok {
		return nil
	}
	patterns := make([]string, len(grants))
	for i, g := range grants {
		patterns[i] = g.pattern
	}
	return patterns
}

// Check returns true if extension may invoke action. Unknown extensions and
// empty inputs are denied.
func (e *Enforcer) Check(extension, action string) bool {
	if extension == "" || action == "" {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, grant := range e.grants[extension] {
		if grant.glob.Match(action) {
			return true
		}
	}
	return false
}
