/*
 *  This file is part of PETA.
 *  Copyright (C) 2025 The PETA Authors.
 *  PETA is free software: you can redistribute it and/or modify
 *  it under the terms of the GNU Affero General Public License as published by
 *  the Free Software Foundation, either version 3 of the License, or
 *  (at your option) any later version.
 *
 *  PETA is distributed in the hope that it will be useful,
 *  but WITHOUT ANY WARRANTY; without even the implied warranty of
 *  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 *  GNU Affero General Public License for more details.
 *
 *  You should have received a copy of the GNU Affero General Public License
 *  along with PETA. If not, see <https://www.gnu.org/licenses/>.
 */

package ipam

import "sync"

// namedLocks lazily creates one mutex per name, the Go equivalent of
// quark's `@synchronized(named("..."))` decorator. Held as an engine
// field rather than package state so two engines in the same process
// (e.g. in tests) don't serialize against each other.
type namedLocks struct {
	enabled bool
	mu      sync.Mutex
	locks   map[string]*sync.Mutex
}

func newNamedLocks(enabled bool) *namedLocks {
	return &namedLocks{enabled: enabled, locks: make(map[string]*sync.Mutex)}
}

// lock acquires the named mutex and returns the unlock func, or a no-op
// if synchronization is disabled.
func (n *namedLocks) lock(name string) func() {
	if !n.enabled {
		return func() {}
	}
	n.mu.Lock()
	m, ok := n.locks[name]
	if !ok {
		m = &sync.Mutex{}
		n.locks[name] = m
	}
	n.mu.Unlock()

	m.Lock()
	return m.Unlock
}

const (
	lockAllocateMacAddress = "allocate_mac_address"
	lockReallocateIP       = "reallocate_ip"
	lockSelectSubnet       = "select_subnet"
)
