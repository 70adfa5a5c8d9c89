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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewEngineInstallsDefaults(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, nil, nil)
	require.NotNil(t, engine.options)
	require.Equal(t, StrategyAny, engine.strategy.Name())
	require.IsType(t, noopNotifier{}, engine.notifier)
}

func TestNewEngineHonorsConfiguredStrategy(t *testing.T) {
	opts := NewOptions()
	opts.DefaultStrategy = string(StrategyBothRequired)
	engine := NewEngine(newFakeStore(), opts, nil)
	require.Equal(t, StrategyBothRequired, engine.strategy.Name())
}

func TestNamedLocksNoopWhenDisabled(t *testing.T) {
	locks := newNamedLocks(false)
	unlock := locks.lock(lockSelectSubnet)
	// Disabled locks hand back the same no-op regardless of name, so a
	// second acquisition must never block.
	unlock2 := locks.lock(lockSelectSubnet)
	unlock()
	unlock2()
}

func TestNamedLocksSerializesSameName(t *testing.T) {
	locks := newNamedLocks(true)
	var order []string

	release := locks.lock(lockAllocateMacAddress)
	order = append(order, "main-acquired")

	acquired := make(chan struct{})
	go func() {
		u := locks.lock(lockAllocateMacAddress)
		order = append(order, "goroutine-acquired")
		u()
		close(acquired)
	}()

	time.Sleep(10 * time.Millisecond)
	order = append(order, "main-released")
	release()
	<-acquired

	require.Equal(t, []string{"main-acquired", "main-released", "goroutine-acquired"}, order)
}
