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

// Engine is the top-level entry point for MAC and IP allocation,
// wiring together the Store, the configured Strategy, the Notifier,
// and the advisory lock registry. One Engine is safe for concurrent
// use by many callers.
type Engine struct {
	store    Store
	options  *Options
	strategy Strategy
	notifier Notifier
	locks    *namedLocks
}

// NewEngine builds an Engine. A nil notifier installs a no-op one.
func NewEngine(store Store, options *Options, notifier Notifier) *Engine {
	if options == nil {
		options = NewOptions()
	}
	if notifier == nil {
		notifier = NewNoopNotifier()
	}
	strategy := GetStrategy(options.DefaultStrategy, string(StrategyAny))
	return &Engine{
		store:    store,
		options:  options,
		strategy: strategy,
		notifier: notifier,
		locks:    newNamedLocks(options.UseSynchronization),
	}
}
