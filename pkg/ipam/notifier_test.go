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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueueNotifierDeliversThroughSink(t *testing.T) {
	var mu sync.Mutex
	var events []string

	notifier := NewQueueNotifier(8, 2, func(event string, payload AddressEventPayload) {
		mu.Lock()
		events = append(events, event+":"+payload.IPAddress)
		mu.Unlock()
	})
	notifier.Start()
	defer notifier.Stop()

	notifier.AddressCreated(AddressEventPayload{IPAddress: "10.0.0.1"})
	notifier.AddressDeleted(AddressEventPayload{IPAddress: "10.0.0.2"})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 2
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []string{"ip_block.address.create:10.0.0.1", "ip_block.address.delete:10.0.0.2"}, events)
}

func TestNoopNotifierDiscardsEverything(t *testing.T) {
	n := NewNoopNotifier()
	n.Start()
	n.AddressCreated(AddressEventPayload{IPAddress: "10.0.0.1"})
	n.AddressDeleted(AddressEventPayload{IPAddress: "10.0.0.1"})
	n.Stop()
}

func TestRecordingNotifierCapturesEvents(t *testing.T) {
	n := &RecordingNotifier{}
	n.AddressCreated(AddressEventPayload{IPAddress: "10.0.0.1"})
	n.AddressDeleted(AddressEventPayload{IPAddress: "10.0.0.2"})
	require.Len(t, n.Created, 1)
	require.Len(t, n.Deleted, 1)
}
