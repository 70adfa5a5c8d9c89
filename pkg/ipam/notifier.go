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
	"time"

	"peta.io/peta/pkg/log"
	"peta.io/peta/pkg/utils/queue"
)

// AddressEventPayload is the notification body for both create and
// delete events, mirroring the dict n_rpc.get_notifier builds in
// _notify_new_addresses/deallocate_ip_address.
type AddressEventPayload struct {
	UsedByTenantID string    `json:"used_by_tenant_id"`
	IPBlockID      string    `json:"ip_block_id"`
	IPAddress      string    `json:"ip_address"`
	DeviceIDs      []string  `json:"device_ids"`
	CreatedAt      time.Time `json:"created_at"`
	DeletedAt      time.Time `json:"deleted_at,omitempty"`
}

// Notifier publishes address lifecycle events. It is fire-and-forget:
// a delivery failure never fails the allocation or deallocation it
// describes.
type Notifier interface {
	AddressCreated(payload AddressEventPayload)
	AddressDeleted(payload AddressEventPayload)
	Start()
	Stop()
}

// queueNotifier backs Notifier with a worker-pool queue so publishing
// never blocks the caller on a slow downstream sink.
type queueNotifier struct {
	q    *queue.ChanQueue
	sink func(event string, payload AddressEventPayload)
}

// NewQueueNotifier builds a Notifier with maxQueued buffered events and
// workers concurrent publishers. sink is the actual transport (e.g. a
// message bus publish call); nil installs a logging-only sink.
func NewQueueNotifier(maxQueued, workers int, sink func(event string, payload AddressEventPayload)) Notifier {
	if sink == nil {
		sink = func(event string, payload AddressEventPayload) {
			log.Infof("ipam notification %s: tenant=%s block=%s address=%s", event,
				payload.UsedByTenantID, payload.IPBlockID, payload.IPAddress)
		}
	}
	return &queueNotifier{q: queue.NewQueue(maxQueued, workers), sink: sink}
}

func (n *queueNotifier) Start() { n.q.Run() }
func (n *queueNotifier) Stop()  { n.q.Terminate() }

func (n *queueNotifier) AddressCreated(payload AddressEventPayload) {
	n.q.Push(queue.JobFunc(func() { n.sink("ip_block.address.create", payload) }))
}

func (n *queueNotifier) AddressDeleted(payload AddressEventPayload) {
	n.q.Push(queue.JobFunc(func() { n.sink("ip_block.address.delete", payload) }))
}

// noopNotifier discards every event; used by tests and by engines built
// without a transport configured.
type noopNotifier struct{}

func (noopNotifier) AddressCreated(AddressEventPayload) {}
func (noopNotifier) AddressDeleted(AddressEventPayload) {}
func (noopNotifier) Start()                             {}
func (noopNotifier) Stop()                              {}

// NewNoopNotifier returns a Notifier that drops every event.
func NewNoopNotifier() Notifier { return noopNotifier{} }

// RecordingNotifier is a test double capturing every published event.
type RecordingNotifier struct {
	Created []AddressEventPayload
	Deleted []AddressEventPayload
}

func (r *RecordingNotifier) AddressCreated(p AddressEventPayload) { r.Created = append(r.Created, p) }
func (r *RecordingNotifier) AddressDeleted(p AddressEventPayload) { r.Deleted = append(r.Deleted, p) }
func (r *RecordingNotifier) Start()                               {}
func (r *RecordingNotifier) Stop()                                {}
