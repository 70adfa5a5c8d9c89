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
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid"
)

var (
	errDuplicateMac     = errors.New("fake store: mac address already exists")
	errDuplicateAddress = errors.New("fake store: ip address already exists")
)

// fakeStore is an in-memory Store used only by tests. It approximates
// the claim/cursor semantics of popStore closely enough to exercise the
// engine without a database.
type fakeStore struct {
	mu sync.Mutex

	macRanges    map[uuid.UUID]*MacAddressRange
	macAddresses map[int64]*MacAddress

	subnets      map[uuid.UUID]*Subnet
	ipPolicies   map[uuid.UUID]*IPPolicy
	ipAddresses  map[uuid.UUID]*IPAddress
	portsByAddr  map[uuid.UUID][]Port
	transactions map[uuid.UUID]Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		macRanges:    make(map[uuid.UUID]*MacAddressRange),
		macAddresses: make(map[int64]*MacAddress),
		subnets:      make(map[uuid.UUID]*Subnet),
		ipPolicies:   make(map[uuid.UUID]*IPPolicy),
		ipAddresses:  make(map[uuid.UUID]*IPAddress),
		portsByAddr:  make(map[uuid.UUID][]Port),
		transactions: make(map[uuid.UUID]Transaction),
	}
}

func (s *fakeStore) TransactionCreate(ctx context.Context, rc RequestContext) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, _ := uuid.NewV4()
	tx := Transaction{ID: id, CreatedAt: time.Now().UTC()}
	s.transactions[id] = tx
	return tx, nil
}

func (s *fakeStore) PurgeTransactions(ctx context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	n := 0
	for id, tx := range s.transactions {
		if tx.CreatedAt.Before(cutoff) {
			delete(s.transactions, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) MacAddressClaim(ctx context.Context, rc RequestContext, filter MacAddressFilter, set MacAddress) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, mac := range s.macAddresses {
		if !mac.Deallocated {
			continue
		}
		if filter.Address != nil && *filter.Address != addr {
			continue
		}
		if filter.ReuseAfter != nil && mac.DeallocatedAt != nil {
			if time.Since(*mac.DeallocatedAt) < *filter.ReuseAfter {
				continue
			}
		}
		mac.Deallocated = false
		mac.DeallocatedAt = nil
		mac.TransactionID = set.TransactionID
		mac.TenantID = rc.TenantID
		return true, nil
	}
	return false, nil
}

func (s *fakeStore) MacAddressFindByTransaction(ctx context.Context, rc RequestContext, txID uuid.UUID) (*MacAddress, *MacAddressRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mac := range s.macAddresses {
		if mac.TransactionID != nil && *mac.TransactionID == txID {
			cp := *mac
			return &cp, s.macRanges[mac.MacAddressRangeID], nil
		}
	}
	return nil, nil, nil
}

func (s *fakeStore) MacAddressFind(ctx context.Context, rc RequestContext, address int64) (*MacAddress, *MacAddressRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mac, ok := s.macAddresses[address]
	if !ok {
		return nil, nil, nil
	}
	cp := *mac
	return &cp, s.macRanges[mac.MacAddressRangeID], nil
}

func (s *fakeStore) MacAddressCreate(ctx context.Context, rc RequestContext, mac MacAddress) (MacAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.macAddresses[mac.Address]; exists {
		return MacAddress{}, errDuplicateMac
	}
	cp := mac
	s.macAddresses[mac.Address] = &cp
	return mac, nil
}

func (s *fakeStore) MacAddressUpdate(ctx context.Context, rc RequestContext, mac MacAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := mac
	s.macAddresses[mac.Address] = &cp
	return nil
}

func (s *fakeStore) MacAddressDelete(ctx context.Context, rc RequestContext, mac MacAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.macAddresses, mac.Address)
	return nil
}

func (s *fakeStore) MacAddressRangeFindMostFull(ctx context.Context, rc RequestContext, address *int64, includeForbidden bool) (*MacAddressRange, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best *MacAddressRange
	var bestCount int64 = -1
	for _, rng := range s.macRanges {
		if rng.DoNotUse && !includeForbidden {
			continue
		}
		if address != nil && (*address < rng.FirstAddress || *address > rng.LastAddress) {
			continue
		}
		count := s.countActiveInRange(rng.ID)
		if count > bestCount {
			best = rng
			bestCount = count
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	cp := *best
	return &cp, bestCount, nil
}

func (s *fakeStore) countActiveInRange(rangeID uuid.UUID) int64 {
	var n int64
	for _, mac := range s.macAddresses {
		if mac.MacAddressRangeID == rangeID && !mac.Deallocated {
			n++
		}
	}
	return n
}

func (s *fakeStore) MacRangeAdvanceCursor(ctx context.Context, rc RequestContext, rangeID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rng, ok := s.macRanges[rangeID]
	if !ok || rng.Full() {
		return false, nil
	}
	rng.NextAutoAssignMac++
	return true, nil
}

func (s *fakeStore) MacRangeMarkFull(ctx context.Context, rc RequestContext, rangeID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rng, ok := s.macRanges[rangeID]
	if !ok {
		return false, nil
	}
	rng.NextAutoAssignMac = -1
	return true, nil
}

func (s *fakeStore) IPAddressClaim(ctx context.Context, rc RequestContext, filter IPAddressFilter, set IPAddress) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, addr := range s.ipAddresses {
		if !addr.Deallocated {
			continue
		}
		if len(filter.SubnetIDs) > 0 && !containsUUID(filter.SubnetIDs, addr.SubnetID) {
			continue
		}
		if filter.NetworkID != uuid.Nil && addr.NetworkID != filter.NetworkID {
			continue
		}
		if filter.Address != nil && !addr.Address.Equal(*filter.Address) {
			continue
		}
		if filter.ReuseAfter != nil && addr.DeallocatedAt != nil {
			if time.Since(*addr.DeallocatedAt) < *filter.ReuseAfter {
				continue
			}
		}
		addr.Deallocated = false
		addr.DeallocatedAt = nil
		addr.UsedByTenantID = set.UsedByTenantID
		addr.AddressType = set.AddressType
		addr.TransactionID = set.TransactionID
		addr.AllocatedAt = time.Now().UTC()
		s.ipAddresses[id] = addr
		return true, nil
	}
	return false, nil
}

func containsUUID(haystack []uuid.UUID, needle uuid.UUID) bool {
	for _, id := range haystack {
		if id == needle {
			return true
		}
	}
	return false
}

func (s *fakeStore) IPAddressFindByTransaction(ctx context.Context, rc RequestContext, txID uuid.UUID) (*IPAddress, *Subnet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, addr := range s.ipAddresses {
		if addr.TransactionID != nil && *addr.TransactionID == txID {
			cp := *addr
			return &cp, s.subnets[addr.SubnetID], nil
		}
	}
	return nil, nil, nil
}

func (s *fakeStore) IPAddressFindForUpdate(ctx context.Context, rc RequestContext, filter IPAddressFilter) (*IPAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, addr := range s.ipAddresses {
		if filter.NetworkID != uuid.Nil && addr.NetworkID != filter.NetworkID {
			continue
		}
		if len(filter.SubnetIDs) > 0 && !containsUUID(filter.SubnetIDs, addr.SubnetID) {
			continue
		}
		if filter.Address != nil && !addr.Address.Equal(*filter.Address) {
			continue
		}
		if filter.Deallocated != nil && addr.Deallocated != *filter.Deallocated {
			continue
		}
		if filter.ReuseAfter != nil && addr.DeallocatedAt != nil {
			if time.Since(*addr.DeallocatedAt) < *filter.ReuseAfter {
				continue
			}
		}
		cp := *addr
		return &cp, nil
	}
	return nil, nil
}

func (s *fakeStore) IPAddressCreate(ctx context.Context, rc RequestContext, addr IPAddress) (IPAddress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.ipAddresses {
		if existing.SubnetID == addr.SubnetID && existing.Address.Equal(addr.Address) {
			return IPAddress{}, errDuplicateAddress
		}
	}
	id, _ := uuid.NewV4()
	addr.ID = id
	addr.CreatedAt = time.Now().UTC()
	cp := addr
	s.ipAddresses[id] = &cp
	return addr, nil
}

func (s *fakeStore) IPAddressUpdate(ctx context.Context, rc RequestContext, addr IPAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := addr
	s.ipAddresses[addr.ID] = &cp
	return nil
}

func (s *fakeStore) IPAddressDelete(ctx context.Context, rc RequestContext, addr IPAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ipAddresses, addr.ID)
	return nil
}

func (s *fakeStore) IPAddressPortsAndDevices(ctx context.Context, rc RequestContext, addr IPAddress) ([]Port, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portsByAddr[addr.ID], nil
}

func (s *fakeStore) SubnetFindOrderedByMostFull(ctx context.Context, rc RequestContext, filter SubnetFilter) ([]SubnetWithCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []SubnetWithCount
	for _, sub := range s.subnets {
		if sub.DoNotUse {
			continue
		}
		if filter.NetworkID != uuid.Nil && sub.NetworkID != filter.NetworkID {
			continue
		}
		if filter.SegmentID != "" && sub.SegmentID != filter.SegmentID {
			continue
		}
		if len(filter.SubnetIDs) > 0 && !containsUUID(filter.SubnetIDs, sub.ID) {
			continue
		}
		if filter.IPVersion != 0 && sub.IPVersion != filter.IPVersion {
			continue
		}
		out = append(out, SubnetWithCount{Subnet: *sub, Count: s.countActiveInSubnet(sub.ID)})
	}
	sortSubnetsByMostFull(out)
	return out, nil
}

func (s *fakeStore) countActiveInSubnet(subnetID uuid.UUID) int64 {
	var n int64
	for _, addr := range s.ipAddresses {
		if addr.SubnetID == subnetID && !addr.Deallocated {
			n++
		}
	}
	return n
}

func (s *fakeStore) SubnetFindByIDs(ctx context.Context, rc RequestContext, netID uuid.UUID, segmentID string) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []uuid.UUID
	for _, sub := range s.subnets {
		if sub.NetworkID == netID && sub.SegmentID == segmentID {
			out = append(out, sub.ID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

func (s *fakeStore) SubnetAdvanceCursor(ctx context.Context, rc RequestContext, subnetID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subnets[subnetID]
	if !ok || sub.Full() {
		return false, nil
	}
	sub.NextAutoAssignIP = sub.NextAutoAssignIP.Add(1)
	return true, nil
}

func (s *fakeStore) SubnetMarkFull(ctx context.Context, rc RequestContext, subnetID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subnets[subnetID]
	if !ok {
		return false, nil
	}
	sub.NextAutoAssignIP = Int128FromInt64(-1)
	return true, nil
}

func (s *fakeStore) SubnetRefresh(ctx context.Context, rc RequestContext, subnetID uuid.UUID) (*Subnet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subnets[subnetID]
	if !ok {
		return nil, nil
	}
	cp := *sub
	return &cp, nil
}

func (s *fakeStore) SubnetIPPolicy(ctx context.Context, rc RequestContext, subnetID uuid.UUID) (*IPPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subnets[subnetID]
	if !ok || sub.IPPolicyID == nil {
		return nil, nil
	}
	policy, ok := s.ipPolicies[*sub.IPPolicyID]
	if !ok {
		return nil, nil
	}
	cp := *policy
	return &cp, nil
}

func (s *fakeStore) SubnetUpdateAllocationPool(ctx context.Context, rc RequestContext, subnetID uuid.UUID, name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subnets[subnetID]
	if !ok {
		return nil
	}
	sub.AllocationPoolName = name
	sub.AllocationPool = data
	return nil
}

var _ Store = (*fakeStore)(nil)
