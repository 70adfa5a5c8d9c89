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
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
)

func newTestEngine(store Store) *Engine {
	opts := NewOptions()
	opts.MacAddressRetryMax = 5
	opts.IPAddressRetryMax = 5
	opts.V6AllocationAttempts = 5
	return NewEngine(store, opts, NewNoopNotifier())
}

func TestAllocateMacAddressCreatesFromEmptyRange(t *testing.T) {
	store := newFakeStore()
	rangeID, err := uuid.NewV4()
	require.NoError(t, err)
	store.macRanges[rangeID] = &MacAddressRange{
		ID: rangeID, CIDR: "aa:bb:cc:00:00:00/24",
		FirstAddress: 1, LastAddress: 5, NextAutoAssignMac: 1,
	}

	engine := newTestEngine(store)
	netID, _ := uuid.NewV4()
	portID, _ := uuid.NewV4()

	mac, err := engine.AllocateMacAddress(context.Background(), RequestContext{TenantID: "tenant-a"}, AllocateMacAddressParams{
		NetworkID: netID, PortID: portID, ReuseAfter: time.Minute,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), mac.Address)
	require.Equal(t, rangeID, mac.MacAddressRangeID)
	require.Equal(t, int64(2), store.macRanges[rangeID].NextAutoAssignMac)
}

func TestAllocateMacAddressMarksRangeFullWhenCursorExhausted(t *testing.T) {
	store := newFakeStore()
	rangeID, _ := uuid.NewV4()
	store.macRanges[rangeID] = &MacAddressRange{
		ID: rangeID, FirstAddress: 1, LastAddress: 1, NextAutoAssignMac: 1,
	}

	engine := newTestEngine(store)
	netID, _ := uuid.NewV4()
	portID, _ := uuid.NewV4()

	mac, err := engine.AllocateMacAddress(context.Background(), RequestContext{TenantID: "tenant-a"}, AllocateMacAddressParams{
		NetworkID: netID, PortID: portID, ReuseAfter: time.Minute,
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), mac.Address)
	require.True(t, store.macRanges[rangeID].Full())
}

func TestAllocateMacAddressReusesDeallocatedAddress(t *testing.T) {
	store := newFakeStore()
	rangeID, _ := uuid.NewV4()
	store.macRanges[rangeID] = &MacAddressRange{ID: rangeID, FirstAddress: 1, LastAddress: 10, NextAutoAssignMac: 5}

	past := time.Now().UTC().Add(-time.Hour)
	store.macAddresses[2] = &MacAddress{
		Address: 2, MacAddressRangeID: rangeID, TenantID: "old-tenant",
		Deallocated: true, DeallocatedAt: &past,
	}

	engine := newTestEngine(store)
	netID, _ := uuid.NewV4()
	portID, _ := uuid.NewV4()

	mac, err := engine.AllocateMacAddress(context.Background(), RequestContext{TenantID: "tenant-b"}, AllocateMacAddressParams{
		NetworkID: netID, PortID: portID, ReuseAfter: time.Minute,
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), mac.Address)
	require.False(t, mac.Deallocated)
}

func TestAllocateMacAddressSkipsRecentlyDeallocatedAddress(t *testing.T) {
	store := newFakeStore()
	rangeID, _ := uuid.NewV4()
	store.macRanges[rangeID] = &MacAddressRange{ID: rangeID, FirstAddress: 1, LastAddress: 10, NextAutoAssignMac: 5}

	recent := time.Now().UTC()
	store.macAddresses[2] = &MacAddress{
		Address: 2, MacAddressRangeID: rangeID,
		Deallocated: true, DeallocatedAt: &recent,
	}

	engine := newTestEngine(store)
	netID, _ := uuid.NewV4()
	portID, _ := uuid.NewV4()

	mac, err := engine.AllocateMacAddress(context.Background(), RequestContext{TenantID: "tenant-b"}, AllocateMacAddressParams{
		NetworkID: netID, PortID: portID, ReuseAfter: time.Hour,
	})
	require.NoError(t, err)
	// The recently-deallocated address is still inside its reuse-after
	// window, so a fresh address is minted from the range's cursor.
	require.Equal(t, int64(5), mac.Address)
}

func TestAllocateMacAddressFailsWithoutRanges(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	netID, _ := uuid.NewV4()
	portID, _ := uuid.NewV4()

	_, err := engine.AllocateMacAddress(context.Background(), RequestContext{}, AllocateMacAddressParams{
		NetworkID: netID, PortID: portID, ReuseAfter: time.Minute,
	})
	require.Error(t, err)
	require.IsType(t, &MacAddressGenerationFailure{}, err)
}

func TestDeallocateMacAddressReturnsToPool(t *testing.T) {
	store := newFakeStore()
	rangeID, _ := uuid.NewV4()
	store.macRanges[rangeID] = &MacAddressRange{ID: rangeID}
	store.macAddresses[3] = &MacAddress{Address: 3, MacAddressRangeID: rangeID}

	engine := newTestEngine(store)
	require.NoError(t, engine.DeallocateMacAddress(context.Background(), RequestContext{}, 3))

	require.True(t, store.macAddresses[3].Deallocated)
	require.NotNil(t, store.macAddresses[3].DeallocatedAt)
}

func TestDeallocateMacAddressOnUnknownAddressIsANoop(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(store)
	require.NoError(t, engine.DeallocateMacAddress(context.Background(), RequestContext{}, 999))
}

func TestDeallocateMacAddressDeletesForbiddenRangeAddress(t *testing.T) {
	store := newFakeStore()
	rangeID, _ := uuid.NewV4()
	store.macRanges[rangeID] = &MacAddressRange{ID: rangeID, DoNotUse: true}
	store.macAddresses[4] = &MacAddress{Address: 4, MacAddressRangeID: rangeID}

	engine := newTestEngine(store)
	require.NoError(t, engine.DeallocateMacAddress(context.Background(), RequestContext{}, 4))

	_, ok := store.macAddresses[4]
	require.False(t, ok)
}
