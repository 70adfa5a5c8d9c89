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
	"time"

	"github.com/gofrs/uuid"
)

// RequestContext carries the tenant scoping and admin override the store
// adapter needs for every query, mirroring quark's neutron context.
type RequestContext struct {
	TenantID string
	IsAdmin  bool
}

// Elevated returns a context that bypasses tenant scoping, used by the
// engine internally the same way quark calls context.elevated() before
// touching rows that may belong to another tenant (e.g. reclaiming a
// deallocated address).
func (c RequestContext) Elevated() RequestContext {
	return RequestContext{TenantID: c.TenantID, IsAdmin: true}
}

// IPAddressFilter is the filter DSL §4.3 describes for IPAddress queries.
type IPAddressFilter struct {
	IDs            []uuid.UUID
	NetworkID      uuid.UUID
	SubnetIDs      []uuid.UUID
	Versions       []int
	Address        *Int128
	Deallocated    *bool
	ReuseAfter     *time.Duration
	TransactionID  *uuid.UUID
	UsedByTenantID string
	PortID         *uuid.UUID
	AddressType    AddressType
}

// MacAddressFilter is the filter DSL for MacAddress queries.
type MacAddressFilter struct {
	Address       *int64
	Deallocated   *bool
	ReuseAfter    *time.Duration
	TransactionID *uuid.UUID
}

// SubnetFilter selects candidate subnets for the selector in §4.4.
type SubnetFilter struct {
	NetworkID uuid.UUID
	SegmentID string
	SubnetIDs []uuid.UUID
	IPVersion int
}

// SubnetWithCount is a Subnet paired with its live allocation count, the
// shape `subnet_find_ordered_by_most_full` returns in the original.
type SubnetWithCount struct {
	Subnet Subnet
	Count  int64
}

// Store is the database-facing contract the allocation engine depends
// on. One implementation (popStore) is production; tests substitute an
// in-memory fake satisfying the same interface.
type Store interface {
	// Transactions
	TransactionCreate(ctx context.Context, rc RequestContext) (Transaction, error)
	PurgeTransactions(ctx context.Context, olderThan time.Duration) (int, error)

	// MAC addresses
	MacAddressClaim(ctx context.Context, rc RequestContext, filter MacAddressFilter, set MacAddress) (bool, error)
	MacAddressFindByTransaction(ctx context.Context, rc RequestContext, txID uuid.UUID) (*MacAddress, *MacAddressRange, error)
	MacAddressFind(ctx context.Context, rc RequestContext, address int64) (*MacAddress, *MacAddressRange, error)
	MacAddressCreate(ctx context.Context, rc RequestContext, mac MacAddress) (MacAddress, error)
	MacAddressUpdate(ctx context.Context, rc RequestContext, mac MacAddress) error
	MacAddressDelete(ctx context.Context, rc RequestContext, mac MacAddress) error
	MacAddressRangeFindMostFull(ctx context.Context, rc RequestContext, address *int64, includeForbidden bool) (*MacAddressRange, int64, error)
	MacRangeAdvanceCursor(ctx context.Context, rc RequestContext, rangeID uuid.UUID) (bool, error)
	MacRangeMarkFull(ctx context.Context, rc RequestContext, rangeID uuid.UUID) (bool, error)

	// IP addresses
	IPAddressClaim(ctx context.Context, rc RequestContext, filter IPAddressFilter, set IPAddress) (bool, error)
	IPAddressFindByTransaction(ctx context.Context, rc RequestContext, txID uuid.UUID) (*IPAddress, *Subnet, error)
	IPAddressFindForUpdate(ctx context.Context, rc RequestContext, filter IPAddressFilter) (*IPAddress, error)
	IPAddressCreate(ctx context.Context, rc RequestContext, addr IPAddress) (IPAddress, error)
	IPAddressUpdate(ctx context.Context, rc RequestContext, addr IPAddress) error
	IPAddressDelete(ctx context.Context, rc RequestContext, addr IPAddress) error
	IPAddressPortsAndDevices(ctx context.Context, rc RequestContext, addr IPAddress) ([]Port, error)

	// Subnets
	SubnetFindOrderedByMostFull(ctx context.Context, rc RequestContext, filter SubnetFilter) ([]SubnetWithCount, error)
	SubnetFindByIDs(ctx context.Context, rc RequestContext, netID uuid.UUID, segmentID string) ([]uuid.UUID, error)
	SubnetAdvanceCursor(ctx context.Context, rc RequestContext, subnetID uuid.UUID) (bool, error)
	SubnetMarkFull(ctx context.Context, rc RequestContext, subnetID uuid.UUID) (bool, error)
	SubnetRefresh(ctx context.Context, rc RequestContext, subnetID uuid.UUID) (*Subnet, error)
	SubnetIPPolicy(ctx context.Context, rc RequestContext, subnetID uuid.UUID) (*IPPolicy, error)
	SubnetUpdateAllocationPool(ctx context.Context, rc RequestContext, subnetID uuid.UUID, name string, data []byte) error
}
