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

// Package ipam implements the MAC and IP address allocation engine for
// tenant virtual networks: subnet selection, reuse-after policy,
// RFC 2462 / RFC 3041 v6 generation, and the ANY/BOTH/BOTH_REQUIRED
// allocation strategies, backed by a relational store.
package ipam

import (
	"time"

	"github.com/gofrs/uuid"
)

// AddressType mirrors quark.db.ip_types: the role an IPAddress currently
// plays on its port.
type AddressType string

const (
	AddressTypeFixed    AddressType = "fixed"
	AddressTypeFloating AddressType = "floating"
	AddressTypeShared   AddressType = "shared"
)

// Network is a tenant (or shared) L2 domain that owns zero or more Subnets.
type Network struct {
	ID       uuid.UUID `db:"id"`
	TenantID string    `db:"tenant_id"`
	Shared   bool      `db:"shared"`
}

// Subnet is a contiguous IP range carved out of a Network.
type Subnet struct {
	ID                 uuid.UUID  `db:"id"`
	NetworkID          uuid.UUID  `db:"network_id"`
	CIDR               string     `db:"cidr"`
	FirstIP            Int128     `db:"first_ip"`
	LastIP             Int128     `db:"last_ip"`
	IPVersion          int        `db:"ip_version"`
	NextAutoAssignIP   Int128     `db:"next_auto_assign_ip"`
	SegmentID          string     `db:"segment_id"`
	DoNotUse           bool       `db:"do_not_use"`
	IPPolicyID         *uuid.UUID `db:"ip_policy_id"`
	AllocationPoolName string     `db:"allocation_pool_name"`
	AllocationPool     []byte     `db:"allocation_pool_cache"`
	TenantID           string     `db:"tenant_id"`
}

// Full reports whether the subnet's create-path cursor has been
// exhausted. -1 is the sentinel the store primitives key conditional
// updates on.
func (s *Subnet) Full() bool {
	return s.NextAutoAssignIP.Sign() < 0
}

// IPAddress is a single allocated or deallocated address on a Subnet.
type IPAddress struct {
	ID              uuid.UUID   `db:"id"`
	Address         Int128      `db:"address"`
	AddressReadable string      `db:"address_readable"`
	Version         int         `db:"version"`
	SubnetID        uuid.UUID   `db:"subnet_id"`
	NetworkID       uuid.UUID   `db:"network_id"`
	UsedByTenantID  string      `db:"used_by_tenant_id"`
	AllocatedAt     time.Time   `db:"allocated_at"`
	Deallocated     bool        `db:"deallocated"`
	DeallocatedAt   *time.Time  `db:"deallocated_at"`
	AddressType     AddressType `db:"address_type"`
	TransactionID   *uuid.UUID  `db:"transaction_id"`
	DeviceIDs       []string    `db:"-"`
	CreatedAt       time.Time   `db:"created_at"`
}

// MacAddressRange is a contiguous block of EUI-48 addresses.
type MacAddressRange struct {
	ID                uuid.UUID `db:"id"`
	CIDR              string    `db:"cidr"`
	FirstAddress      int64     `db:"first_address"`
	LastAddress       int64     `db:"last_address"`
	NextAutoAssignMac int64     `db:"next_auto_assign_mac"`
	DoNotUse          bool      `db:"do_not_use"`
}

// Full reports whether the range's create-path cursor has been exhausted.
func (r *MacAddressRange) Full() bool {
	return r.NextAutoAssignMac == -1
}

// MacAddress is a single allocated or deallocated EUI-48 address.
type MacAddress struct {
	Address           int64      `db:"address"`
	MacAddressRangeID uuid.UUID  `db:"mac_address_range_id"`
	TenantID          string     `db:"tenant_id"`
	Deallocated       bool       `db:"deallocated"`
	DeallocatedAt     *time.Time `db:"deallocated_at"`
	TransactionID     *uuid.UUID `db:"transaction_id"`
}

// IPPolicyCIDR is one excluded CIDR within an IPPolicy.
type IPPolicyCIDR struct {
	ID      uuid.UUID `db:"id"`
	CIDR    string    `db:"cidr"`
	FirstIP Int128    `db:"first_ip"`
	LastIP  Int128    `db:"last_ip"`
}

// IPPolicy is the set of address ranges a subnet's create path must never
// hand out.
type IPPolicy struct {
	ID      uuid.UUID      `db:"id"`
	Size    int64          `db:"size"`
	Exclude []IPPolicyCIDR `db:"-"`
}

// Port is the minimal view of a virtual port the engine needs: which
// IPAddresses it currently holds, and which device it belongs to for
// notification payloads.
type Port struct {
	ID          uuid.UUID   `db:"id"`
	DeviceID    string      `db:"device_id"`
	IPAddresses []IPAddress `db:"-"`
}

// Transaction is an ephemeral claim token. Nothing but its id and
// creation time is ever read.
type Transaction struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}

// AllocationResult is what the orchestrator hands back to its caller,
// bundling the address with the device ids needed for the create/delete
// notification payload.
type AllocationResult struct {
	IPAddress
	Ports []Port
}
