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
	"net"

	netipam "peta.io/peta/pkg/network/ipam"
)

// allocationPool loads a subnet's bitmap cache, or builds a fresh one
// from its CIDR when the cache is empty, backing the
// `_allocation_pool_cache` column the original keeps per subnet. The
// engine writes this cache but never reads it to decide whether a
// subnet is exhausted; subnet selection uses live address counts.
func allocationPool(subnet Subnet) (*netipam.Range, error) {
	_, ipnet, err := net.ParseCIDR(subnet.CIDR)
	if err != nil {
		return nil, err
	}
	r := netipam.NewCIDRRange(ipnet)
	if len(subnet.AllocationPool) > 0 {
		if err := r.Restore(ipnet, subnet.AllocationPool); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// snapshotAllocationPool serializes r back into the bytes Subnet.AllocationPool
// stores, the write-back half of allocationPool.
func snapshotAllocationPool(r *netipam.Range) (string, []byte, error) {
	return r.Snapshot()
}

// markAllocated records addr as taken in the subnet's cached pool. Only
// the v4 and explicit-address create path calls it, after
// IPAddressCreate; the v6 generate path does not, and an address outside
// the range's usable offsets or a failed write-back leaves the stored
// cache unchanged, so the cache can lag the address table.
func markAllocated(subnet *Subnet, addr net.IP) error {
	r, err := allocationPool(*subnet)
	if err != nil {
		return err
	}
	if err := r.Allocate(addr); err != nil {
		return err
	}
	name, data, err := snapshotAllocationPool(r)
	if err != nil {
		return err
	}
	subnet.AllocationPoolName = name
	subnet.AllocationPool = data
	return nil
}

// markReleased mirrors markAllocated for deallocation.
func markReleased(subnet *Subnet, addr net.IP) error {
	r, err := allocationPool(*subnet)
	if err != nil {
		return err
	}
	r.Release(addr)
	name, data, err := snapshotAllocationPool(r)
	if err != nil {
		return err
	}
	subnet.AllocationPoolName = name
	subnet.AllocationPool = data
	return nil
}
