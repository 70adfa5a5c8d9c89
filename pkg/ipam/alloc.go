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
	"net"
	"time"

	"github.com/gofrs/uuid"

	"peta.io/peta/pkg/log"
)

// AllocateIPAddressParams mirrors allocate_ip_address's argument list.
type AllocateIPAddressParams struct {
	NetworkID   uuid.UUID
	PortID      uuid.UUID
	ReuseAfter  time.Duration
	SegmentID   string
	Version     int
	IPAddresses []Int128
	SubnetIDs   []uuid.UUID
	MacAddress  net.HardwareAddr
	AddressType AddressType
}

// attemptToReallocateIP ports QuarkIpam.attempt_to_reallocate_ip. A v6
// request always defers to the create path (see the Open Question this
// preserves in SPEC_FULL.md): generating a v6 candidate needs the
// subnet anyway, so reallocate and create would redundantly look up
// the same subnets twice.
func (e *Engine) attemptToReallocateIP(ctx context.Context, rc RequestContext, p AllocateIPAddressParams, ipAddress *Int128, attemptLog *AttemptLog) ([]IPAddress, error) {
	unlock := e.locks.lock(lockReallocateIP)
	defer unlock()

	if p.Version == 6 {
		log.Infoln("Identified as v6 case, deferring to IP create path")
		return nil, nil
	}

	elevated := rc.Elevated()

	subnetIDs := p.SubnetIDs
	if len(subnetIDs) == 0 && p.SegmentID != "" {
		ids, err := e.store.SubnetFindByIDs(ctx, elevated, p.NetworkID, p.SegmentID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			log.Infof("No subnets matching segment_id %s could be found", p.SegmentID)
			return nil, &IpAddressGenerationFailure{NetworkID: p.NetworkID}
		}
		subnetIDs = ids
	}

	filter := IPAddressFilter{
		NetworkID:  p.NetworkID,
		SubnetIDs:  subnetIDs,
		ReuseAfter: &p.ReuseAfter,
	}
	if ipAddress != nil {
		filter.Address = ipAddress
	}

	addrType := p.AddressType
	if addrType == "" {
		addrType = AddressTypeFixed
	}

	for retry := 0; retry < e.options.IPAddressRetryMax; retry++ {
		var entry *AttemptLogEntry
		if attemptLog != nil {
			entry = attemptLog.MakeEntry("attempt_to_reallocate_ip", KindIPReuse)
		}
		log.Infof("Attempt %d of %d", retry+1, e.options.IPAddressRetryMax)

		tx, err := e.store.TransactionCreate(ctx, elevated)
		if err != nil {
			if entry != nil {
				entry.Failed()
				entry.End()
			}
			log.Errorf("Error in reallocate ip: %v", err)
			continue
		}

		claimed, err := e.store.IPAddressClaim(ctx, elevated, filter, IPAddress{
			UsedByTenantID: rc.TenantID,
			AddressType:    addrType,
			TransactionID:  &tx.ID,
		})
		if err != nil {
			if entry != nil {
				entry.Failed()
				entry.End()
			}
			log.Errorf("Error in reallocate ip: %v", err)
			continue
		}
		if !claimed {
			log.Infoln("Couldn't update any reallocatable addresses given the criteria")
			if entry != nil {
				entry.Failed()
				entry.End()
			}
			break
		}

		updated, subnet, err := e.store.IPAddressFindByTransaction(ctx, elevated, tx.ID)
		if err != nil || updated == nil {
			if entry != nil {
				entry.Failed()
			}
			if entry != nil {
				entry.End()
			}
			continue
		}

		if subnet != nil {
			_, ipnet, cerr := cidrBase(subnet.CIDR)
			policy, perr := e.store.SubnetIPPolicy(ctx, elevated, subnet.ID)
			if cerr == nil && perr == nil && (!contains(ipnet, updated.Address, updated.Version) || NewPolicyCIDRSet(policy).Contains(updated.Address)) {
				log.Infof("Reallocated address %s is outside its subnet or excluded by policy, deleting it", updated.AddressReadable)
				_ = e.store.IPAddressDelete(ctx, elevated, *updated)
				if entry != nil {
					entry.Failed()
					entry.End()
				}
				continue
			}
		}

		log.Infof("Address %s is reallocated", updated.AddressReadable)
		if entry != nil {
			entry.End()
		}
		return []IPAddress{*updated}, nil
	}
	return nil, nil
}

// allocateFromSubnet ports _allocate_from_subnet: the v4 (and explicit-
// address) create path, consuming the subnet's cursor.
func (e *Engine) allocateFromSubnet(ctx context.Context, rc RequestContext, networkID uuid.UUID, subnet Subnet, portID uuid.UUID, ipAddress *Int128, addrType AddressType) (IPAddress, error) {
	policy, err := e.store.SubnetIPPolicy(ctx, rc, subnet.ID)
	if err != nil {
		return IPAddress{}, err
	}
	policySet := NewPolicyCIDRSet(policy)

	var nextIP Int128
	if ipAddress != nil {
		nextIP = *ipAddress
	} else if !subnet.Full() {
		nextIP = subnet.NextAutoAssignIP.Add(-1)
	} else {
		nextIP = subnet.LastIP
	}

	log.Infof("Next IP is %s", nextIP.String())
	if ipAddress == nil && policySet.Contains(nextIP) {
		log.Infof("Next IP %s violates policy", nextIP.String())
		return IPAddress{}, &IPAddressPolicyRetryableFailure{Address: nextIP.String(), NetworkID: networkID}
	}

	if addrType == "" {
		addrType = AddressTypeFixed
	}
	created, err := e.store.IPAddressCreate(ctx, rc, IPAddress{
		Address:         nextIP,
		AddressReadable: nextIP.IP(subnet.IPVersion).String(),
		Version:         subnet.IPVersion,
		SubnetID:        subnet.ID,
		NetworkID:       networkID,
		UsedByTenantID:  rc.TenantID,
		AddressType:     addrType,
		AllocatedAt:     time.Now().UTC(),
	})
	if err != nil {
		if ipAddress != nil {
			return IPAddress{}, &IpAddressInUse{Address: nextIP.String(), NetworkID: networkID}
		}
		return IPAddress{}, &IPAddressRetryableFailure{Address: nextIP.String(), NetworkID: networkID}
	}

	if err := markAllocated(&subnet, nextIP.IP(subnet.IPVersion)); err == nil {
		_ = e.store.SubnetUpdateAllocationPool(ctx, rc, subnet.ID, subnet.AllocationPoolName, subnet.AllocationPool)
	}
	return created, nil
}

// allocateFromV6Subnet ports _allocate_from_v6_subnet: RFC 2462/3041
// generation with a find-or-create loop per candidate.
func (e *Engine) allocateFromV6Subnet(ctx context.Context, rc RequestContext, networkID uuid.UUID, subnet Subnet, portID uuid.UUID, reuseAfter time.Duration, ipAddress *Int128, mac net.HardwareAddr, addrType AddressType) (*IPAddress, error) {
	if ipAddress != nil {
		log.Infof("IP %s explicitly requested, deferring to standard allocation", ipAddress.String())
		addr, err := e.allocateFromSubnet(ctx, rc, networkID, subnet, portID, ipAddress, addrType)
		if err != nil {
			return nil, err
		}
		return &addr, nil
	}

	policy, err := e.store.SubnetIPPolicy(ctx, rc, subnet.ID)
	if err != nil {
		return nil, err
	}
	policySet := NewPolicyCIDRSet(policy)

	base, _, err := cidrBase(subnet.CIDR)
	if err != nil {
		return nil, err
	}

	if addrType == "" {
		addrType = AddressTypeFixed
	}

	tries := 0
	for candidate := range generateV6(mac, portID, base) {
		if tries > e.options.V6AllocationAttempts-1 {
			log.Infoln("Exceeded v6 allocation attempts, bailing")
			return nil, &IpAddressGenerationFailure{NetworkID: networkID}
		}
		log.Infof("Attempt %d of %d", tries+1, e.options.V6AllocationAttempts)
		tries++

		log.Infof("Generated a new v6 address %s", candidate.String())
		if policySet.Contains(candidate) {
			log.Infof("Address %s excluded by policy", candidate.String())
			continue
		}

		found, err := e.store.IPAddressFindForUpdate(ctx, rc, IPAddressFilter{
			NetworkID:   networkID,
			Address:     &candidate,
			SubnetIDs:   []uuid.UUID{subnet.ID},
			ReuseAfter:  &reuseAfter,
			Deallocated: boolPtr(true),
		})
		if err != nil {
			return nil, err
		}
		if found != nil {
			log.Infof("Address %s exists, claiming", candidate.String())
			found.Deallocated = false
			found.DeallocatedAt = nil
			found.UsedByTenantID = rc.TenantID
			found.AllocatedAt = time.Now().UTC()
			found.AddressType = addrType
			if err := e.store.IPAddressUpdate(ctx, rc, *found); err != nil {
				return nil, err
			}
			return found, nil
		}

		created, err := e.store.IPAddressCreate(ctx, rc, IPAddress{
			Address:         candidate,
			AddressReadable: candidate.IP(6).String(),
			Version:         6,
			SubnetID:        subnet.ID,
			NetworkID:       networkID,
			UsedByTenantID:  rc.TenantID,
			AddressType:     addrType,
			AllocatedAt:     time.Now().UTC(),
		})
		if err != nil {
			// Duplicate insert: another request beat us to this exact
			// candidate. Try the next one in the deterministic stream.
			log.Infof("%s exists but was already allocated", candidate.String())
			continue
		}
		return &created, nil
	}
	return nil, &IpAddressGenerationFailure{NetworkID: networkID}
}

func boolPtr(b bool) *bool { return &b }

// allocateIPsFromSubnets ports _allocate_ips_from_subnets, dispatching
// each candidate subnet to the v4 or v6 create path by version.
func (e *Engine) allocateIPsFromSubnets(ctx context.Context, rc RequestContext, networkID, portID uuid.UUID, subnets []Subnet, reuseAfter time.Duration, ipAddress *Int128, mac net.HardwareAddr, addrType AddressType) ([]IPAddress, error) {
	var out []IPAddress
	for _, subnet := range subnets {
		var addr *IPAddress
		if subnet.IPVersion == 4 {
			created, err := e.allocateFromSubnet(ctx, rc, networkID, subnet, portID, ipAddress, addrType)
			if err != nil {
				return out, err
			}
			addr = &created
		} else {
			a, err := e.allocateFromV6Subnet(ctx, rc, networkID, subnet, portID, reuseAfter, ipAddress, mac, addrType)
			if err != nil {
				return out, err
			}
			addr = a
		}
		if addr != nil {
			log.Infof("Created IP %s", addr.AddressReadable)
			out = append(out, *addr)
		}
	}
	return out, nil
}

// AllocateIPAddress ports allocate_ip_address, the top-level
// orchestrator: try reallocation first, fall back to creation, and
// notify only once the active strategy is fully satisfied.
func (e *Engine) AllocateIPAddress(ctx context.Context, rc RequestContext, p AllocateIPAddressParams) ([]IPAddress, error) {
	attemptLog := NewAttemptLog()
	defer attemptLog.End()

	strategy := e.strategy
	var newAddresses []IPAddress

	tryReallocate := func(ip *Int128) error {
		reallocated, err := e.attemptToReallocateIP(ctx, rc, p, ip, attemptLog)
		if err != nil {
			return err
		}
		newAddresses = append(newAddresses, reallocated...)
		return nil
	}

	if len(p.IPAddresses) > 0 {
		for i := range p.IPAddresses {
			if err := tryReallocate(&p.IPAddresses[i]); err != nil {
				return nil, err
			}
		}
	} else {
		if err := tryReallocate(nil); err != nil {
			return nil, err
		}
	}

	if strategy.IsSatisfied(newAddresses, false) {
		return newAddresses, nil
	}
	log.Infof("Reallocated addresses but still need more to satisfy strategy %s; falling back to creating IPs", strategy.Name())

	tryAllocate := func(ip *Int128, pinnedSubnet *uuid.UUID) error {
		for retry := 0; retry < e.options.IPAddressRetryMax; retry++ {
			entry := attemptLog.MakeEntry("_try_allocate_ip_address", KindIPNew)
			log.Infof("Allocating new IP attempt %d of %d", retry+1, e.options.IPAddressRetryMax)

			var subnets []Subnet
			if pinnedSubnet == nil {
				chosen, err := strategy.ChooseAvailableSubnets(ctx, e, rc, chooseSubnetsParams{
					networkID: p.NetworkID, version: p.Version, segmentID: p.SegmentID,
					ipAddress: ip, reallocated: newAddresses,
				})
				if err != nil {
					entry.Failed()
					entry.End()
					return err
				}
				subnets = chosen
			} else {
				sub, err := e.selectSubnet(ctx, rc, selectSubnetParams{
					networkID: p.NetworkID, ipAddress: ip, segmentID: p.SegmentID,
					subnetIDs: []uuid.UUID{*pinnedSubnet}, version: p.Version,
				})
				if err != nil {
					entry.Failed()
					entry.End()
					return err
				}
				if sub != nil {
					subnets = []Subnet{*sub}
				}
			}

			created, err := e.allocateIPsFromSubnets(ctx, rc, p.NetworkID, p.PortID, subnets, p.ReuseAfter, ip, p.MacAddress, p.AddressType)
			newAddresses = append(newAddresses, created...)
			if _, retryable := err.(retryableIPAddressFailure); retryable {
				entry.Failed()
				entry.End()
				remaining := e.options.IPAddressRetryMax - retry - 1
				if remaining > 0 {
					log.Infof("%d retries remain, retrying...", remaining)
				} else {
					log.Infoln("No retries remaining, bailing")
				}
				continue
			}
			entry.End()
			if err != nil {
				return err
			}
			break
		}
		return nil
	}

	switch {
	case len(p.IPAddresses) > 0 || len(p.SubnetIDs) > 0:
		n := len(p.IPAddresses)
		if len(p.SubnetIDs) > n {
			n = len(p.SubnetIDs)
		}
		for i := 0; i < n; i++ {
			var ip *Int128
			if i < len(p.IPAddresses) {
				ip = &p.IPAddresses[i]
			}
			var sub *uuid.UUID
			if i < len(p.SubnetIDs) {
				sub = &p.SubnetIDs[i]
			}
			if err := tryAllocate(ip, sub); err != nil {
				return newAddresses, err
			}
		}
	default:
		if err := tryAllocate(nil, nil); err != nil {
			return newAddresses, err
		}
	}

	if strategy.IsSatisfied(newAddresses, true) {
		for _, addr := range newAddresses {
			ports, err := e.store.IPAddressPortsAndDevices(ctx, rc, addr)
			if err != nil {
				return newAddresses, err
			}
			deviceIDs := make([]string, 0, len(ports))
			for _, port := range ports {
				deviceIDs = append(deviceIDs, port.DeviceID)
			}
			e.notifier.AddressCreated(AddressEventPayload{
				UsedByTenantID: addr.UsedByTenantID,
				IPBlockID:      addr.SubnetID.String(),
				IPAddress:      addr.AddressReadable,
				DeviceIDs:      deviceIDs,
				CreatedAt:      addr.CreatedAt,
			})
		}
		log.Infof("IPAM for port %s completed with %d address(es)", p.PortID, len(newAddresses))
		return newAddresses, nil
	}

	attemptLog.Failed()
	return newAddresses, &IpAddressGenerationFailure{NetworkID: p.NetworkID}
}

// DeallocateIPAddress ports deallocate_ip_address.
func (e *Engine) DeallocateIPAddress(ctx context.Context, rc RequestContext, addr IPAddress) error {
	ports, err := e.store.IPAddressPortsAndDevices(ctx, rc, addr)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	addr.Deallocated = true
	addr.AddressType = ""
	addr.DeallocatedAt = &now
	if err := e.store.IPAddressUpdate(ctx, rc, addr); err != nil {
		return err
	}

	if subnet, err := e.store.SubnetRefresh(ctx, rc, addr.SubnetID); err == nil && subnet != nil {
		if poolErr := markReleased(subnet, addr.Address.IP(addr.Version)); poolErr == nil {
			_ = e.store.SubnetUpdateAllocationPool(ctx, rc, subnet.ID, subnet.AllocationPoolName, subnet.AllocationPool)
		}
	}

	deviceIDs := make([]string, 0, len(ports))
	for _, port := range ports {
		deviceIDs = append(deviceIDs, port.DeviceID)
	}
	e.notifier.AddressDeleted(AddressEventPayload{
		UsedByTenantID: addr.UsedByTenantID,
		IPBlockID:      addr.SubnetID.String(),
		IPAddress:      addr.AddressReadable,
		DeviceIDs:      deviceIDs,
		CreatedAt:      addr.CreatedAt,
		DeletedAt:      now,
	})
	return nil
}

// DeallocateIPsByPort ports deallocate_ips_by_port: an address is only
// returned to the pool when this port is its sole remaining holder,
// matching the "len(addr.ports) == 1" check in the original. explicitIP,
// when non-nil, restricts the operation to a single matching address.
func (e *Engine) DeallocateIPsByPort(ctx context.Context, rc RequestContext, port Port, explicitIP *Int128) error {
	for _, addr := range port.IPAddresses {
		if explicitIP != nil && !addr.Address.Equal(*explicitIP) {
			continue
		}
		ports, err := e.store.IPAddressPortsAndDevices(ctx, rc, addr)
		if err != nil {
			return err
		}
		if len(ports) == 1 {
			if err := e.DeallocateIPAddress(ctx, rc, addr); err != nil {
				return err
			}
		}
	}
	return nil
}
