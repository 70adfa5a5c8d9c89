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

// AllocateMacAddressParams mirrors allocate_mac_address's argument list.
type AllocateMacAddressParams struct {
	NetworkID            uuid.UUID
	PortID               uuid.UUID
	ReuseAfter           time.Duration
	MacAddress           net.HardwareAddr
	UseForbiddenMacRange bool
}

func macToInt64(mac net.HardwareAddr) int64 {
	var v int64
	for _, b := range mac {
		v = v<<8 | int64(b)
	}
	return v
}

// AllocateMacAddress ports QuarkIpam.allocate_mac_address: first try to
// reclaim a deallocated MAC past its reuse-after window, then fall back
// to minting a fresh one from the fullest non-forbidden range.
func (e *Engine) AllocateMacAddress(ctx context.Context, rc RequestContext, p AllocateMacAddressParams) (MacAddress, error) {
	unlock := e.locks.lock(lockAllocateMacAddress)
	defer unlock()

	var explicit *int64
	if p.MacAddress != nil {
		v := macToInt64(p.MacAddress)
		explicit = &v
	}

	log.Infof("Attempting to allocate a new MAC address - network=%s port=%s explicit=%v",
		p.NetworkID, p.PortID, explicit)

	elevated := rc.Elevated()
	maxRetries := e.options.MacAddressRetryMax

	for retry := 0; retry < maxRetries; retry++ {
		log.Infof("Attempting to reallocate deallocated MAC (step 1 of 3), attempt %d of %d", retry+1, maxRetries)

		tx, err := e.store.TransactionCreate(ctx, elevated)
		if err != nil {
			log.Errorf("Error creating transaction for mac reallocate: %v", err)
			continue
		}

		claimed, err := e.store.MacAddressClaim(ctx, elevated, MacAddressFilter{
			ReuseAfter:    &p.ReuseAfter,
			Address:       explicit,
			TransactionID: &tx.ID,
		}, MacAddress{TransactionID: &tx.ID})
		if err != nil {
			log.Errorf("Error in mac reallocate: %v", err)
			continue
		}
		if !claimed {
			break
		}

		mac, _, err := e.store.MacAddressFindByTransaction(ctx, elevated, tx.ID)
		if err != nil {
			log.Errorf("Error finding reallocated mac: %v", err)
			continue
		}
		if mac != nil {
			log.Infof("MAC assignment for port %s completed with address %d", p.PortID, mac.Address)
			return *mac, nil
		}
	}

	log.Infoln("Couldn't find a suitable deallocated MAC, attempting to create a new one")

	for retry := 0; retry < maxRetries; retry++ {
		log.Infof("Attempting to find a range to create a new MAC in (step 2 of 3), attempt %d of %d", retry+1, maxRetries)

		rng, addrCount, err := e.store.MacAddressRangeFindMostFull(ctx, rc, explicit, p.UseForbiddenMacRange)
		if err != nil {
			log.Errorf("Error in updating mac range: %v", err)
			continue
		}
		if rng == nil {
			log.Infoln("No MAC ranges could be found given the criteria")
			break
		}

		if rng.LastAddress-rng.FirstAddress+1 <= addrCount {
			if _, err := e.store.MacRangeMarkFull(ctx, rc, rng.ID); err != nil {
				return MacAddress{}, err
			}
			log.Infof("MAC range %s is full", rng.CIDR)
			continue
		}

		var nextAddress int64
		if explicit != nil {
			nextAddress = *explicit
		} else {
			nextAddress = rng.NextAutoAssignMac
			var err error
			if nextAddress+1 > rng.LastAddress {
				_, err = e.store.MacRangeMarkFull(ctx, rc, rng.ID)
			} else {
				_, err = e.store.MacRangeAdvanceCursor(ctx, rc, rng.ID)
			}
			if err != nil {
				return MacAddress{}, err
			}
		}

		log.Infof("Attempting to create new MAC %d (step 3 of 3)", nextAddress)
		created, err := e.store.MacAddressCreate(ctx, rc, MacAddress{
			Address:           nextAddress,
			MacAddressRangeID: rng.ID,
			TenantID:          rc.TenantID,
		})
		if err != nil {
			log.Warnf("Failed to create new MAC %d: %v", nextAddress, err)
			continue
		}
		log.Infof("MAC assignment for port %s completed with address %d", p.PortID, created.Address)
		return created, nil
	}

	return MacAddress{}, &MacAddressGenerationFailure{NetworkID: p.NetworkID}
}

// DeallocateMacAddress ports deallocate_mac_address: a MAC belonging to
// a do-not-use (forbidden) range is deleted outright rather than
// returned to the reuse pool, since that range is never drawn from. A
// MAC that no longer exists is treated as already deallocated.
func (e *Engine) DeallocateMacAddress(ctx context.Context, rc RequestContext, address int64) error {
	mac, rng, err := e.store.MacAddressFind(ctx, rc, address)
	if err != nil {
		return err
	}
	if mac == nil {
		return nil
	}
	if rng != nil && rng.DoNotUse {
		return e.store.MacAddressDelete(ctx, rc, *mac)
	}
	now := time.Now().UTC()
	mac.Deallocated = true
	mac.DeallocatedAt = &now
	return e.store.MacAddressUpdate(ctx, rc, *mac)
}
