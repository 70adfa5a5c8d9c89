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

	"github.com/gofrs/uuid"

	"peta.io/peta/pkg/log"
)

type selectSubnetParams struct {
	networkID uuid.UUID
	ipAddress *Int128
	segmentID string
	subnetIDs []uuid.UUID
	version   int
}

// selectSubnet walks candidate subnets most-full-first and returns the
// first one with room, advancing (or exhausting) its create-path
// cursor along the way. Ports select_subnet from the original,
// including the bounds check noted there as deliberately retained even
// though the single atomic cursor update should make it redundant.
func (e *Engine) selectSubnet(ctx context.Context, rc RequestContext, p selectSubnetParams) (*Subnet, error) {
	unlock := e.locks.lock(lockSelectSubnet)
	defer unlock()

	log.Infof("Selecting subnet(s) - network=%s ip=%v segment=%s version=%d",
		p.networkID, p.ipAddress, p.segmentID, p.version)

	candidates, err := e.store.SubnetFindOrderedByMostFull(ctx, rc, SubnetFilter{
		NetworkID: p.networkID,
		SegmentID: p.segmentID,
		SubnetIDs: p.subnetIDs,
		IPVersion: p.version,
	})
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		log.Infoln("No subnets found given the search criteria")
	}

	for _, candidate := range candidates {
		subnet := candidate.Subnet
		_, ipnet, err := cidrBase(subnet.CIDR)
		if err != nil {
			return nil, err
		}

		if p.ipAddress != nil {
			if !contains(ipnet, *p.ipAddress, subnet.IPVersion) {
				if len(p.subnetIDs) > 0 {
					return nil, &IPAddressNotInSubnet{Address: p.ipAddress.String(), SubnetID: subnet.ID}
				}
				continue
			}
		}

		var policy *IPPolicy
		if p.ipAddress == nil {
			policy, err = e.store.SubnetIPPolicy(ctx, rc, subnet.ID)
			if err != nil {
				return nil, err
			}
		}
		var policySize int64
		if policy != nil {
			policySize = policy.Size
		}

		netSize := cidrSize(ipnet)
		if netSize > (candidate.Count + policySize - 1) {
			if p.ipAddress == nil && subnet.IPVersion == 4 {
				inBounds := subnet.NextAutoAssignIP.Sign() >= 0 &&
					subnet.NextAutoAssignIP.Cmp(subnet.FirstIP) >= 0 &&
					subnet.NextAutoAssignIP.Cmp(subnet.LastIP) <= 0

				var updated bool
				if !inBounds {
					log.Infof("Marking subnet %s as full", subnet.ID)
					updated, err = e.store.SubnetMarkFull(ctx, rc, subnet.ID)
				} else {
					updated, err = e.store.SubnetAdvanceCursor(ctx, rc, subnet.ID)
				}
				if err != nil {
					return nil, err
				}
				if !updated {
					// Someone else marked it full between our read and
					// write; fall back out to the caller's retry loop.
					return nil, nil
				}
				refreshed, err := e.store.SubnetRefresh(ctx, rc, subnet.ID)
				if err != nil {
					return nil, err
				}
				subnet = *refreshed
			}
			log.Infof("Subnet %s - %s looks viable, returning", subnet.ID, subnet.CIDR)
			return &subnet, nil
		}

		log.Infof("Marking subnet %s as full", subnet.ID)
		if _, err := e.store.SubnetMarkFull(ctx, rc, subnet.ID); err != nil {
			return nil, err
		}
	}

	return nil, nil
}
