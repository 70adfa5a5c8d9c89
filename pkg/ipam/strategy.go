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
	"peta.io/peta/pkg/utils/sliceutils"
)

// StrategyName identifies one of the registered allocation strategies.
type StrategyName string

const (
	StrategyAny          StrategyName = "ANY"
	StrategyBoth         StrategyName = "BOTH"
	StrategyBothRequired StrategyName = "BOTH_REQUIRED"
)

// chooseSubnetsParams bundles the arguments _choose_available_subnet
// takes, trimmed to what the Go port needs.
type chooseSubnetsParams struct {
	networkID   uuid.UUID
	version     int
	segmentID   string
	ipAddress   *Int128
	reallocated []IPAddress
}

// Strategy decides which subnets to draw from and when enough addresses
// have been produced to satisfy a single allocate_ip_address call.
type Strategy interface {
	Name() StrategyName
	// IsSatisfied reports whether new is enough to stop, given whether
	// the create-path fallback has already run.
	IsSatisfied(newAddresses []IPAddress, allocateComplete bool) bool
	// ChooseAvailableSubnets asks the engine (via e) for the subnet(s)
	// this strategy wants to try next.
	ChooseAvailableSubnets(ctx context.Context, e *Engine, rc RequestContext, p chooseSubnetsParams) ([]Subnet, error)
}

var strategyRegistry = map[StrategyName]Strategy{
	StrategyAny:          anyStrategy{},
	StrategyBoth:         bothStrategy{},
	StrategyBothRequired: bothRequiredStrategy{},
}

// GetStrategy resolves name, falling back to defaultName with a warning
// when name isn't registered, mirroring IpamRegistry.get_strategy.
func GetStrategy(name, defaultName string) Strategy {
	if s, ok := strategyRegistry[StrategyName(name)]; ok {
		return s
	}
	log.Warnln("IPAM strategy", name, "not found, using default", defaultName)
	return strategyRegistry[StrategyName(defaultName)]
}

// anyStrategy is satisfied by a single address of either version.
type anyStrategy struct{}

func (anyStrategy) Name() StrategyName { return StrategyAny }

func (anyStrategy) IsSatisfied(newAddresses []IPAddress, _ bool) bool {
	return len(newAddresses) > 0
}

func (anyStrategy) ChooseAvailableSubnets(ctx context.Context, e *Engine, rc RequestContext, p chooseSubnetsParams) ([]Subnet, error) {
	sub, err := e.selectSubnet(ctx, rc, selectSubnetParams{
		networkID: p.networkID, ipAddress: p.ipAddress, segmentID: p.segmentID, version: p.version,
	})
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, &IpAddressGenerationFailure{NetworkID: p.networkID}
	}
	return []Subnet{*sub}, nil
}

// bothStrategy requires one address of each version, but tolerates
// partial success once the create path has also run.
type bothStrategy struct{}

func (bothStrategy) Name() StrategyName { return StrategyBoth }

func remainingVersions(addresses []IPAddress) []int {
	have := make([]int, 0, len(addresses))
	for _, a := range addresses {
		have = append(have, a.Version)
	}
	return sliceutils.LeftDiff([]int{4, 6}, have)
}

func (bothStrategy) IsSatisfied(newAddresses []IPAddress, allocateComplete bool) bool {
	remaining := remainingVersions(newAddresses)
	if len(remaining) == 0 {
		return true
	}
	return len(remaining) == 1 && allocateComplete
}

func (bothStrategy) ChooseAvailableSubnets(ctx context.Context, e *Engine, rc RequestContext, p chooseSubnetsParams) ([]Subnet, error) {
	var subnets []Subnet
	for _, version := range remainingVersions(p.reallocated) {
		sub, err := e.selectSubnet(ctx, rc, selectSubnetParams{
			networkID: p.networkID, ipAddress: p.ipAddress, segmentID: p.segmentID, version: version,
		})
		if err != nil {
			return nil, err
		}
		if sub != nil {
			subnets = append(subnets, *sub)
		}
	}
	if len(p.reallocated) == 0 && len(subnets) == 0 {
		return nil, &IpAddressGenerationFailure{NetworkID: p.networkID}
	}
	return subnets, nil
}

// bothRequiredStrategy is BOTH with no partial-success tolerance: every
// call must end with one address of each version.
type bothRequiredStrategy struct{}

func (bothRequiredStrategy) Name() StrategyName { return StrategyBothRequired }

func (bothRequiredStrategy) IsSatisfied(newAddresses []IPAddress, _ bool) bool {
	return len(remainingVersions(newAddresses)) == 0
}

func (bothRequiredStrategy) ChooseAvailableSubnets(ctx context.Context, e *Engine, rc RequestContext, p chooseSubnetsParams) ([]Subnet, error) {
	subnets, err := (bothStrategy{}).ChooseAvailableSubnets(ctx, e, rc, p)
	if err != nil {
		return nil, err
	}
	if len(p.reallocated)+len(subnets) < 2 {
		return nil, &IpAddressGenerationFailure{NetworkID: p.networkID}
	}
	return subnets, nil
}
