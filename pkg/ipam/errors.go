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
	"fmt"

	"github.com/gofrs/uuid"
)

// MacAddressGenerationFailure is terminal: every MAC allocation phase was
// exhausted without producing a usable address.
type MacAddressGenerationFailure struct {
	NetworkID uuid.UUID
}

func (e *MacAddressGenerationFailure) Error() string {
	return fmt.Sprintf("unable to generate a MAC address for network %s", e.NetworkID)
}

// IpAddressGenerationFailure is terminal: every IP allocation phase was
// exhausted, or the active strategy was not satisfied.
type IpAddressGenerationFailure struct {
	NetworkID uuid.UUID
}

func (e *IpAddressGenerationFailure) Error() string {
	return fmt.Sprintf("unable to generate an IP address for network %s", e.NetworkID)
}

// IpAddressInUse is terminal: an explicitly requested address already
// exists in its subnet.
type IpAddressInUse struct {
	Address   string
	NetworkID uuid.UUID
}

func (e *IpAddressInUse) Error() string {
	return fmt.Sprintf("IP address %s is already in use on network %s", e.Address, e.NetworkID)
}

// retryableIPAddressFailure marks an error as caught and retried inside
// the engine rather than surfaced to the caller, per §7's classification
// of IPAddressRetryableFailure and IPAddressPolicyRetryableFailure as
// the two retryable kinds.
type retryableIPAddressFailure interface {
	error
	retryable()
}

// IPAddressRetryableFailure is transient: caught inside the engine and
// retried with a fresh attempt, never surfaced to the caller directly.
type IPAddressRetryableFailure struct {
	Address   string
	NetworkID uuid.UUID
}

func (e *IPAddressRetryableFailure) Error() string {
	return fmt.Sprintf("retryable failure allocating %s on network %s", e.Address, e.NetworkID)
}

func (e *IPAddressRetryableFailure) retryable() {}

// IPAddressPolicyRetryableFailure is transient: the candidate address
// violated its subnet's IP policy; the caller should retry with a
// different candidate.
type IPAddressPolicyRetryableFailure struct {
	Address   string
	NetworkID uuid.UUID
}

func (e *IPAddressPolicyRetryableFailure) Error() string {
	return fmt.Sprintf("address %s on network %s excluded by IP policy", e.Address, e.NetworkID)
}

func (e *IPAddressPolicyRetryableFailure) retryable() {}

var (
	_ retryableIPAddressFailure = (*IPAddressRetryableFailure)(nil)
	_ retryableIPAddressFailure = (*IPAddressPolicyRetryableFailure)(nil)
)

// IPAddressNotInSubnet is terminal: an explicit address doesn't belong
// to a caller-pinned subnet.
type IPAddressNotInSubnet struct {
	Address  string
	SubnetID uuid.UUID
}

func (e *IPAddressNotInSubnet) Error() string {
	return fmt.Sprintf("IP address %s is not in subnet %s", e.Address, e.SubnetID)
}
