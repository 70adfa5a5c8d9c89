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

import "sort"

// PolicyCIDRSet is the evaluated form of an IPPolicy: a sorted,
// non-overlapping set of [first,last] intervals supporting O(log n)
// membership tests. Enumerating the whole set is never required to
// answer Contains, satisfying the performance requirement in §4.2.
type PolicyCIDRSet struct {
	intervals []policyInterval
}

type policyInterval struct {
	first, last Int128
}

// NewPolicyCIDRSet builds a PolicyCIDRSet from a subnet's IPPolicy.
// Returns nil if policy is nil or has no excluded ranges, matching the
// original's "policy can be falsy" convention so callers can keep using
// `if policy != nil`.
func NewPolicyCIDRSet(policy *IPPolicy) *PolicyCIDRSet {
	if policy == nil || len(policy.Exclude) == 0 {
		return nil
	}
	intervals := make([]policyInterval, 0, len(policy.Exclude))
	for _, c := range policy.Exclude {
		intervals = append(intervals, policyInterval{first: c.FirstIP, last: c.LastIP})
	}
	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].first.Cmp(intervals[j].first) < 0
	})
	merged := intervals[:1]
	for _, next := range intervals[1:] {
		cur := &merged[len(merged)-1]
		if next.first.Cmp(cur.last.Add(1)) <= 0 {
			if next.last.Cmp(cur.last) > 0 {
				cur.last = next.last
			}
			continue
		}
		merged = append(merged, next)
	}
	return &PolicyCIDRSet{intervals: merged}
}

// Contains reports whether addr falls within any excluded range, via
// binary search over the sorted interval boundaries.
func (s *PolicyCIDRSet) Contains(addr Int128) bool {
	if s == nil {
		return false
	}
	// Find the last interval whose first <= addr.
	i := sort.Search(len(s.intervals), func(i int) bool {
		return s.intervals[i].first.Cmp(addr) > 0
	}) - 1
	if i < 0 {
		return false
	}
	return addr.Cmp(s.intervals[i].last) <= 0
}

// PolicySize computes the integer count of distinct excluded addresses
// across a set of (possibly overlapping) CIDRs, measured once at write
// time per §3 (IPPolicy.size invariant).
func PolicySize(cidrs []IPPolicyCIDR) int64 {
	if len(cidrs) == 0 {
		return 0
	}
	intervals := make([]policyInterval, 0, len(cidrs))
	for _, c := range cidrs {
		intervals = append(intervals, policyInterval{first: c.FirstIP, last: c.LastIP})
	}
	sort.Slice(intervals, func(i, j int) bool {
		return intervals[i].first.Cmp(intervals[j].first) < 0
	})

	var total int64
	cur := intervals[0]
	for _, next := range intervals[1:] {
		if next.first.Cmp(cur.last.Add(1)) <= 0 {
			if next.last.Cmp(cur.last) > 0 {
				cur.last = next.last
			}
			continue
		}
		total += cur.last.Sub(cur.first).v.Int64() + 1
		cur = next
	}
	total += cur.last.Sub(cur.first).v.Int64() + 1
	return total
}
