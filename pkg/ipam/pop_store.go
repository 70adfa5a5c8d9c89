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
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gobuffalo/pop/v6"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"

	"peta.io/peta/pkg/persistence"
	"peta.io/peta/pkg/utils/sets"
)

// noRows reports whether err is pop's not-found sentinel, unwrapping the
// github.com/pkg/errors wrapping our Store methods add elsewhere.
func noRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

// popStore is the gobuffalo/pop-backed Store implementation. It assumes
// a Postgres dialect so the claim primitive can lean on
// `FOR UPDATE SKIP LOCKED`, the portable replacement for the MySQL-only
// `UPDATE ... LIMIT 1` the original relied on.
type popStore struct {
	conn *pop.Connection
}

// NewPopStore wraps an established pop connection as a Store.
func NewPopStore(conn *pop.Connection) Store {
	return &popStore{conn: conn}
}

// NewPopStoreFromOptions opens a pop connection from the shared
// persistence.Options database settings and wraps it as a Store.
func NewPopStoreFromOptions(opts *persistence.Options) (Store, error) {
	details := &pop.ConnectionDetails{
		Dialect:  opts.Dialect,
		Database: opts.Database,
		Host:     opts.Host,
		Port:     fmt.Sprintf("%d", opts.Port),
		User:     opts.User,
		Password: opts.Password,
		URL:      opts.URL,
	}
	conn, err := pop.NewConnection(details)
	if err != nil {
		return nil, errors.Wrap(err, "ipam: opening database connection")
	}
	if err := conn.Open(); err != nil {
		return nil, errors.Wrap(err, "ipam: connecting to database")
	}
	return NewPopStore(conn), nil
}

func (s *popStore) TransactionCreate(ctx context.Context, rc RequestContext) (Transaction, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return Transaction{}, errors.Wrap(err, "ipam: generating transaction id")
	}
	tx := Transaction{ID: id, CreatedAt: time.Now().UTC()}
	if err := s.conn.WithContext(ctx).Create(&tx); err != nil {
		return Transaction{}, errors.Wrap(err, "ipam: creating transaction")
	}
	return tx, nil
}

func (s *popStore) PurgeTransactions(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	count, err := s.conn.WithContext(ctx).
		RawQuery("DELETE FROM transactions WHERE created_at < ?", cutoff).
		ExecWithCount()
	if err != nil {
		return 0, errors.Wrap(err, "ipam: purging transactions")
	}
	return count, nil
}

// claim executes an `UPDATE ... WHERE id = (SELECT ... FOR UPDATE SKIP
// LOCKED LIMIT 1)` statement and reports whether exactly one row was
// touched. This is the portable equivalent of quark's
// `ip_address_reallocate`/`mac_address_reallocate`: a single round trip
// that both selects and locks a candidate and stamps it claimed, so two
// concurrent callers never walk away with the same row.
func (s *popStore) claim(ctx context.Context, table, pk, whereClause, setClause string, args ...interface{}) (bool, error) {
	query := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = (SELECT %s FROM %s WHERE %s ORDER BY %s FOR UPDATE SKIP LOCKED LIMIT 1)",
		table, setClause, pk, pk, table, whereClause, pk,
	)
	count, err := s.conn.WithContext(ctx).RawQuery(query, args...).ExecWithCount()
	if err != nil {
		return false, errors.Wrapf(err, "ipam: claiming row in %s", table)
	}
	return count == 1, nil
}

func (s *popStore) MacAddressClaim(ctx context.Context, rc RequestContext, filter MacAddressFilter, set MacAddress) (bool, error) {
	var where []string
	var args []interface{}
	where = append(where, "deallocated = true")
	if filter.ReuseAfter != nil {
		where = append(where, "deallocated_at <= ?")
		args = append(args, time.Now().UTC().Add(-*filter.ReuseAfter))
	}
	if filter.Address != nil {
		where = append(where, "address = ?")
		args = append(args, *filter.Address)
	}

	setArgs := append([]interface{}{set.TenantID, set.TransactionID}, args...)
	ok, err := s.claim(ctx, "quark_mac_addresses", "address",
		strings.Join(where, " AND "),
		"tenant_id = ?, transaction_id = ?, deallocated = false, deallocated_at = NULL",
		setArgs...)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *popStore) MacAddressFindByTransaction(ctx context.Context, rc RequestContext, txID uuid.UUID) (*MacAddress, *MacAddressRange, error) {
	var mac MacAddress
	if err := s.conn.WithContext(ctx).Where("transaction_id = ?", txID).First(&mac); err != nil {
		if noRows(err) {
			return nil, nil, nil
		}
		return nil, nil, errors.Wrap(err, "ipam: finding mac address by transaction")
	}
	var rng MacAddressRange
	if err := s.conn.WithContext(ctx).Find(&rng, mac.MacAddressRangeID); err != nil {
		return nil, nil, errors.Wrap(err, "ipam: loading mac address range")
	}
	return &mac, &rng, nil
}

func (s *popStore) MacAddressFind(ctx context.Context, rc RequestContext, address int64) (*MacAddress, *MacAddressRange, error) {
	var mac MacAddress
	if err := s.conn.WithContext(ctx).Find(&mac, address); err != nil {
		if noRows(err) {
			return nil, nil, nil
		}
		return nil, nil, errors.Wrap(err, "ipam: finding mac address")
	}
	var rng MacAddressRange
	if err := s.conn.WithContext(ctx).Find(&rng, mac.MacAddressRangeID); err != nil {
		return nil, nil, errors.Wrap(err, "ipam: loading mac address range")
	}
	return &mac, &rng, nil
}

func (s *popStore) MacAddressCreate(ctx context.Context, rc RequestContext, mac MacAddress) (MacAddress, error) {
	if err := s.conn.WithContext(ctx).Create(&mac); err != nil {
		return MacAddress{}, errors.Wrap(err, "ipam: creating mac address")
	}
	return mac, nil
}

func (s *popStore) MacAddressUpdate(ctx context.Context, rc RequestContext, mac MacAddress) error {
	if err := s.conn.WithContext(ctx).Update(&mac); err != nil {
		return errors.Wrap(err, "ipam: updating mac address")
	}
	return nil
}

func (s *popStore) MacAddressDelete(ctx context.Context, rc RequestContext, mac MacAddress) error {
	if err := s.conn.WithContext(ctx).Destroy(&mac); err != nil {
		return errors.Wrap(err, "ipam: deleting mac address")
	}
	return nil
}

func (s *popStore) MacAddressRangeFindMostFull(ctx context.Context, rc RequestContext, address *int64, includeForbidden bool) (*MacAddressRange, int64, error) {
	q := s.conn.WithContext(ctx).Q()
	if !includeForbidden {
		q = q.Where("do_not_use = false")
	}
	if address != nil {
		q = q.Where("first_address <= ? AND last_address >= ?", *address, *address)
	}
	var ranges []MacAddressRange
	if err := q.All(&ranges); err != nil {
		return nil, 0, errors.Wrap(err, "ipam: listing mac address ranges")
	}
	if len(ranges) == 0 {
		return nil, 0, nil
	}

	var best *MacAddressRange
	var bestCount int64 = -1
	for i := range ranges {
		r := ranges[i]
		count, err := s.conn.WithContext(ctx).
			RawQuery("SELECT count(*) FROM quark_mac_addresses WHERE mac_address_range_id = ? AND deallocated = false", r.ID).
			ExecWithCount()
		if err != nil {
			return nil, 0, errors.Wrap(err, "ipam: counting mac address range usage")
		}
		if int64(count) > bestCount {
			best = &r
			bestCount = int64(count)
		}
	}
	return best, bestCount, nil
}

func (s *popStore) MacRangeAdvanceCursor(ctx context.Context, rc RequestContext, rangeID uuid.UUID) (bool, error) {
	count, err := s.conn.WithContext(ctx).RawQuery(
		`UPDATE quark_mac_address_ranges
		 SET next_auto_assign_mac = next_auto_assign_mac + 1
		 WHERE id = ? AND next_auto_assign_mac >= 0 AND next_auto_assign_mac <= last_address`,
		rangeID,
	).ExecWithCount()
	if err != nil {
		return false, errors.Wrap(err, "ipam: advancing mac range cursor")
	}
	return count == 1, nil
}

func (s *popStore) MacRangeMarkFull(ctx context.Context, rc RequestContext, rangeID uuid.UUID) (bool, error) {
	count, err := s.conn.WithContext(ctx).RawQuery(
		`UPDATE quark_mac_address_ranges SET next_auto_assign_mac = -1 WHERE id = ?`, rangeID,
	).ExecWithCount()
	if err != nil {
		return false, errors.Wrap(err, "ipam: marking mac range full")
	}
	return count == 1, nil
}

func (s *popStore) IPAddressClaim(ctx context.Context, rc RequestContext, filter IPAddressFilter, set IPAddress) (bool, error) {
	var where []string
	var args []interface{}
	where = append(where, "deallocated = true")
	if len(filter.SubnetIDs) > 0 {
		where = append(where, "subnet_id = ANY(?)")
		args = append(args, uuidsToStrings(filter.SubnetIDs))
	}
	if filter.NetworkID != uuid.Nil {
		where = append(where, "network_id = ?")
		args = append(args, filter.NetworkID)
	}
	if filter.ReuseAfter != nil {
		where = append(where, "deallocated_at <= ?")
		args = append(args, time.Now().UTC().Add(-*filter.ReuseAfter))
	}
	if filter.Address != nil {
		where = append(where, "address = ?")
		args = append(args, *filter.Address)
	}

	setArgs := []interface{}{set.UsedByTenantID, set.AddressType, set.TransactionID}
	setArgs = append(setArgs, args...)
	ok, err := s.claim(ctx, "quark_ip_addresses", "id",
		strings.Join(where, " AND "),
		"used_by_tenant_id = ?, address_type = ?, transaction_id = ?, deallocated = false, deallocated_at = NULL, allocated_at = now()",
		setArgs...)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func (s *popStore) IPAddressFindByTransaction(ctx context.Context, rc RequestContext, txID uuid.UUID) (*IPAddress, *Subnet, error) {
	var addr IPAddress
	if err := s.conn.WithContext(ctx).Where("transaction_id = ?", txID).First(&addr); err != nil {
		if noRows(err) {
			return nil, nil, nil
		}
		return nil, nil, errors.Wrap(err, "ipam: finding ip address by transaction")
	}
	var sub Subnet
	if err := s.conn.WithContext(ctx).Find(&sub, addr.SubnetID); err != nil {
		return nil, nil, errors.Wrap(err, "ipam: loading subnet")
	}
	return &addr, &sub, nil
}

func (s *popStore) IPAddressFindForUpdate(ctx context.Context, rc RequestContext, filter IPAddressFilter) (*IPAddress, error) {
	q := s.conn.WithContext(ctx).Q()
	if filter.Address != nil {
		q = q.Where("address = ?", *filter.Address)
	}
	if filter.NetworkID != uuid.Nil {
		q = q.Where("network_id = ?", filter.NetworkID)
	}
	if len(filter.SubnetIDs) > 0 {
		q = q.Where("subnet_id = ANY(?)", uuidsToStrings(filter.SubnetIDs))
	}
	if filter.Deallocated != nil {
		q = q.Where("deallocated = ?", *filter.Deallocated)
	}
	if filter.ReuseAfter != nil {
		q = q.Where("deallocated_at <= ?", time.Now().UTC().Add(-*filter.ReuseAfter))
	}
	var addr IPAddress
	if err := q.First(&addr); err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "ipam: finding ip address")
	}
	return &addr, nil
}

func (s *popStore) IPAddressCreate(ctx context.Context, rc RequestContext, addr IPAddress) (IPAddress, error) {
	if err := s.conn.WithContext(ctx).Create(&addr); err != nil {
		return IPAddress{}, errors.Wrap(err, "ipam: creating ip address")
	}
	return addr, nil
}

func (s *popStore) IPAddressUpdate(ctx context.Context, rc RequestContext, addr IPAddress) error {
	if err := s.conn.WithContext(ctx).Update(&addr); err != nil {
		return errors.Wrap(err, "ipam: updating ip address")
	}
	return nil
}

func (s *popStore) IPAddressDelete(ctx context.Context, rc RequestContext, addr IPAddress) error {
	if err := s.conn.WithContext(ctx).Destroy(&addr); err != nil {
		return errors.Wrap(err, "ipam: deleting ip address")
	}
	return nil
}

func (s *popStore) IPAddressPortsAndDevices(ctx context.Context, rc RequestContext, addr IPAddress) ([]Port, error) {
	var ports []Port
	err := s.conn.WithContext(ctx).
		RawQuery(`SELECT p.id, p.device_id FROM ports p
		          JOIN port_ip_addresses pia ON pia.port_id = p.id
		          WHERE pia.ip_address_id = ?`, addr.ID).
		All(&ports)
	if err != nil {
		return nil, errors.Wrap(err, "ipam: loading ports for ip address")
	}
	return ports, nil
}

func (s *popStore) SubnetFindOrderedByMostFull(ctx context.Context, rc RequestContext, filter SubnetFilter) ([]SubnetWithCount, error) {
	q := s.conn.WithContext(ctx).Q()
	if filter.NetworkID != uuid.Nil {
		q = q.Where("network_id = ?", filter.NetworkID)
	}
	if filter.SegmentID != "" {
		q = q.Where("segment_id = ?", filter.SegmentID)
	}
	if filter.IPVersion != 0 {
		q = q.Where("ip_version = ?", filter.IPVersion)
	}
	if len(filter.SubnetIDs) > 0 {
		q = q.Where("id = ANY(?)", uuidsToStrings(filter.SubnetIDs))
	}
	q = q.Where("do_not_use = false")

	var subnets []Subnet
	if err := q.All(&subnets); err != nil {
		return nil, errors.Wrap(err, "ipam: listing subnets")
	}

	out := make([]SubnetWithCount, 0, len(subnets))
	for _, sub := range subnets {
		count, err := s.conn.WithContext(ctx).
			RawQuery("SELECT count(*) FROM quark_ip_addresses WHERE subnet_id = ? AND deallocated = false", sub.ID).
			ExecWithCount()
		if err != nil {
			return nil, errors.Wrap(err, "ipam: counting subnet usage")
		}
		out = append(out, SubnetWithCount{Subnet: sub, Count: int64(count)})
	}
	sortSubnetsByMostFull(out)
	return out, nil
}

func (s *popStore) SubnetFindByIDs(ctx context.Context, rc RequestContext, netID uuid.UUID, segmentID string) ([]uuid.UUID, error) {
	var subnets []Subnet
	q := s.conn.WithContext(ctx).Where("network_id = ?", netID)
	if segmentID != "" {
		q = q.Where("segment_id = ?", segmentID)
	}
	if err := q.All(&subnets); err != nil {
		return nil, errors.Wrap(err, "ipam: listing subnet ids")
	}
	ids := make([]uuid.UUID, len(subnets))
	for i, sub := range subnets {
		ids[i] = sub.ID
	}
	return ids, nil
}

func (s *popStore) SubnetAdvanceCursor(ctx context.Context, rc RequestContext, subnetID uuid.UUID) (bool, error) {
	count, err := s.conn.WithContext(ctx).RawQuery(
		`UPDATE quark_subnets
		 SET next_auto_assign_ip = next_auto_assign_ip + 1
		 WHERE id = ? AND next_auto_assign_ip >= 0`,
		subnetID,
	).ExecWithCount()
	if err != nil {
		return false, errors.Wrap(err, "ipam: advancing subnet cursor")
	}
	return count == 1, nil
}

func (s *popStore) SubnetMarkFull(ctx context.Context, rc RequestContext, subnetID uuid.UUID) (bool, error) {
	count, err := s.conn.WithContext(ctx).RawQuery(
		`UPDATE quark_subnets SET next_auto_assign_ip = -1 WHERE id = ?`, subnetID,
	).ExecWithCount()
	if err != nil {
		return false, errors.Wrap(err, "ipam: marking subnet full")
	}
	return count == 1, nil
}

func (s *popStore) SubnetRefresh(ctx context.Context, rc RequestContext, subnetID uuid.UUID) (*Subnet, error) {
	var sub Subnet
	if err := s.conn.WithContext(ctx).Find(&sub, subnetID); err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "ipam: refreshing subnet")
	}
	return &sub, nil
}

func (s *popStore) SubnetIPPolicy(ctx context.Context, rc RequestContext, subnetID uuid.UUID) (*IPPolicy, error) {
	var sub Subnet
	if err := s.conn.WithContext(ctx).Find(&sub, subnetID); err != nil {
		return nil, errors.Wrap(err, "ipam: loading subnet for policy lookup")
	}
	if sub.IPPolicyID == nil {
		return nil, nil
	}
	var policy IPPolicy
	if err := s.conn.WithContext(ctx).Find(&policy, *sub.IPPolicyID); err != nil {
		return nil, errors.Wrap(err, "ipam: loading ip policy")
	}
	var cidrs []IPPolicyCIDR
	if err := s.conn.WithContext(ctx).Where("ip_policy_id = ?", policy.ID).All(&cidrs); err != nil {
		return nil, errors.Wrap(err, "ipam: loading ip policy cidrs")
	}
	policy.Exclude = cidrs
	return &policy, nil
}

func (s *popStore) SubnetUpdateAllocationPool(ctx context.Context, rc RequestContext, subnetID uuid.UUID, name string, data []byte) error {
	_, err := s.conn.WithContext(ctx).RawQuery(
		`UPDATE quark_subnets SET allocation_pool_name = ?, allocation_pool_cache = ? WHERE id = ?`,
		name, data, subnetID,
	).ExecWithCount()
	if err != nil {
		return errors.Wrap(err, "ipam: updating subnet allocation pool cache")
	}
	return nil
}

// uuidsToStrings dedupes ids (callers assemble subnet ID lists from more
// than one source, e.g. an explicit filter plus a segment lookup) and
// renders them for a SQL ANY(?) array parameter.
func uuidsToStrings(ids []uuid.UUID) []string {
	unique := sets.New(ids...).UnsortedList()
	out := make([]string, len(unique))
	for i, id := range unique {
		out[i] = id.String()
	}
	return out
}

// subnetResidualCapacity is (last - first + 1) - count: how many
// addresses a subnet has left, not how many it has used. Raw allocated
// count isn't comparable across differently-sized subnets sharing a
// network (a /24 with 200 used has far more room than a /30 with 3
// used), so ranking must go by what's actually left.
func subnetResidualCapacity(s SubnetWithCount) Int128 {
	total := s.Subnet.LastIP.Sub(s.Subnet.FirstIP).Add(1)
	return total.Sub(Int128FromInt64(s.Count))
}

// sortSubnetsByMostFull orders candidates the way
// `subnet_find_ordered_by_most_full` does: ip_version ascending first,
// then residual capacity ascending, so the create path drains the
// nearest-to-exhausted subnet of the requested version before touching
// a fresher one.
func sortSubnetsByMostFull(subnets []SubnetWithCount) {
	sort.SliceStable(subnets, func(i, j int) bool {
		if subnets[i].Subnet.IPVersion != subnets[j].Subnet.IPVersion {
			return subnets[i].Subnet.IPVersion < subnets[j].Subnet.IPVersion
		}
		return subnetResidualCapacity(subnets[i]).Cmp(subnetResidualCapacity(subnets[j])) < 0
	})
}
