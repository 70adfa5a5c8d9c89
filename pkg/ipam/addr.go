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
	"database/sql/driver"
	"fmt"
	"math/big"
	"math/rand"
	"net"

	"github.com/gofrs/uuid"
)

// magicUniversalLocalBit flips the universal/local bit on a v6 address,
// matching quark.ipam.MAGIC_INT (the decimal value of ::0200:0:0:0).
var magicUniversalLocalBit = new(big.Int).Lsh(big.NewInt(1), 57)

// Int128 is a 128-bit address, canonical storage form for both v4
// (IPv4-mapped) and v6 addresses per §3 of the data model.
type Int128 struct {
	v *big.Int
}

func newInt128(v *big.Int) Int128 {
	if v == nil {
		v = new(big.Int)
	}
	return Int128{v: v}
}

// Int128FromIP converts a net.IP into its canonical 128-bit integer form.
func Int128FromIP(ip net.IP) Int128 {
	return newInt128(new(big.Int).SetBytes(ip.To16()))
}

// Int128FromInt64 builds an Int128 from a plain integer, used for the
// -1 "full" sentinel and small test fixtures.
func Int128FromInt64(i int64) Int128 {
	return newInt128(big.NewInt(i))
}

// IP renders the Int128 back to a net.IP, in v4 form when it fits in the
// IPv4-mapped range and version is 4.
func (n Int128) IP(version int) net.IP {
	b := n.v.Bytes()
	buf := make([]byte, 16)
	copy(buf[16-len(b):], b)
	ip := net.IP(buf)
	if version == 4 {
		return ip.To4()
	}
	return ip
}

func (n Int128) String() string       { return n.v.String() }
func (n Int128) Sign() int            { return n.v.Sign() }
func (n Int128) Cmp(o Int128) int     { return n.v.Cmp(o.v) }
func (n Int128) Equal(o Int128) bool  { return n.v.Cmp(o.v) == 0 }
func (n Int128) Add(delta int64) Int128 {
	return newInt128(new(big.Int).Add(n.v, big.NewInt(delta)))
}
func (n Int128) Sub(o Int128) Int128 {
	return newInt128(new(big.Int).Sub(n.v, o.v))
}
func (n Int128) Xor(mask *big.Int) Int128 {
	return newInt128(new(big.Int).Xor(n.v, mask))
}

// Value implements driver.Valuer so pop can bind Int128 fields directly.
func (n Int128) Value() (driver.Value, error) {
	if n.v == nil {
		return "0", nil
	}
	return n.v.String(), nil
}

// Scan implements sql.Scanner for pop's decoding path.
func (n *Int128) Scan(src interface{}) error {
	v := new(big.Int)
	switch t := src.(type) {
	case string:
		if _, ok := v.SetString(t, 10); !ok {
			return fmt.Errorf("ipam: cannot parse Int128 from %q", t)
		}
	case []byte:
		if _, ok := v.SetString(string(t), 10); !ok {
			return fmt.Errorf("ipam: cannot parse Int128 from %q", t)
		}
	case int64:
		v.SetInt64(t)
	default:
		return fmt.Errorf("ipam: unsupported Int128 source type %T", src)
	}
	n.v = v
	return nil
}

// eui64FromMAC expands a 48-bit MAC into its RFC 2462 modified EUI-64
// interface identifier: split at the OUI boundary, insert 0xFFFE, and
// flip the universal/local bit of the first octet.
func eui64FromMAC(mac net.HardwareAddr) *big.Int {
	eui := make([]byte, 8)
	copy(eui[0:3], mac[0:3])
	eui[3] = 0xFF
	eui[4] = 0xFE
	copy(eui[5:8], mac[3:6])
	eui[0] ^= 0x02
	return new(big.Int).SetBytes(eui)
}

// rfc2462IP computes the single deterministic SLAAC address for a MAC
// within a given /64 (or narrower) prefix.
func rfc2462IP(mac net.HardwareAddr, netBase *big.Int) *big.Int {
	return new(big.Int).Add(netBase, eui64FromMAC(mac))
}

// rfc3041Seed derives the deterministic PRNG seed from a port id, the
// only source of determinism the v6 generator depends on (§4.1).
func rfc3041Seed(portID uuid.UUID) int64 {
	b := portID.Bytes()
	// Fold the 128-bit UUID into an int64 seed deterministically; this
	// need not match any particular hash, only be stable per port id.
	var seed uint64
	for i, by := range b {
		seed ^= uint64(by) << uint((i%8)*8)
	}
	return int64(seed)
}

// generateV6 yields the candidate v6 address stream described in §4.1:
// the RFC 2462 SLAAC address first (if a MAC is known), then an
// unbounded, deterministic-per-port RFC 3041 pseudo-random stream.
// Callers MUST stop pulling once satisfied; the stream never terminates.
func generateV6(mac net.HardwareAddr, portID uuid.UUID, netBase *big.Int) func(yield func(Int128) bool) {
	return func(yield func(Int128) bool) {
		if mac != nil {
			if !yield(newInt128(rfc2462IP(mac, netBase))) {
				return
			}
		}

		rng := rand.New(rand.NewSource(rfc3041Seed(portID)))
		for {
			hi := rng.Uint64()
			lo := rng.Uint64()
			r := new(big.Int).Lsh(new(big.Int).SetUint64(hi), 64)
			r.Or(r, new(big.Int).SetUint64(lo))
			// RFC 3041 only randomizes the 64-bit interface identifier.
			r.And(r, new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1)))
			val := new(big.Int).Add(netBase, r)
			val.Xor(val, magicUniversalLocalBit)
			if !yield(newInt128(val)) {
				return
			}
		}
	}
}

// cidrBase returns the base address of a CIDR string as a big.Int, and
// the parsed network for containment tests.
func cidrBase(cidr string) (*big.Int, *net.IPNet, error) {
	_, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, nil, err
	}
	return new(big.Int).SetBytes(ipnet.IP.To16()), ipnet, nil
}

// contains reports whether addr (128-bit canonical form) lies within cidr.
func contains(ipnet *net.IPNet, addr Int128, version int) bool {
	return ipnet.Contains(addr.IP(version))
}

// cidrSize returns the address count of ipnet, capped well below the
// int64 range since a wide v6 prefix would otherwise overflow it.
func cidrSize(ipnet *net.IPNet) int64 {
	ones, bits := ipnet.Mask.Size()
	exp := bits - ones
	if exp >= 63 {
		// No real deployment carves a subnet this large; cap rather
		// than overflow so the "is this subnet full" comparison still
		// behaves (always false, which is correct: it never fills).
		return 1 << 62
	}
	return int64(1) << uint(exp)
}
