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
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"
)

func TestInt128RoundTrip(t *testing.T) {
	ip := net.ParseIP("10.0.0.5")
	n := Int128FromIP(ip)
	require.Equal(t, "10.0.0.5", n.IP(4).String())

	v6 := net.ParseIP("2001:db8::1")
	n6 := Int128FromIP(v6)
	require.Equal(t, "2001:db8::1", n6.IP(6).String())
}

func TestInt128Scan(t *testing.T) {
	var n Int128
	require.NoError(t, n.Scan("42"))
	require.Equal(t, "42", n.String())

	require.NoError(t, n.Scan([]byte("7")))
	require.Equal(t, "7", n.String())

	require.NoError(t, n.Scan(int64(9)))
	require.Equal(t, "9", n.String())

	require.Error(t, n.Scan("not-a-number"))
	require.Error(t, n.Scan(3.14))
}

func TestInt128ArithmeticAndSentinel(t *testing.T) {
	full := Int128FromInt64(-1)
	require.True(t, full.Sign() < 0)

	a := Int128FromInt64(10)
	b := a.Add(5)
	require.Equal(t, "15", b.String())
	require.Equal(t, "5", b.Sub(a).String())
	require.True(t, a.Cmp(b) < 0)
	require.False(t, a.Equal(b))
	require.True(t, a.Equal(Int128FromInt64(10)))
}

func TestEui64FromMACFlipsUniversalLocalBit(t *testing.T) {
	mac, err := net.ParseMAC("00:1a:2b:3c:4d:5e")
	require.NoError(t, err)
	eui := eui64FromMAC(mac)
	// The second hex digit of the first octet (the u/l bit) must flip
	// from 0 to 2 once eui64FromMAC runs the 0x02 XOR.
	require.Equal(t, byte(0x02), eui.Bytes()[0])
}

func TestRfc2462IPIsDeterministic(t *testing.T) {
	mac, err := net.ParseMAC("00:1a:2b:3c:4d:5e")
	require.NoError(t, err)
	base, _, err := cidrBase("2001:db8::/64")
	require.NoError(t, err)

	a := rfc2462IP(mac, base)
	b := rfc2462IP(mac, base)
	require.Equal(t, a.String(), b.String())
}

func TestGenerateV6YieldsSlaacFirstThenDeterministicStream(t *testing.T) {
	mac, err := net.ParseMAC("00:1a:2b:3c:4d:5e")
	require.NoError(t, err)
	base, _, err := cidrBase("2001:db8::/64")
	require.NoError(t, err)
	portID, err := uuid.NewV4()
	require.NoError(t, err)

	slaac := newInt128(rfc2462IP(mac, base))

	var got []Int128
	for candidate := range generateV6(mac, portID, base) {
		got = append(got, candidate)
		if len(got) == 3 {
			break
		}
	}
	require.Len(t, got, 3)
	require.True(t, got[0].Equal(slaac))

	var replay []Int128
	for candidate := range generateV6(mac, portID, base) {
		replay = append(replay, candidate)
		if len(replay) == 3 {
			break
		}
	}
	for i := range got {
		require.True(t, got[i].Equal(replay[i]), "stream for a given port id must be reproducible")
	}
}

func TestGenerateV6WithoutMACSkipsSlaacCandidate(t *testing.T) {
	base, _, err := cidrBase("2001:db8::/64")
	require.NoError(t, err)
	portID, err := uuid.NewV4()
	require.NoError(t, err)

	count := 0
	for range generateV6(nil, portID, base) {
		count++
		if count == 2 {
			break
		}
	}
	require.Equal(t, 2, count)
}

func TestCidrSizeCapsWideV6Prefixes(t *testing.T) {
	_, ipnet, err := net.ParseCIDR("2001:db8::/32")
	require.NoError(t, err)
	require.Equal(t, int64(1<<62), cidrSize(ipnet))

	_, v4net, err := net.ParseCIDR("10.0.0.0/24")
	require.NoError(t, err)
	require.Equal(t, int64(256), cidrSize(v4net))
}

func TestContains(t *testing.T) {
	_, ipnet, err := net.ParseCIDR("10.0.0.0/24")
	require.NoError(t, err)
	require.True(t, contains(ipnet, Int128FromIP(net.ParseIP("10.0.0.5")), 4))
	require.False(t, contains(ipnet, Int128FromIP(net.ParseIP("10.0.1.5")), 4))
}
