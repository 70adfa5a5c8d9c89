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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAttemptLogEntryTracksSuccessAndFailure(t *testing.T) {
	log := NewAttemptLog()

	ok := log.MakeEntry("attempt_to_reallocate_ip", KindIPReuse)
	time.Sleep(time.Millisecond)
	ok.End()
	require.False(t, ok.elapsed() <= 0)

	bad := log.MakeEntry("_try_allocate_ip_address", KindIPNew)
	bad.Failed()
	bad.End()
	require.False(t, bad.success)

	require.Len(t, log.entries["attempt_to_reallocate_ip"], 1)
	require.Len(t, log.entries["_try_allocate_ip_address"], 1)
}

func TestAttemptLogFailedMarksOverallStatus(t *testing.T) {
	log := NewAttemptLog()
	require.True(t, log.success)
	log.Failed()
	require.False(t, log.success)
	// End just emits a summary line; it must not panic with zero entries.
	log.End()
}

func TestAttemptLogEndToleratesEntriesWithoutEnd(t *testing.T) {
	log := NewAttemptLog()
	entry := log.MakeEntry("attempt_to_reallocate_ip", KindMac)
	// No call to entry.End(): elapsed() must report zero, not panic.
	require.Equal(t, time.Duration(0), entry.elapsed())
	log.End()
}
