/*
 *  This file is part of PETA.
 *  Copyright (C) 2024 The PETA Authors.
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

package resilience

// Outcome tells Retry whether to stop after an attempt and, if it
// stopped due to an error, whether that error should be returned to
// the caller or swallowed so the loop can report plain exhaustion.
type Outcome int

const (
	// Continue tries the next attempt.
	Continue Outcome = iota
	// Done stops the loop successfully.
	Done
	// Fatal stops the loop and returns the attempt's error.
	Fatal
)

// Attempt is one try of a retryable operation. attempt is 1-indexed.
type Attempt func(attempt int) (Outcome, error)

// Retry calls fn up to maxAttempts times, stopping early on Done or
// Fatal. It returns the error from the last Fatal attempt, or nil if
// the loop ended on Done or ran out of attempts without one.
func Retry(maxAttempts int, fn Attempt) error {
	for i := 1; i <= maxAttempts; i++ {
		outcome, err := fn(i)
		switch outcome {
		case Done:
			return nil
		case Fatal:
			return err
		}
	}
	return nil
}
