// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package resilience

import "time"

// Schedule is a table of retry delays indexed by attempt number.
// Attempts beyond the table clamp to the last entry.
type Schedule []time.Duration

// DefaultSchedule returns the fulfillment retry windows.
func DefaultSchedule() Schedule {
	return Schedule{
		5 * time.Minute,
		15 * time.Minute,
		1 * time.Hour,
		24 * time.Hour,
	}
}

// Delay returns the backoff before the given attempt (attempt >= 1 means
// the first retry). Attempt numbers past the end of the table use the last
// entry; attempt <= 0 yields zero.
func (s Schedule) Delay(attempt int) time.Duration {
	if attempt <= 0 || len(s) == 0 {
		return 0
	}
	if attempt > len(s) {
		attempt = len(s)
	}
	return s[attempt-1]
}
