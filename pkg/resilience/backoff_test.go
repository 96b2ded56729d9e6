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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduleDelay(t *testing.T) {
	s := DefaultSchedule()

	tests := []struct {
		name    string
		attempt int
		want    time.Duration
	}{
		{name: "zero_attempt", attempt: 0, want: 0},
		{name: "negative_attempt", attempt: -3, want: 0},
		{name: "first_retry", attempt: 1, want: 5 * time.Minute},
		{name: "second_retry", attempt: 2, want: 15 * time.Minute},
		{name: "third_retry", attempt: 3, want: time.Hour},
		{name: "fourth_retry", attempt: 4, want: 24 * time.Hour},
		{name: "beyond_table_clamps", attempt: 9, want: 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Delay(tt.attempt))
		})
	}
}

func TestScheduleDelayEmpty(t *testing.T) {
	var s Schedule
	assert.Equal(t, time.Duration(0), s.Delay(1))
}
