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

package provider

import (
	"fmt"
	"strings"

	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
)

// networkPrefixes maps each network to the local dialing prefixes it owns.
var networkPrefixes = map[model.Network][]string{
	model.NetworkMTN:     {"024", "025", "053", "054", "055", "059"},
	model.NetworkTelecel: {"020", "050"},
	model.NetworkAT:      {"026", "027", "056", "057"},
}

// NormalizePhone canonicalizes a recipient phone number into the ten-digit
// local format 0XXXXXXXXX. International forms (+233..., 233...) are folded
// into the local form; separators are stripped. Normalization is idempotent:
// feeding the output back in returns it unchanged.
func NormalizePhone(raw string) (string, error) {
	p := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))

	switch {
	case strings.HasPrefix(p, "+233"):
		p = "0" + p[4:]
	case strings.HasPrefix(p, "233") && len(p) == 12:
		p = "0" + p[3:]
	}

	if len(p) != 10 {
		return "", fmt.Errorf("phone number %q does not normalize to 10 digits", raw)
	}
	if p[0] != '0' {
		return "", fmt.Errorf("phone number %q must start with 0", raw)
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("phone number %q contains non-digit characters", raw)
		}
	}
	return p, nil
}

// MatchesNetwork reports whether a normalized phone number carries one of
// the given network's dialing prefixes.
func MatchesNetwork(phone string, network model.Network) bool {
	for _, prefix := range networkPrefixes[network] {
		if strings.HasPrefix(phone, prefix) {
			return true
		}
	}
	return false
}
