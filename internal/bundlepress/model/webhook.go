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

package model

// WebhookPayload is a push-driven status update from a provider.
type WebhookPayload struct {
	Event     string       `json:"event"`
	Timestamp string       `json:"timestamp"`
	Order     WebhookOrder `json:"order"`
}

// WebhookOrder is the order snapshot embedded in a webhook payload. The id
// field arrives as either a number or a string depending on the provider.
type WebhookOrder struct {
	ID      any    `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ExternalID returns the normalized external order id.
func (o WebhookOrder) ExternalID() string {
	return FormatExternalID(o.ID)
}
