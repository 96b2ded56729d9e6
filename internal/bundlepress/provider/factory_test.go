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
	"context"
	"errors"
	"testing"

	"github.com/innovationmech/bundlepress/internal/bundlepress/config"
	"github.com/stretchr/testify/assert"
)

type stubSettings struct {
	value string
	err   error
}

func (s *stubSettings) GetValue(ctx context.Context, key string) (string, error) {
	return s.value, s.err
}

func (s *stubSettings) SetValue(ctx context.Context, key, value string) error {
	s.value = value
	return nil
}

func newTestFactory(t *testing.T, settings *stubSettings, defaultProvider string) *Factory {
	t.Helper()
	cfg := &config.FulfillConfig{}
	cfg.Providers.Default = defaultProvider
	return NewFactory(settings, openGate(t), cfg)
}

func TestFactoryResolveActiveProvider(t *testing.T) {
	settings := &stubSettings{value: ProviderDatastream}
	f := newTestFactory(t, settings, ProviderHubnet)

	p := f.Resolve(context.Background())
	assert.Equal(t, ProviderDatastream, p.Name())
}

func TestFactoryResolveReadsSettingPerCall(t *testing.T) {
	settings := &stubSettings{value: ProviderHubnet}
	f := newTestFactory(t, settings, ProviderHubnet)

	assert.Equal(t, ProviderHubnet, f.Resolve(context.Background()).Name())

	settings.value = ProviderDatastream
	assert.Equal(t, ProviderDatastream, f.Resolve(context.Background()).Name(),
		"switching the stored value takes effect without rebuilding the factory")
}

func TestFactoryResolveFallsBackOnError(t *testing.T) {
	settings := &stubSettings{err: errors.New("storage down")}
	f := newTestFactory(t, settings, ProviderDatastream)

	assert.Equal(t, ProviderDatastream, f.Resolve(context.Background()).Name())
}

func TestFactoryByNameUnknownUsesDefault(t *testing.T) {
	f := newTestFactory(t, &stubSettings{}, ProviderHubnet)

	assert.Equal(t, ProviderHubnet, f.ByName("acme-telco").Name())
	assert.Equal(t, ProviderHubnet, f.ByName("").Name())
}

func TestFactoryByNameCaseInsensitive(t *testing.T) {
	f := newTestFactory(t, &stubSettings{}, ProviderHubnet)

	assert.Equal(t, ProviderDatastream, f.ByName(" Datastream ").Name())
	assert.Equal(t, ProviderHubnet, f.ByName("HUBNET").Name())
}
