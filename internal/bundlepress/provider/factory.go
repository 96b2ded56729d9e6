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
	"net/http"
	"strings"

	"github.com/innovationmech/bundlepress/internal/bundlepress/config"
	"github.com/innovationmech/bundlepress/internal/bundlepress/model"
	"github.com/innovationmech/bundlepress/internal/bundlepress/repository"
	"github.com/innovationmech/bundlepress/pkg/logger"
	"github.com/innovationmech/bundlepress/pkg/resilience"
	"go.uber.org/zap"
)

// Provider identifiers as stored in the active_provider setting.
const (
	ProviderHubnet     = "hubnet"
	ProviderDatastream = "datastream"
)

// Factory resolves the active provider adapter per call. The active name is
// read fresh from durable configuration on every resolution, so an operator
// can switch providers without a redeploy. Adapters share one resilience
// gate and one HTTP client by reference.
type Factory struct {
	settings repository.SettingRepository
	gate     *resilience.Gate
	cfg      *config.FulfillConfig
	client   *http.Client
}

// NewFactory creates a provider factory.
func NewFactory(settings repository.SettingRepository, gate *resilience.Gate, cfg *config.FulfillConfig) *Factory {
	return &Factory{
		settings: settings,
		gate:     gate,
		cfg:      cfg,
		client:   newHTTPClient(),
	}
}

// Resolve reads the active provider name from storage and returns a fresh
// adapter for it. Missing or unrecognized values fall back to the default.
func (f *Factory) Resolve(ctx context.Context) Provider {
	name, err := f.settings.GetValue(ctx, model.SettingKeyActiveProvider)
	if err != nil {
		logger.GetLogger().Warn("failed to read active provider setting, using default",
			zap.Error(err))
		name = ""
	}
	return f.ByName(name)
}

// ByName returns an adapter for an explicit provider name, falling back to
// the default provider for unknown names. Reconciliation uses this to reach
// the provider a record was originally submitted to, regardless of which
// provider is currently active.
func (f *Factory) ByName(name string) Provider {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ProviderDatastream:
		return NewDatastream(f.cfg.Providers.Datastream, f.gate, f.client)
	case ProviderHubnet:
		return NewHubnet(f.cfg.Providers.Hubnet, f.gate, f.client)
	}

	if name != "" {
		logger.GetLogger().Warn("unrecognized provider name, using default",
			zap.String("name", name))
	}
	if strings.EqualFold(f.cfg.Providers.Default, ProviderDatastream) {
		return NewDatastream(f.cfg.Providers.Datastream, f.gate, f.client)
	}
	return NewHubnet(f.cfg.Providers.Hubnet, f.gate, f.client)
}
