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

package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"
)

var (
	config *FulfillConfig
	once   sync.Once
)

// ProviderConfig holds the HTTP contract settings for one provider.
type ProviderConfig struct {
	BaseURL string `json:"baseUrl" yaml:"baseUrl" mapstructure:"baseUrl"`
	APIKey  string `json:"apiKey" yaml:"apiKey" mapstructure:"apiKey"`
}

// FulfillConfig is the service configuration loaded from bundlepress.yaml.
type FulfillConfig struct {
	Database struct {
		Username string `json:"username" yaml:"username"`
		Password string `json:"password" yaml:"password"`
		Host     string `json:"host" yaml:"host"`
		Port     string `json:"port" yaml:"port"`
		DBName   string `json:"dbname" yaml:"dbname"`
	} `json:"database" yaml:"database"`
	Redis struct {
		Addr     string `json:"addr" yaml:"addr"`
		Password string `json:"password" yaml:"password"`
		DB       int    `json:"db" yaml:"db"`
	} `json:"redis" yaml:"redis"`
	Server struct {
		Port string `json:"port" yaml:"port"`
	} `json:"server" yaml:"server"`
	Webhook struct {
		Secret string `json:"secret" yaml:"secret"`
	} `json:"webhook" yaml:"webhook"`
	Providers struct {
		Default    string         `json:"default" yaml:"default"`
		Hubnet     ProviderConfig `json:"hubnet" yaml:"hubnet"`
		Datastream ProviderConfig `json:"datastream" yaml:"datastream"`
	} `json:"providers" yaml:"providers"`
	Resilience struct {
		FailureThreshold uint32 `json:"failureThreshold" yaml:"failureThreshold" mapstructure:"failureThreshold"`
		CooldownSeconds  int    `json:"cooldownSeconds" yaml:"cooldownSeconds" mapstructure:"cooldownSeconds"`
		RateLimitMax     int    `json:"rateLimitMax" yaml:"rateLimitMax" mapstructure:"rateLimitMax"`
		RateWindowSecs   int    `json:"rateWindowSeconds" yaml:"rateWindowSeconds" mapstructure:"rateWindowSeconds"`
	} `json:"resilience" yaml:"resilience"`
	Retry struct {
		MaxAttempts int `json:"maxAttempts" yaml:"maxAttempts" mapstructure:"maxAttempts"`
	} `json:"retry" yaml:"retry"`
	Reconcile struct {
		SweepIntervalSecs int `json:"sweepIntervalSeconds" yaml:"sweepIntervalSeconds" mapstructure:"sweepIntervalSeconds"`
		CallDelayMillis   int `json:"callDelayMillis" yaml:"callDelayMillis" mapstructure:"callDelayMillis"`
	} `json:"reconcile" yaml:"reconcile"`
	BalanceFloor float64 `json:"balanceFloor" yaml:"balanceFloor" mapstructure:"balanceFloor"`
}

// GetConfig loads the configuration once and returns it.
func GetConfig() *FulfillConfig {
	once.Do(func() {
		viper.SetConfigName("bundlepress")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if err := viper.ReadInConfig(); err != nil {
			panic(err)
		}
		config = &FulfillConfig{}
		if err := viper.Unmarshal(config); err != nil {
			panic(err)
		}
		applyDefaults(config)
	})
	return config
}

func applyDefaults(c *FulfillConfig) {
	if c.Resilience.FailureThreshold == 0 {
		c.Resilience.FailureThreshold = 5
	}
	if c.Resilience.CooldownSeconds == 0 {
		c.Resilience.CooldownSeconds = 60
	}
	if c.Resilience.RateLimitMax == 0 {
		c.Resilience.RateLimitMax = 60
	}
	if c.Resilience.RateWindowSecs == 0 {
		c.Resilience.RateWindowSecs = 60
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry.MaxAttempts = 4
	}
	if c.Reconcile.SweepIntervalSecs == 0 {
		c.Reconcile.SweepIntervalSecs = 300
	}
	if c.Reconcile.CallDelayMillis == 0 {
		c.Reconcile.CallDelayMillis = 200
	}
}

// CooldownDuration returns the breaker cooldown as a duration.
func (c *FulfillConfig) CooldownDuration() time.Duration {
	return time.Duration(c.Resilience.CooldownSeconds) * time.Second
}

// RateWindowDuration returns the rate limiter window as a duration.
func (c *FulfillConfig) RateWindowDuration() time.Duration {
	return time.Duration(c.Resilience.RateWindowSecs) * time.Second
}

// SweepInterval returns the reconciliation sweep period.
func (c *FulfillConfig) SweepInterval() time.Duration {
	return time.Duration(c.Reconcile.SweepIntervalSecs) * time.Second
}

// CallDelay returns the pause between provider calls during a sweep.
func (c *FulfillConfig) CallDelay() time.Duration {
	return time.Duration(c.Reconcile.CallDelayMillis) * time.Millisecond
}
