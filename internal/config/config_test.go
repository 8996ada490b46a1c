// Copyright 2026 The HRMQ Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config_test

import (
	"testing"
	"time"

	"github.com/hrsystem/hrmq/internal/config"
	"github.com/hrsystem/hrmq/internal/mqtt/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	conf := config.DefaultConfig
	assert.NoError(t, conf.Validate())
}

func TestConfigValidateError(t *testing.T) {
	testCases := []struct {
		err    string
		modify func(c *config.Config)
	}{
		{"log_level is required", func(c *config.Config) { c.LogLevel = "" }},
		{"log_level is invalid", func(c *config.Config) { c.LogLevel = "invalid" }},
		{"log_format is required", func(c *config.Config) { c.LogFormat = "" }},
		{"log_format is invalid", func(c *config.Config) { c.LogFormat = "xml" }},
		{"mqtt_tcp_address is required", func(c *config.Config) { c.MQTTTCPAddress = "" }},
		{"http_address is required", func(c *config.Config) { c.HTTPAddress = "" }},
		{"mqtt_max_qos must be between 0 and 2", func(c *config.Config) { c.MQTTMaximumQoS = 3 }},
		{"mqtt_max_retries must not be negative", func(c *config.Config) { c.MQTTMaxRetries = -1 }},
	}

	for _, tc := range testCases {
		t.Run(tc.err, func(t *testing.T) {
			conf := config.DefaultConfig
			tc.modify(&conf)
			assert.ErrorContains(t, conf.Validate(), tc.err)
		})
	}
}

func TestConfigReadConfigFileNotFound(t *testing.T) {
	err := config.ReadConfigFile()
	assert.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func TestConfigLoadConfig(t *testing.T) {
	conf := config.DefaultConfig

	err := config.LoadConfig(&conf)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig, conf)
}

func TestConfigLoadConfigFromEnv(t *testing.T) {
	t.Setenv("HRMQ_LOG_LEVEL", "debug")
	t.Setenv("HRMQ_MQTT_MAX_QOS", "1")
	t.Setenv("HRMQ_MQTT_RETRY_INTERVAL", "5s")
	t.Setenv("HRMQ_MQTT_RETAIN_AVAILABLE", "false")
	t.Setenv("HRMQ_MQTT_CLIENT_ID_PREFIX", "robot-")

	conf := config.DefaultConfig
	err := config.LoadConfig(&conf)
	require.NoError(t, err)

	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, 1, conf.MQTTMaximumQoS)
	assert.Equal(t, 5*time.Second, conf.MQTTRetryInterval)
	assert.False(t, conf.MQTTRetainAvailable)
	assert.Equal(t, "robot-", conf.MQTTClientIDPrefix)
}

func TestConfigMQTT(t *testing.T) {
	conf := config.DefaultConfig
	conf.MQTTMaximumQoS = 1
	conf.MQTTMaxConnectionRate = 100

	mc := conf.MQTT()
	assert.Equal(t, conf.MQTTTCPAddress, mc.TCPAddress)
	assert.Equal(t, byte(packet.QoS1), mc.MaximumQoS)
	assert.Equal(t, conf.MQTTRetryInterval, mc.RetryInterval)
	assert.Equal(t, 100, mc.MaxConnectionRate)
	assert.True(t, mc.MetricsEnabled)
}

func TestConfigAPI(t *testing.T) {
	conf := config.DefaultConfig

	ac := conf.API()
	assert.Equal(t, conf.HTTPAddress, ac.Address)
	assert.Equal(t, conf.MetricsPath, ac.MetricsPath)
	assert.True(t, ac.MetricsEnabled)
}
