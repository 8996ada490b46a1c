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

// Package config loads the HRMQ configuration from the configuration file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hrsystem/hrmq/internal/api"
	"github.com/hrsystem/hrmq/internal/mqtt"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// ErrConfigFileNotFound indicates that the configuration file was not found.
var ErrConfigFileNotFound = errors.New("config file not found")

// Config holds all the application configuration.
type Config struct {
	// Minimal severity level of the logs.
	LogLevel string `mapstructure:"log_level" json:"log_level" yaml:"log_level"`

	// Format of the logs: pretty or json.
	LogFormat string `mapstructure:"log_format" json:"log_format" yaml:"log_format"`

	// Indicate whether the broker exports metrics or not.
	MetricsEnabled bool `mapstructure:"metrics_enabled" json:"metrics_enabled" yaml:"metrics_enabled"`

	// The HTTP path where the metrics are exported.
	MetricsPath string `mapstructure:"metrics_path" json:"metrics_path" yaml:"metrics_path"`

	// Indicate whether the HTTP admin API is enabled or not.
	HTTPEnabled bool `mapstructure:"http_enabled" json:"http_enabled" yaml:"http_enabled"`

	// TCP address (<IP>:<port>) that the HTTP admin API binds to.
	HTTPAddress string `mapstructure:"http_address" json:"http_address" yaml:"http_address"`

	// TCP address (<IP>:<port>) that the MQTT broker binds to.
	MQTTTCPAddress string `mapstructure:"mqtt_tcp_address" json:"mqtt_tcp_address" yaml:"mqtt_tcp_address"`

	// The amount of time, in seconds, the broker waits for the CONNECT packet.
	MQTTConnectTimeout int `mapstructure:"mqtt_connect_timeout" json:"mqtt_connect_timeout" yaml:"mqtt_connect_timeout"`

	// The size, in bytes, of the MQTT receiver and transmitter buffers.
	MQTTBufferSize int `mapstructure:"mqtt_buffer_size" json:"mqtt_buffer_size" yaml:"mqtt_buffer_size"`

	// The maximum size, in bytes, allowed for MQTT packets.
	MQTTMaxPacketSize int `mapstructure:"mqtt_max_packet_size" json:"mqtt_max_packet_size" yaml:"mqtt_max_packet_size"`

	// The maximum allowed MQTT keep alive, in seconds. Zero means no limit.
	MQTTMaxKeepAlive int `mapstructure:"mqtt_max_keep_alive" json:"mqtt_max_keep_alive" yaml:"mqtt_max_keep_alive"`

	// The maximum QoS accepted by the broker.
	MQTTMaximumQoS int `mapstructure:"mqtt_max_qos" json:"mqtt_max_qos" yaml:"mqtt_max_qos"`

	// Indicate whether the broker stores retained messages or not.
	MQTTRetainAvailable bool `mapstructure:"mqtt_retain_available" json:"mqtt_retain_available" yaml:"mqtt_retain_available"`

	// The maximum number of unacknowledged QoS 1 and QoS 2 messages per client.
	MQTTMaxInflightMessages int `mapstructure:"mqtt_max_inflight_messages" json:"mqtt_max_inflight_messages" yaml:"mqtt_max_inflight_messages"`

	// The time the broker waits for an acknowledgement before resending.
	MQTTRetryInterval time.Duration `mapstructure:"mqtt_retry_interval" json:"mqtt_retry_interval" yaml:"mqtt_retry_interval"`

	// The number of resends before a subscriber is reported as unresponsive.
	MQTTMaxRetries int `mapstructure:"mqtt_max_retries" json:"mqtt_max_retries" yaml:"mqtt_max_retries"`

	// The capacity of the outbound queue of each connection.
	MQTTOutboundQueueSize int `mapstructure:"mqtt_outbound_queue_size" json:"mqtt_outbound_queue_size" yaml:"mqtt_outbound_queue_size"`

	// Prefix added to the generated client IDs.
	MQTTClientIDPrefix string `mapstructure:"mqtt_client_id_prefix" json:"mqtt_client_id_prefix" yaml:"mqtt_client_id_prefix"`

	// The maximum number of accepted connections per second. Zero means unlimited.
	MQTTMaxConnectionRate int `mapstructure:"mqtt_max_connection_rate" json:"mqtt_max_connection_rate" yaml:"mqtt_max_connection_rate"`
}

// DefaultConfig contains the default configuration.
var DefaultConfig = Config{
	LogLevel:                "info",
	LogFormat:               "pretty",
	MetricsEnabled:          true,
	MetricsPath:             "/metrics",
	HTTPEnabled:             true,
	HTTPAddress:             ":8888",
	MQTTTCPAddress:          ":1883",
	MQTTConnectTimeout:      5,
	MQTTBufferSize:          1024,
	MQTTMaxPacketSize:       65536,
	MQTTMaximumQoS:          2,
	MQTTRetainAvailable:     true,
	MQTTMaxInflightMessages: 0,
	MQTTRetryInterval:       20 * time.Second,
	MQTTMaxRetries:          3,
	MQTTOutboundQueueSize:   256,
	MQTTClientIDPrefix:      "hrmq-",
}

var keys = []string{
	"log_level",
	"log_format",
	"metrics_enabled",
	"metrics_path",
	"http_enabled",
	"http_address",
	"mqtt_tcp_address",
	"mqtt_connect_timeout",
	"mqtt_buffer_size",
	"mqtt_max_packet_size",
	"mqtt_max_keep_alive",
	"mqtt_max_qos",
	"mqtt_retain_available",
	"mqtt_max_inflight_messages",
	"mqtt_retry_interval",
	"mqtt_max_retries",
	"mqtt_outbound_queue_size",
	"mqtt_client_id_prefix",
	"mqtt_max_connection_rate",
}

// ReadConfigFile reads the configuration file.
//
// The configuration file hrmq.conf is searched at the following locations:
//   - the directory of the executable and its parent
//   - /etc/hrmq
//   - /etc
func ReadConfigFile() error {
	viper.SetConfigName("hrmq.conf")
	viper.SetConfigType("toml")

	if exe, err := os.Executable(); err == nil {
		pwd := filepath.Dir(exe)
		viper.AddConfigPath(pwd)
		viper.AddConfigPath(filepath.Dir(pwd))
	}

	viper.AddConfigPath("/etc/hrmq")
	viper.AddConfigPath("/etc")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return ErrConfigFileNotFound
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// LoadConfig loads the configuration from the config file and the environment variables into the
// conf. Fields without value keep the value they already have.
//
// Note: The ReadConfigFile must be called before in order to load the configuration from the
// config file.
func LoadConfig(conf *Config) error {
	viper.SetEnvPrefix("HRMQ")
	viper.AutomaticEnv()

	for _, k := range keys {
		_ = viper.BindEnv(k)
	}

	if err := viper.Unmarshal(conf); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// Validate checks whether the configuration is valid or not.
func (c Config) Validate() error {
	var err error

	switch strings.ToLower(c.LogLevel) {
	case "":
		err = multierr.Append(err, errors.New("log_level is required"))
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		err = multierr.Append(err, fmt.Errorf("log_level is invalid: %s", c.LogLevel))
	}

	switch strings.ToLower(c.LogFormat) {
	case "":
		err = multierr.Append(err, errors.New("log_format is required"))
	case "pretty", "json":
	default:
		err = multierr.Append(err, fmt.Errorf("log_format is invalid: %s", c.LogFormat))
	}

	if c.MQTTTCPAddress == "" {
		err = multierr.Append(err, errors.New("mqtt_tcp_address is required"))
	}
	if c.HTTPEnabled && c.HTTPAddress == "" {
		err = multierr.Append(err, errors.New("http_address is required"))
	}
	if c.MQTTMaximumQoS < 0 || c.MQTTMaximumQoS > 2 {
		err = multierr.Append(err, errors.New("mqtt_max_qos must be between 0 and 2"))
	}
	if c.MQTTMaxRetries < 0 {
		err = multierr.Append(err, errors.New("mqtt_max_retries must not be negative"))
	}

	return err
}

// MQTT returns the configuration of the MQTT broker.
func (c Config) MQTT() mqtt.Config {
	return mqtt.Config{
		TCPAddress:          c.MQTTTCPAddress,
		ConnectTimeout:      c.MQTTConnectTimeout,
		BufferSize:          c.MQTTBufferSize,
		MaxPacketSize:       c.MQTTMaxPacketSize,
		MaxKeepAlive:        c.MQTTMaxKeepAlive,
		MaximumQoS:          byte(c.MQTTMaximumQoS),
		RetainAvailable:     c.MQTTRetainAvailable,
		MaxInflightMessages: c.MQTTMaxInflightMessages,
		RetryInterval:       c.MQTTRetryInterval,
		MaxRetries:          c.MQTTMaxRetries,
		OutboundQueueSize:   c.MQTTOutboundQueueSize,
		ClientIDPrefix:      c.MQTTClientIDPrefix,
		MaxConnectionRate:   c.MQTTMaxConnectionRate,
		MetricsEnabled:      c.MetricsEnabled,
	}
}

// API returns the configuration of the HTTP admin API.
func (c Config) API() api.Config {
	return api.Config{
		Address:        c.HTTPAddress,
		MetricsEnabled: c.MetricsEnabled,
		MetricsPath:    c.MetricsPath,
	}
}
