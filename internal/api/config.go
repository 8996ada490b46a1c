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

package api

// Config holds the HTTP server configuration.
type Config struct {
	// Address is the TCP address (<IP>:<port>) that the HTTP server binds to.
	Address string

	// MetricsEnabled indicates whether the Prometheus metrics are exported or not.
	MetricsEnabled bool

	// MetricsPath is the path of the Prometheus metrics.
	MetricsPath string

	// ReadTimeout is the time, in seconds, the server waits for reading the entire request.
	ReadTimeout int

	// WriteTimeout is the time, in seconds, the server waits before timing out writes of the
	// response.
	WriteTimeout int

	// ShutdownTimeout is the time, in seconds, the server waits for a graceful shutdown.
	ShutdownTimeout int
}

func (c *Config) setDefaults() {
	if c.MetricsPath == "" {
		c.MetricsPath = "/metrics"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 5
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5
	}
}
