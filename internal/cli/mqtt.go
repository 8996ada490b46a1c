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

package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hrsystem/hrmq/internal/logger"
	"github.com/hrsystem/hrmq/internal/mqtt/client"
	"github.com/hrsystem/hrmq/internal/mqtt/packet"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// clientFlags holds the flags shared by the commands which connect to a broker.
type clientFlags struct {
	address  string
	clientID string
	qos      int
	timeout  time.Duration
	verbose  bool
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.address, "address", "a", "localhost:1883", "Broker address (<host>:<port>)")
	cmd.Flags().StringVarP(&f.clientID, "id", "i", "", "Client ID (generated when empty)")
	cmd.Flags().IntVarP(&f.qos, "qos", "q", 0, "Quality of service (0, 1 or 2)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 5*time.Second, "Connection and acknowledgement timeout")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Log client activity")
}

func (f *clientFlags) packetQoS() (packet.QoS, error) {
	if f.qos < 0 || f.qos > int(packet.QoS2) {
		return 0, fmt.Errorf("invalid QoS: %d", f.qos)
	}
	return packet.QoS(f.qos), nil
}

func (f *clientFlags) options(out io.Writer) client.Options {
	log := &logger.Logger{Logger: zerolog.Nop()}
	if f.verbose {
		if l, err := logger.New(out, logger.Pretty); err == nil {
			log = l
		}
	}

	return client.Options{
		Logger:         log,
		ConnectTimeout: f.timeout,
		AckTimeout:     f.timeout,
		MaxRetries:     1,
	}
}

// formatPayload indents JSON payloads and returns any other payload as is.
func formatPayload(payload []byte) string {
	if json.Valid(payload) {
		var buf bytes.Buffer
		if err := json.Indent(&buf, payload, "", "  "); err == nil {
			return buf.String()
		}
	}
	return string(payload)
}
