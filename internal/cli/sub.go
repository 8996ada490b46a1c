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
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hrsystem/hrmq/internal/mqtt/client"
	"github.com/spf13/cobra"
)

func newCommandSub() *cobra.Command {
	var (
		flags  clientFlags
		filter string
		count  int
	)

	cmd := &cobra.Command{
		Use:   "sub",
		Short: "Subscribe to a topic filter",
		Long:  "Connect to a broker and print every message matching the topic filter",
		RunE: func(cmd *cobra.Command, _ []string) error {
			qos, err := flags.packetQoS()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			out := &lockedWriter{w: cmd.OutOrStdout()}
			received := make(chan struct{}, 1)
			disconnected := make(chan struct{})
			var n int

			opts := flags.options(cmd.ErrOrStderr())
			opts.OnMessage = func(msg client.Message) {
				printMessage(out, msg)

				n++
				if count > 0 && n == count {
					received <- struct{}{}
				}
			}
			opts.OnDisconnected = func(client.DisconnectReason) {
				close(disconnected)
			}

			c := client.New(opts)
			if err = c.Connect(ctx, flags.address, flags.clientID); err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}

			granted, err := c.Subscribe(ctx, filter, qos)
			if err != nil {
				_ = c.Disconnect()
				return fmt.Errorf("failed to subscribe: %w", err)
			}
			_, _ = fmt.Fprintf(out, "Subscribed to %s (QoS %d)\n", filter, granted)

			select {
			case <-ctx.Done():
			case <-received:
			case <-disconnected:
				return client.ErrTransportClosed
			}

			return c.Disconnect()
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&filter, "topic", "t", "", "Topic filter")
	cmd.Flags().IntVarP(&count, "count", "c", 0, "Exit after receiving this number of messages")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}

func printMessage(w io.Writer, msg client.Message) {
	retained := ""
	if msg.Retain {
		retained = " retained"
	}

	_, _ = fmt.Fprintf(w, "%s (QoS %d%s)\n%s\n", msg.Topic, msg.QoS, retained, formatPayload(msg.Payload))
}

// lockedWriter serializes the writes of the command and of the message callback.
type lockedWriter struct {
	w  io.Writer
	mu sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
