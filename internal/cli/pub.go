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

	"github.com/hrsystem/hrmq/internal/mqtt/client"
	"github.com/spf13/cobra"
)

func newCommandPub() *cobra.Command {
	var (
		flags   clientFlags
		topic   string
		message string
		retain  bool
	)

	cmd := &cobra.Command{
		Use:   "pub",
		Short: "Publish a message",
		Long:  "Connect to a broker, publish a single message and disconnect",
		RunE: func(cmd *cobra.Command, _ []string) error {
			qos, err := flags.packetQoS()
			if err != nil {
				return err
			}

			c := client.New(flags.options(cmd.ErrOrStderr()))
			if err = c.Connect(cmd.Context(), flags.address, flags.clientID); err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}

			err = c.Publish(cmd.Context(), topic, []byte(message), qos, retain)
			if err != nil {
				_ = c.Disconnect()
				return fmt.Errorf("failed to publish: %w", err)
			}

			return c.Disconnect()
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&topic, "topic", "t", "", "Topic name")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Message payload")
	cmd.Flags().BoolVarP(&retain, "retain", "r", false, "Retain the message")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}
