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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dimiro1/banner"
	"github.com/hrsystem/hrmq/internal/api"
	"github.com/hrsystem/hrmq/internal/config"
	"github.com/hrsystem/hrmq/internal/logger"
	"github.com/hrsystem/hrmq/internal/mqtt"
	"github.com/hrsystem/hrmq/internal/server"
	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"
)

var bannerTemplate = `{{ .Title "HRMQ" "" 0 }}
{{ .AnsiColor.BrightCyan }}  A lightweight MQTT broker for robot fleets
{{ .AnsiColor.Default }}
`

func newCommandStart() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start server",
		Long:  "Start the HRMQ server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf, found, err := loadConfig()
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}

			log, err := newLogger(os.Stdout, conf.LogFormat, conf.LogLevel)
			if err != nil {
				return fmt.Errorf("failed to start server: %w", err)
			}

			banner.InitString(colorable.NewColorableStdout(), true, true, bannerTemplate)

			bsLog := log.WithPrefix("bootstrap")
			if found {
				bsLog.Info().Msg("Config file loaded with success")
			} else {
				bsLog.Info().Msg("No config file found")
			}

			if cf, err := json.Marshal(conf); err == nil {
				bsLog.Debug().RawJSON("Configuration", cf).Msg("Using configuration")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServer(ctx, conf, log)
		},
	}
}

func loadConfig() (c config.Config, found bool, err error) {
	c = config.DefaultConfig

	err = config.ReadConfigFile()
	if err == nil {
		found = true
	} else if !errors.Is(err, config.ErrConfigFileNotFound) {
		return c, false, err
	}

	if err = config.LoadConfig(&c); err != nil {
		return c, found, err
	}
	return c, found, c.Validate()
}

func newLogger(out io.Writer, format, level string) (*logger.Logger, error) {
	if err := logger.SetSeverityLevel(level); err != nil {
		return nil, err
	}
	return logger.New(out, logger.Format(format))
}

func newServer(c config.Config, l *logger.Logger) (*server.Server, error) {
	broker := mqtt.New(c.MQTT(), l)

	s := server.New(l)
	s.AddListener(broker)

	if c.HTTPEnabled {
		httpSrv, err := api.NewHTTPServer(c.API(), broker, l)
		if err != nil {
			return nil, err
		}
		s.AddListener(httpSrv)
	}

	return s, nil
}

// runServer runs the server until the context is cancelled or any listener fails.
func runServer(ctx context.Context, c config.Config, l *logger.Logger) error {
	s, err := newServer(c, l)
	if err != nil {
		return err
	}

	if err = s.Start(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- s.Wait() }()

	select {
	case <-ctx.Done():
		s.Stop()
		return <-done
	case err = <-done:
		return err
	}
}
