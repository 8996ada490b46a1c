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

package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/hrsystem/hrmq/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerPretty(t *testing.T) {
	require.Nil(t, logger.SetSeverityLevel("trace"))

	out := bytes.NewBufferString("")
	log, err := logger.New(out, logger.Pretty)
	require.Nil(t, err)

	msg := gofakeit.Phrase()
	log.Info().Msg(msg)
	assert.Contains(t, out.String(), "INFO")
	assert.Contains(t, out.String(), msg)
}

func TestLoggerWithField(t *testing.T) {
	require.Nil(t, logger.SetSeverityLevel("trace"))

	out := bytes.NewBufferString("")
	log, err := logger.New(out, logger.Pretty)
	require.Nil(t, err)

	key := gofakeit.Word()
	val := gofakeit.Phrase()
	log.Info().Str(key, val).Msg("")
	assert.Contains(t, out.String(), key+"=")
	assert.Contains(t, out.String(), val)
}

func TestLoggerJSONWithPrefix(t *testing.T) {
	require.Nil(t, logger.SetSeverityLevel("trace"))

	out := bytes.NewBufferString("")
	log, err := logger.New(out, logger.JSON)
	require.Nil(t, err)

	log.WithPrefix("mqtt.broker").Debug().Str("ClientId", "a").Msg("Client connected")

	entry := map[string]interface{}{}
	require.Nil(t, json.Unmarshal(out.Bytes(), &entry))
	assert.Equal(t, "mqtt.broker", entry["Prefix"])
	assert.Equal(t, "a", entry["ClientId"])
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "Client connected", entry["message"])
}

func TestLoggerInvalidFormat(t *testing.T) {
	_, err := logger.New(&bytes.Buffer{}, logger.Format("xml"))
	assert.ErrorIs(t, err, logger.ErrInvalidLogFormat)
}

func TestLoggerSetSeverity(t *testing.T) {
	out := bytes.NewBufferString("")
	log, err := logger.New(out, logger.Pretty)
	require.Nil(t, err)

	err = logger.SetSeverityLevel("INFO")
	require.Nil(t, err)
	defer func() { _ = logger.SetSeverityLevel("trace") }()

	log.Debug().Msg(gofakeit.Phrase())
	assert.Empty(t, out.String())
}

func TestLoggerSetInvalidSeverity(t *testing.T) {
	err := logger.SetSeverityLevel("invalid")
	assert.ErrorIs(t, err, logger.ErrInvalidLogLevel)
}
