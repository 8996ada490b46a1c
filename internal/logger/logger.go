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

// Package logger provides the structured logger used by every component of the broker.
package logger

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Format represents the output format of the logs.
type Format string

const (
	// Pretty generates colourised human-readable logs.
	Pretty Format = "pretty"

	// JSON generates one JSON object per log entry.
	JSON Format = "json"
)

// ErrInvalidLogLevel indicates that the severity level is unknown.
var ErrInvalidLogLevel = errors.New("invalid log level")

// ErrInvalidLogFormat indicates that the log format is unknown.
var ErrInvalidLogFormat = errors.New("invalid log format")

const (
	reset  = "\x1b[0m"
	red    = "\x1b[31m"
	green  = "\x1b[32m"
	yellow = "\x1b[33m"
	blue   = "\x1b[34m"
	cyan   = "\x1b[36m"
	white  = "\x1b[37m"
	bgRed  = "\x1b[41m"
	gray   = "\x1b[90m"
)

var levelColor = map[string]string{
	"TRACE": gray,
	"DEBUG": blue,
	"INFO":  green,
	"WARN":  yellow,
	"ERROR": red,
	"FATAL": bgRed,
}

var levelCode = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
}

func init() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
}

// Logger represents a logging object responsible to generate outputs to an io.Writer.
type Logger struct {
	zerolog.Logger
}

// New creates a new logger object which writes into out using the given format.
func New(out io.Writer, format Format) (*Logger, error) {
	var w io.Writer

	switch Format(strings.ToLower(string(format))) {
	case Pretty, "":
		w = newConsoleWriter(out)
	case JSON:
		w = out
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidLogFormat, format)
	}

	log := zerolog.New(w).With().Timestamp().Logger()
	return &Logger{Logger: log}, nil
}

// WithPrefix returns a copy of the logger which adds the prefix field into every log entry.
func (l *Logger) WithPrefix(prefix string) *Logger {
	return &Logger{Logger: l.Logger.With().Str("Prefix", prefix).Logger()}
}

// SetSeverityLevel sets the minimal severity level which the logs will be produced.
func SetSeverityLevel(level string) error {
	l, ok := levelCode[strings.ToLower(level)]
	if !ok {
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, level)
	}

	zerolog.SetGlobalLevel(l)
	return nil
}

func newConsoleWriter(out io.Writer) *zerolog.ConsoleWriter {
	output := &zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339Nano,
	}

	output.FormatTimestamp = formatTimestamp
	output.FormatLevel = formatLevel
	output.FormatMessage = formatMessage
	output.FormatFieldName = formatFieldName
	output.FormatFieldValue = formatFieldValue
	output.FormatErrFieldName = formatFieldName
	output.FormatErrFieldValue = formatFieldValue
	return output
}

func formatTimestamp(i interface{}) string {
	v, err := strconv.ParseInt(fmt.Sprintf("%v", i), 10, 64)
	if err != nil {
		return ""
	}

	t := time.UnixMicro(v)
	return colorize(white, t.Format("2006-01-02 15:04:05.000000 -0700"))
}

func formatLevel(i interface{}) string {
	level := strings.ToUpper(fmt.Sprintf("%s", i))
	return fmt.Sprintf("| %-14s |", colorize(levelColor[level], level))
}

func formatMessage(i interface{}) string {
	if i == nil {
		return ""
	}
	return colorize(cyan, fmt.Sprintf("%s", i))
}

func formatFieldName(i interface{}) string {
	return colorize(gray, fmt.Sprintf("%s=", i))
}

func formatFieldValue(i interface{}) string {
	return colorize(gray, fmt.Sprintf("%s", i))
}

func colorize(color, msg string) string {
	if color == "" {
		return msg
	}
	return color + msg + reset
}
