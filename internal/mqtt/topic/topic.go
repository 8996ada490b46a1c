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

// Package topic implements the MQTT topic filter grammar and the matching of topic names against
// topic filters.
package topic

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	separator      = "/"
	singleLevel    = "+"
	multiLevel     = "#"
	systemPrefix   = '$'
	maxTopicLength = 65535
)

var (
	// ErrMalformedFilter indicates that the topic filter does not follow the topic filter grammar.
	ErrMalformedFilter = errors.New("malformed topic filter")

	// ErrInvalidTopicName indicates that the topic name cannot be used for publishing.
	ErrInvalidTopicName = errors.New("invalid topic name")
)

// Match returns whether the topic name matches the topic filter.
//
// A "+" level matches exactly one level. A trailing "#" matches its parent level and any number of
// child levels. Filters starting with a wildcard never match topics starting with "$".
func Match(filter, topic string) bool {
	if len(filter) == 0 || len(topic) == 0 {
		return false
	}
	if topic[0] == systemPrefix && (filter[0] == '+' || filter[0] == '#') {
		return false
	}

	fLevels := strings.Split(filter, separator)
	tLevels := strings.Split(topic, separator)

	for i, level := range fLevels {
		if level == multiLevel {
			return i == len(fLevels)-1
		}
		if i >= len(tLevels) {
			return false
		}
		if level != singleLevel && level != tLevels[i] {
			return false
		}
	}

	return len(fLevels) == len(tLevels)
}

// ValidateFilter checks the topic filter against the topic filter grammar. It returns an error
// wrapping ErrMalformedFilter when the filter is invalid.
func ValidateFilter(filter string) error {
	if err := validateString(filter); err != nil {
		return fmt.Errorf("%w: %s", ErrMalformedFilter, err.Error())
	}

	levels := strings.Split(filter, separator)
	for i, level := range levels {
		if err := validateLevel(level, i == len(levels)-1); err != nil {
			return fmt.Errorf("%w: %s (%q)", ErrMalformedFilter, err.Error(), filter)
		}
	}

	return nil
}

// ValidateTopicName checks whether the topic can be used as the topic name of a published message.
func ValidateTopicName(topic string) error {
	if err := validateString(topic); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTopicName, err.Error())
	}
	if strings.ContainsAny(topic, singleLevel+multiLevel) {
		return fmt.Errorf("%w: wildcard not allowed (%q)", ErrInvalidTopicName, topic)
	}
	return nil
}

// IsWildcard returns whether the filter contains any wildcard level.
func IsWildcard(filter string) bool {
	return strings.ContainsAny(filter, singleLevel+multiLevel)
}

func validateString(s string) error {
	if len(s) == 0 {
		return errors.New("empty")
	}
	if len(s) > maxTopicLength {
		return errors.New("too long")
	}
	if !utf8.ValidString(s) {
		return errors.New("invalid UTF-8")
	}
	if strings.ContainsRune(s, 0) {
		return errors.New("null character")
	}
	return nil
}

func validateLevel(level string, last bool) error {
	if len(level) > 1 && strings.ContainsAny(level, singleLevel+multiLevel) {
		return errors.New("wildcard combined with other characters")
	}
	if level == multiLevel && !last {
		return errors.New("multi-level wildcard not in the last level")
	}
	return nil
}
