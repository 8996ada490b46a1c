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

package topic

import (
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
)

func TestTopicMatch(t *testing.T) {
	testCases := []struct {
		filter string
		topic  string
		match  bool
	}{
		{filter: "a/b", topic: "a/b", match: true},
		{filter: "a/b", topic: "a/c", match: false},
		{filter: "a/b", topic: "a/b/c", match: false},
		{filter: "a/b/c", topic: "a/b", match: false},
		{filter: "A/b", topic: "a/b", match: false},
		{filter: "a/+", topic: "a/b", match: true},
		{filter: "a/+", topic: "a/b/c", match: false},
		{filter: "a/+", topic: "a", match: false},
		{filter: "a/+", topic: "a/", match: true},
		{filter: "+/+", topic: "/a", match: true},
		{filter: "+/b/+", topic: "a/b/c", match: true},
		{filter: "a/#", topic: "a", match: true},
		{filter: "a/#", topic: "a/b", match: true},
		{filter: "a/#", topic: "a/b/c", match: true},
		{filter: "a/#", topic: "b/a", match: false},
		{filter: "a/+/#", topic: "a/b", match: true},
		{filter: "#", topic: "a/b/c", match: true},
		{filter: "#", topic: "/", match: true},
		{filter: "HR/Status", topic: "HR/Status", match: true},
		{filter: "frying_ai/#", topic: "frying_ai/status", match: true},
		{filter: "AI/+", topic: "AI/RBSensorInfo", match: true},
		{filter: "#", topic: "$SYS/uptime", match: false},
		{filter: "+/uptime", topic: "$SYS/uptime", match: false},
		{filter: "$SYS/#", topic: "$SYS/uptime", match: true},
		{filter: "", topic: "a", match: false},
		{filter: "a", topic: "", match: false},
	}

	for _, tc := range testCases {
		t.Run(tc.filter+"|"+tc.topic, func(t *testing.T) {
			assert.Equal(t, tc.match, Match(tc.filter, tc.topic))
		})
	}
}

func TestTopicMatchLiteralFilterMatchesItself(t *testing.T) {
	for i := 0; i < 20; i++ {
		topic := strings.Join([]string{gofakeit.Word(), gofakeit.Word(), gofakeit.Word()}, "/")
		assert.True(t, Match(topic, topic), topic)
		assert.True(t, Match("#", topic), topic)
		assert.True(t, Match("+/+/+", topic), topic)
		assert.False(t, Match("+/+", topic), topic)
	}
}

func TestTopicValidateFilter(t *testing.T) {
	testCases := []struct {
		filter string
		valid  bool
	}{
		{filter: "a", valid: true},
		{filter: "a/b/c", valid: true},
		{filter: "+", valid: true},
		{filter: "#", valid: true},
		{filter: "a/+/c", valid: true},
		{filter: "a/#", valid: true},
		{filter: "+/#", valid: true},
		{filter: "/a", valid: true},
		{filter: "", valid: false},
		{filter: "a/#/c", valid: false},
		{filter: "#/a", valid: false},
		{filter: "a/b#", valid: false},
		{filter: "a/#b", valid: false},
		{filter: "a+/b", valid: false},
		{filter: "a/+b", valid: false},
		{filter: "a/\x00", valid: false},
		{filter: strings.Repeat("a", maxTopicLength+1), valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.filter, func(t *testing.T) {
			err := ValidateFilter(tc.filter)
			if tc.valid {
				assert.Nil(t, err)
			} else {
				assert.ErrorIs(t, err, ErrMalformedFilter)
			}
		})
	}
}

func TestTopicValidateTopicName(t *testing.T) {
	testCases := []struct {
		topic string
		valid bool
	}{
		{topic: "a", valid: true},
		{topic: "AI/RBSensorInfo", valid: true},
		{topic: "$SYS/uptime", valid: true},
		{topic: "", valid: false},
		{topic: "a/+", valid: false},
		{topic: "a/#", valid: false},
		{topic: "a\x00b", valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.topic, func(t *testing.T) {
			err := ValidateTopicName(tc.topic)
			if tc.valid {
				assert.Nil(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTopicName)
			}
		})
	}
}

func TestTopicIsWildcard(t *testing.T) {
	assert.True(t, IsWildcard("a/+"))
	assert.True(t, IsWildcard("#"))
	assert.False(t, IsWildcard("a/b"))
}

func BenchmarkTopicMatch(b *testing.B) {
	b.ReportAllocs()
	for n := 0; n < b.N; n++ {
		_ = Match("frying_ai/+/#", "frying_ai/line1/temperature/oil")
	}
}
