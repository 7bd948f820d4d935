// Copyright (c) 2016-2025 Uber Technologies, Inc.
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
package mockutil

import (
	"fmt"
	"regexp"

	"github.com/uber/dagrun/lib/broker"
)

// RegexMatcher is a gomock Matcher which matches strings against some
// given regex.
type RegexMatcher struct {
	expected *regexp.Regexp
}

// MatchRegex returns a new RegexMatcher which matches the given regex.
func MatchRegex(expr string) *RegexMatcher {
	return &RegexMatcher{regexp.MustCompile(expr)}
}

// Matches returns true if x is a string which matches the expected regex.
func (m *RegexMatcher) Matches(x interface{}) bool {
	s, ok := x.(string)
	if !ok {
		return false
	}
	return m.expected.MatchString(s)
}

func (m *RegexMatcher) String() string {
	return m.expected.String()
}

// MessageMatcher is a gomock Matcher which matches broker messages by queue,
// target and retry number. Generated message ids are ignored.
type MessageMatcher struct {
	queue  string
	target string
	retry  int
}

// MatchMessage returns a new MessageMatcher.
func MatchMessage(queue, target string, retry int) *MessageMatcher {
	return &MessageMatcher{queue, target, retry}
}

// Matches returns true if x is a broker.Message with the expected fields.
func (m *MessageMatcher) Matches(x interface{}) bool {
	msg, ok := x.(broker.Message)
	if !ok {
		return false
	}
	return msg.Queue == m.queue &&
		msg.Target == m.target &&
		msg.Context.RetryNumber == m.retry
}

func (m *MessageMatcher) String() string {
	return fmt.Sprintf("message to %s/%s on retry %d", m.queue, m.target, m.retry)
}
