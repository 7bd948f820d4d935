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
package metrics

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/uber-go/tally"
)

// stdoutReporter prints every flushed metric, for local runs of the binary.
type stdoutReporter struct {
	w io.Writer
}

func newStdoutScope(config Config, cluster string) (tally.Scope, io.Closer, error) {
	tags := map[string]string{}
	if cluster != "" {
		tags["cluster"] = cluster
	}
	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Tags:     tags,
		Reporter: stdoutReporter{os.Stdout},
	}, time.Second)
	return scope, closer, nil
}

func (r stdoutReporter) ReportCounter(name string, _ map[string]string, value int64) {
	fmt.Fprintf(r.w, "count %s %d\n", name, value)
}

func (r stdoutReporter) ReportGauge(name string, _ map[string]string, value float64) {
	fmt.Fprintf(r.w, "gauge %s %f\n", name, value)
}

func (r stdoutReporter) ReportTimer(name string, _ map[string]string, interval time.Duration) {
	fmt.Fprintf(r.w, "timer %s %s\n", name, interval)
}

func (r stdoutReporter) ReportHistogramValueSamples(
	name string, _ map[string]string, _ tally.Buckets,
	lower, upper float64, samples int64) {

	fmt.Fprintf(r.w, "histogram %s [%f, %f) %d\n", name, lower, upper, samples)
}

func (r stdoutReporter) ReportHistogramDurationSamples(
	name string, _ map[string]string, _ tally.Buckets,
	lower, upper time.Duration, samples int64) {

	fmt.Fprintf(r.w, "histogram %s [%s, %s) %d\n", name, lower, upper, samples)
}

func (r stdoutReporter) Capabilities() tally.Capabilities { return r }
func (r stdoutReporter) Reporting() bool                  { return true }
func (r stdoutReporter) Tagging() bool                    { return false }
func (r stdoutReporter) Flush()                           {}

func newDisabledScope(Config, string) (tally.Scope, io.Closer, error) {
	scope, closer := tally.NewRootScope(tally.ScopeOptions{}, time.Second)
	return scope, closer, nil
}
