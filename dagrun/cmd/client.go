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
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"

	"github.com/uber/dagrun/lib/execution/executionclient"
	"github.com/uber/dagrun/utils/backoff"
	"github.com/uber/dagrun/utils/log"
)

// runClient runs one of the client commands against flags.Server and prints
// the JSON result to out.
func runClient(flags *Flags, config backoff.Config, out io.Writer) int {
	c := executionclient.New(flags.Server, config)

	var result interface{}
	var err error
	switch flags.Command {
	case SubmitCommand:
		var b []byte
		b, err = ioutil.ReadFile(flags.PlanFile)
		if err == nil {
			result, err = c.Start(b)
		}
	case StatusCommand:
		result, err = c.Get(flags.ExecutionID)
	case CancelCommand:
		err = c.Cancel(flags.ExecutionID)
	case ListCommand:
		result, err = c.List()
	default:
		err = fmt.Errorf("unknown client command %q", flags.Command)
	}
	if err != nil {
		log.Errorf("%s: %s", flags.Command, err)
		return ExitFailed
	}
	if result == nil {
		return ExitSucceeded
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Errorf("Error encoding result: %s", err)
		return ExitFailed
	}
	return ExitSucceeded
}
