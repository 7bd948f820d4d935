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
// Package executionclient wraps the endpoints of executionserver.
package executionclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/uber/dagrun/lib/execution"
	"github.com/uber/dagrun/lib/taskgraph"
	"github.com/uber/dagrun/utils/backoff"
	"github.com/uber/dagrun/utils/httputil"
)

// Client wraps executionserver endpoints.
type Client interface {
	Start(plan []byte) (execution.Info, error)
	Get(id string) (execution.Info, error)
	List() ([]execution.Info, error)
	Cancel(id string) error
	Events(id string) ([]taskgraph.Event, error)
}

type client struct {
	addr    string
	backoff *backoff.Backoff
}

// New returns a new Client of the server at addr. Idempotent requests are
// retried according to config.
func New(addr string, config backoff.Config) Client {
	return &client{addr, backoff.New(config)}
}

func (c *client) url(format string, args ...interface{}) string {
	return fmt.Sprintf("http://%s", c.addr) + fmt.Sprintf(format, args...)
}

func (c *client) Start(plan []byte) (execution.Info, error) {
	resp, err := httputil.Post(
		c.url("/executions"),
		httputil.SendBody(plan),
		httputil.SendHeaders(map[string]string{"Content-Type": "application/yaml"}),
		httputil.SendAcceptedCodes(http.StatusCreated))
	if err != nil {
		return execution.Info{}, err
	}
	defer resp.Body.Close()
	var info execution.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return execution.Info{}, fmt.Errorf("json decode: %s", err)
	}
	return info, nil
}

func (c *client) Get(id string) (execution.Info, error) {
	resp, err := httputil.Get(
		c.url("/executions/%s", url.PathEscape(id)),
		httputil.SendRetry(c.backoff))
	if err != nil {
		if httputil.IsNotFound(err) {
			return execution.Info{}, execution.ErrExecutionNotFound
		}
		return execution.Info{}, err
	}
	defer resp.Body.Close()
	var info execution.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return execution.Info{}, fmt.Errorf("json decode: %s", err)
	}
	return info, nil
}

func (c *client) List() ([]execution.Info, error) {
	resp, err := httputil.Get(c.url("/executions"), httputil.SendRetry(c.backoff))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var infos []execution.Info
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return nil, fmt.Errorf("json decode: %s", err)
	}
	return infos, nil
}

func (c *client) Cancel(id string) error {
	resp, err := httputil.Post(
		c.url("/executions/%s/cancel", url.PathEscape(id)),
		httputil.SendRetry(c.backoff),
		httputil.SendAcceptedCodes(http.StatusAccepted))
	if err != nil {
		if httputil.IsNotFound(err) {
			return execution.ErrExecutionNotFound
		}
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *client) Events(id string) ([]taskgraph.Event, error) {
	resp, err := httputil.Get(
		c.url("/executions/%s/events", url.PathEscape(id)),
		httputil.SendRetry(c.backoff))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var events []taskgraph.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("json decode: %s", err)
	}
	return events, nil
}
