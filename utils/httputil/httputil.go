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
// Package httputil sends HTTP requests with status checking and optional
// retries.
package httputil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/uber/dagrun/utils/backoff"
)

const defaultTimeout = 60 * time.Second

// StatusError occurs when a response carries an unaccepted status code.
type StatusError struct {
	Method       string
	URL          string
	Status       int
	ResponseDump string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%s %s %d: %s", e.Method, e.URL, e.Status, e.ResponseDump)
}

// IsStatus returns true if err is a StatusError with the given status.
func IsStatus(err error, status int) bool {
	serr, ok := err.(StatusError)
	return ok && serr.Status == status
}

// IsNotFound returns true if err is a 404 StatusError.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

type sendOptions struct {
	ctx           context.Context
	body          []byte
	timeout       time.Duration
	acceptedCodes map[int]bool
	headers       map[string]string
	retry         *backoff.Backoff
}

// SendOption configures a request.
type SendOption func(*sendOptions)

// SendBody sets the request body.
func SendBody(body []byte) SendOption {
	return func(o *sendOptions) { o.body = body }
}

// SendTimeout sets the timeout of every attempt.
func SendTimeout(t time.Duration) SendOption {
	return func(o *sendOptions) { o.timeout = t }
}

// SendHeaders sets request headers.
func SendHeaders(headers map[string]string) SendOption {
	return func(o *sendOptions) { o.headers = headers }
}

// SendAcceptedCodes replaces the accepted status codes, 200 by default.
func SendAcceptedCodes(codes ...int) SendOption {
	return func(o *sendOptions) {
		o.acceptedCodes = make(map[int]bool)
		for _, c := range codes {
			o.acceptedCodes[c] = true
		}
	}
}

// SendContext sets the context of the request.
func SendContext(ctx context.Context) SendOption {
	return func(o *sendOptions) { o.ctx = ctx }
}

// SendRetry retries transport errors and 5XX responses with b.
func SendRetry(b *backoff.Backoff) SendOption {
	return func(o *sendOptions) { o.retry = b }
}

// Send sends a request to url. The caller must close the body of the
// returned response.
func Send(method, url string, options ...SendOption) (*http.Response, error) {
	opts := sendOptions{
		ctx:           context.Background(),
		timeout:       defaultTimeout,
		acceptedCodes: map[int]bool{http.StatusOK: true},
	}
	for _, o := range options {
		o(&opts)
	}
	if opts.retry == nil {
		return send(method, url, opts)
	}
	var resp *http.Response
	err := opts.retry.Retry(opts.ctx, func() error {
		var err error
		resp, err = send(method, url, opts)
		if serr, ok := err.(StatusError); ok && serr.Status < 500 {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func send(method, url string, opts sendOptions) (*http.Response, error) {
	var body io.Reader
	if opts.body != nil {
		body = bytes.NewReader(opts.body)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	req = req.WithContext(opts.ctx)
	for k, v := range opts.headers {
		req.Header.Set(k, v)
	}
	client := http.Client{Timeout: opts.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if !opts.acceptedCodes[resp.StatusCode] {
		defer resp.Body.Close()
		b, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			b = []byte(fmt.Sprintf("read body: %s", err))
		}
		return nil, StatusError{method, url, resp.StatusCode, string(b)}
	}
	return resp, nil
}

// Get sends a GET request.
func Get(url string, options ...SendOption) (*http.Response, error) {
	return Send("GET", url, options...)
}

// Post sends a POST request.
func Post(url string, options ...SendOption) (*http.Response, error) {
	return Send("POST", url, options...)
}
