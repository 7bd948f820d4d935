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
package listener

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
)

// Listen opens a listener configured by config. A stale unix socket left by
// a previous process is removed first.
func Listen(config Config) (net.Listener, error) {
	config = config.applyDefaults()
	if config.Net == "unix" {
		if err := os.Remove(config.Addr); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale socket: %s", err)
		}
	}
	return net.Listen(config.Net, config.Addr)
}

// Serve serves h on a listener configured by config until ctx is done. Useful
// for easily swapping tcp / unix servers.
func Serve(ctx context.Context, config Config, h http.Handler) error {
	l, err := Listen(config)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: h}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(l) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	}
}
