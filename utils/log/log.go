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

// Package log holds the process-wide sugared zap logger used by every
// dagrun component. Libraries log through the package functions so that the
// binary can swap the backing logger once at startup.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _default *zap.SugaredLogger

func init() {
	zapConfig := zap.NewProductionConfig()
	zapConfig.Encoding = "console"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.DisableStacktrace = true

	ConfigureLogger(zapConfig)
}

// ConfigureLogger builds a logger from zapConfig and installs it globally.
func ConfigureLogger(zapConfig zap.Config) *zap.SugaredLogger {
	logger, err := zapConfig.Build()
	if err != nil {
		panic(err)
	}
	// Report the caller of the package function, not this file.
	_default = logger.WithOptions(zap.AddCallerSkip(1)).Sugar()
	return _default
}

// SetGlobalLogger installs l as the global logger.
func SetGlobalLogger(l *zap.SugaredLogger) {
	_default = l
}

// Default returns the global logger.
func Default() *zap.SugaredLogger {
	return _default
}

// With returns the global logger annotated with the given key-value pairs.
func With(args ...interface{}) *zap.SugaredLogger {
	return _default.With(args...)
}

// Debug logs at debug level.
func Debug(args ...interface{}) { _default.Debug(args...) }

// Info logs at info level.
func Info(args ...interface{}) { _default.Info(args...) }

// Warn logs at warn level.
func Warn(args ...interface{}) { _default.Warn(args...) }

// Error logs at error level.
func Error(args ...interface{}) { _default.Error(args...) }

// Fatal logs at fatal level and exits.
func Fatal(args ...interface{}) { _default.Fatal(args...) }

// Debugf logs a templated message at debug level.
func Debugf(template string, args ...interface{}) { _default.Debugf(template, args...) }

// Infof logs a templated message at info level.
func Infof(template string, args ...interface{}) { _default.Infof(template, args...) }

// Warnf logs a templated message at warn level.
func Warnf(template string, args ...interface{}) { _default.Warnf(template, args...) }

// Errorf logs a templated message at error level.
func Errorf(template string, args ...interface{}) { _default.Errorf(template, args...) }

// Fatalf logs a templated message at fatal level and exits.
func Fatalf(template string, args ...interface{}) { _default.Fatalf(template, args...) }

// Infow logs a message with structured context.
func Infow(msg string, keysAndValues ...interface{}) { _default.Infow(msg, keysAndValues...) }

// Warnw logs a message with structured context.
func Warnw(msg string, keysAndValues ...interface{}) { _default.Warnw(msg, keysAndValues...) }

// Errorw logs a message with structured context.
func Errorw(msg string, keysAndValues ...interface{}) { _default.Errorw(msg, keysAndValues...) }
