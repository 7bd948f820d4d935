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

// Package configutil loads YAML configuration files and validates the
// merged result.
//
// A file may extend another one:
//
//	production.yaml:
//	  extends: base.yaml
//
// Extends chains form a linked list; the base is loaded first and every
// following file is unmarshalled on top of it. Maps are merged key by key,
// lists are replaced by the latest file that defines them.
package configutil

import (
	"bytes"
	"errors"
	"fmt"
	"io/ioutil"
	"path/filepath"

	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// ErrCycleRef is returned when configuration files extend each other in a
// loop.
var ErrCycleRef = errors.New("cyclic reference in configuration extends detected")

type extends struct {
	Extends string `yaml:"extends"`
}

// ValidationError is returned when the merged configuration fails
// validation.
type ValidationError struct {
	errorMap validator.ErrorMap
}

// ErrForField returns the validation error for the given field.
func (e ValidationError) ErrForField(name string) error {
	return e.errorMap[name]
}

func (e ValidationError) Error() string {
	var w bytes.Buffer
	fmt.Fprintf(&w, "validation failed")
	for f, err := range e.errorMap {
		fmt.Fprintf(&w, "   %s: %v\n", f, err)
	}
	return w.String()
}

// Load loads filename into config, following extends directives.
func Load(filename string, config interface{}) error {
	filenames, err := resolveExtends(filename, readExtends)
	if err != nil {
		return err
	}
	return LoadFiles(config, filenames...)
}

// LoadFiles unmarshals each file in order on top of config and validates the
// final result once.
func LoadFiles(config interface{}, filenames ...string) error {
	for _, fname := range filenames {
		data, err := ioutil.ReadFile(fname)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("unmarshal %s: %s", fname, err)
		}
	}
	return Validate(config)
}

// Validate runs validator tags against config.
func Validate(config interface{}) error {
	if err := validator.Validate(config); err != nil {
		if m, ok := err.(validator.ErrorMap); ok {
			return ValidationError{errorMap: m}
		}
		return err
	}
	return nil
}

type extendsReader func(filename string) (string, error)

func resolveExtends(filename string, read extendsReader) ([]string, error) {
	filenames := []string{filename}
	seen := map[string]bool{filename: true}
	for {
		ext, err := read(filename)
		if err != nil {
			return nil, err
		}
		if ext == "" {
			break
		}
		// Relative extends are resolved against the extending file.
		if !filepath.IsAbs(ext) {
			ext = filepath.Join(filepath.Dir(filename), ext)
		}
		if seen[ext] {
			return nil, ErrCycleRef
		}
		seen[ext] = true
		filenames = append([]string{ext}, filenames...)
		filename = ext
	}
	return filenames, nil
}

func readExtends(filename string) (string, error) {
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return "", err
	}
	var e extends
	if err := yaml.Unmarshal(data, &e); err != nil {
		return "", fmt.Errorf("unmarshal %s: %s", filename, err)
	}
	return e.Extends, nil
}
