// Copyright 2024 syztriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package config

import (
	"fmt"
	"reflect"
	"testing"
)

func TestLoad(t *testing.T) {
	type Nested struct {
		Aaa int
		Bbb string
	}
	type Config struct {
		Foo int
		Bar string
		Qux []string
		Box Nested
		Map map[string]string
	}

	tests := []struct {
		input  string
		output Config
		ok     bool
	}{
		{
			`{"foo": 42}`,
			Config{Foo: 42},
			true,
		},
		{
			`{"BAR": "Baz", "foo": 42}`,
			Config{Foo: 42, Bar: "Baz"},
			true,
		},
		{
			`{"foobar": 42}`,
			Config{},
			false,
		},
		{
			"# comment\n{\"foo\": 1,\n# another comment\n\"qux\": [\"aaa\", \"bbb\"]}",
			Config{Foo: 1, Qux: []string{"aaa", "bbb"}},
			true,
		},
		{
			`{"box": {"aaa": 12, "bbb": "bbb"}}`,
			Config{Box: Nested{Aaa: 12, Bbb: "bbb"}},
			true,
		},
		{
			`{"map": {"KERN-48": "34afb82a3c67", "KERN-49": "34afb82a3c67"}}`,
			Config{Map: map[string]string{"KERN-48": "34afb82a3c67", "KERN-49": "34afb82a3c67"}},
			true,
		},
		{
			`{"foo": null, "qux": null}`,
			Config{},
			true,
		},
	}
	for i, test := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			var cfg Config
			err := LoadData([]byte(test.input), &cfg)
			if test.ok != (err == nil) {
				t.Fatalf("load error mismatch: want ok=%v, got err=%v", test.ok, err)
			}
			if err != nil {
				return
			}
			if !reflect.DeepEqual(test.output, cfg) {
				t.Fatalf("bad output: want:\n%#v\n, got:\n%#v", test.output, cfg)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	var cfg struct{}
	if err := LoadFile("", &cfg); err == nil {
		t.Fatalf("expected error for empty filename")
	}
	if err := LoadFile("/nonexistent/syztriage.cfg", &cfg); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
