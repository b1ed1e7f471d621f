// Copyright 2025 The Wireline Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package wirelinedebug provides a mechanism to configure debug/compatibility
// parameters via the WIRELINEDEBUG environment variable.
//
// The value of WIRELINEDEBUG is a comma-separated list of key=value pairs.
// For example:
//
//	WIRELINEDEBUG=logframes=1
package wirelinedebug

import (
	"fmt"
	"os"
	"strings"
)

const debugEnvKey = "WIRELINEDEBUG"

var debugParams map[string]string

func init() {
	var err error
	debugParams, err = parseDebug(os.Getenv(debugEnvKey))
	if err != nil {
		panic(err)
	}
}

// Value returns the value of the debug parameter with the given key. It
// returns an empty string if the key is not set.
func Value(key string) string {
	return debugParams[key]
}

func parseDebug(envValue string) (map[string]string, error) {
	if envValue == "" {
		return nil, nil
	}

	params := make(map[string]string)
	for _, part := range strings.Split(envValue, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("WIRELINEDEBUG: invalid format: %q", part)
		}
		params[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return params, nil
}
