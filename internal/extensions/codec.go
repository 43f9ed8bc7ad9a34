// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package extensions

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Encode serializes a message payload.
func Encode(v any) ([]byte, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

// Decode deserializes a message payload. An empty payload decodes to the
// zero value.
func Decode[T any](data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	if err := sonic.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %T: %w", v, err)
	}
	return v, nil
}
