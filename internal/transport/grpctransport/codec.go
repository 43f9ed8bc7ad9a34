// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package grpctransport

import (
	"github.com/bytedance/sonic"
)

// CodecName is the gRPC content-subtype of the extension protocol.
const CodecName = "strata-json"

// codec carries envelopes as JSON using sonic.
type codec struct{}

func (codec) Marshal(v any) ([]byte, error) { return sonic.Marshal(v) }

func (codec) Unmarshal(data []byte, v any) error { return sonic.Unmarshal(data, v) }

func (codec) Name() string { return CodecName }
