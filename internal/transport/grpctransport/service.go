// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Strata Contributors

package grpctransport

import (
	"context"

	"github.com/samber/oops"
	"google.golang.org/grpc"

	"github.com/stratanode/strata/internal/extensions"
)

// ServiceName is the gRPC service every host and extension serves.
const ServiceName = "strata.extensions.v1.Transport"

const invokeMethod = "/" + ServiceName + "/Invoke"

// envelope is one named request.
type envelope struct {
	Action  string `json:"action"`
	Sender  string `json:"sender,omitempty"`
	Payload []byte `json:"payload,omitempty"`
}

// result is the reply to an envelope. A non-empty Code means the handler
// failed; the code survives the hop so both sides classify errors alike.
type result struct {
	Payload []byte `json:"payload,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func (r *result) err() error {
	if r.Code == "" {
		return nil
	}
	return oops.Code(r.Code).Errorf("%s", r.Message)
}

// invoker is the server side of the Invoke method.
type invoker interface {
	invoke(ctx context.Context, in *envelope) (*result, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*invoker)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Invoke",
			Handler:    invokeHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "strata/extensions/v1/transport",
}

func invokeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(envelope)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(invoker).invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: invokeMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(invoker).invoke(ctx, req.(*envelope))
	}
	return interceptor(ctx, in, info, handler)
}

func failure(code string, err error) *result {
	if code == "" {
		code = extensions.CodeHandlerError
	}
	return &result{Code: code, Message: err.Error()}
}
