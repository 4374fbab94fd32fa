package grpc

import (
	"context"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "whatcountry.v1.WhatCountry"
	// LookupMethod is the full method name of Lookup.
	LookupMethod = "/" + ServiceName + "/Lookup"
)

// LookupServer is the server API of the WhatCountry service. Requests and
// responses are well-known protobuf types: the domain travels as a
// StringValue and the answer as a Struct with the fields of the JSON body.
type LookupServer interface {
	Lookup(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// ServiceDesc describes the WhatCountry service for grpc.Server.RegisterService.
var ServiceDesc = gogrpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LookupServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{
			MethodName: "Lookup",
			Handler:    lookupHandler,
		},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "whatcountry/v1/whatcountry.proto",
}

// Register adds srv to s.
func Register(s gogrpc.ServiceRegistrar, srv LookupServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func lookupHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(LookupServer).Lookup(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: LookupMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(LookupServer).Lookup(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Lookup calls the Lookup method on cc.
func Lookup(ctx context.Context, cc gogrpc.ClientConnInterface, domain string, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, LookupMethod, wrapperspb.String(domain), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
