package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// DocumentServiceName is the fully qualified gRPC service name. Messages are
// google.protobuf.Struct so no generated stubs are needed.
const DocumentServiceName = "docpipe.v1.DocumentService"

const (
	processFullMethod          = "/" + DocumentServiceName + "/Process"
	recordCategoryFullMethod   = "/" + DocumentServiceName + "/RecordCategory"
	processDirectoryFullMethod = "/" + DocumentServiceName + "/ProcessDirectory"
)

type DocumentServiceServer interface {
	Process(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordCategory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessDirectory(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterDocumentServiceServer(s grpc.ServiceRegistrar, srv DocumentServiceServer) {
	s.RegisterService(&DocumentServiceDesc, srv)
}

var DocumentServiceDesc = grpc.ServiceDesc{
	ServiceName: DocumentServiceName,
	HandlerType: (*DocumentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Process", Handler: unaryHandler(processFullMethod, DocumentServiceServer.Process)},
		{MethodName: "RecordCategory", Handler: unaryHandler(recordCategoryFullMethod, DocumentServiceServer.RecordCategory)},
		{MethodName: "ProcessDirectory", Handler: unaryHandler(processDirectoryFullMethod, DocumentServiceServer.ProcessDirectory)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "docpipe/v1/document.proto",
}

type unaryMethod func(DocumentServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DocumentServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DocumentServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// DocumentClient calls DocumentService over a client connection.
type DocumentClient struct {
	cc grpc.ClientConnInterface
}

func NewDocumentClient(cc grpc.ClientConnInterface) *DocumentClient {
	return &DocumentClient{cc: cc}
}

func (c *DocumentClient) Process(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, processFullMethod, in, opts...)
}

func (c *DocumentClient) RecordCategory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, recordCategoryFullMethod, in, opts...)
}

func (c *DocumentClient) ProcessDirectory(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, processDirectoryFullMethod, in, opts...)
}

func (c *DocumentClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
