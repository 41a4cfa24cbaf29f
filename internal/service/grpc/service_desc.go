package grpcsvc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName: полное имя gRPC-сервиса витрины.
const ServiceName = "storefront.v1.Storefront"

// Полные имена методов, как они видны в метриках и интерсепторах.
const (
	MethodListCategories = "/" + ServiceName + "/ListCategories"
	MethodListProducts   = "/" + ServiceName + "/ListProducts"
	MethodGetProduct     = "/" + ServiceName + "/GetProduct"
	MethodListCustomers  = "/" + ServiceName + "/ListCustomers"
	MethodQuote          = "/" + ServiceName + "/Quote"
	MethodCheckout       = "/" + ServiceName + "/Checkout"
	MethodCancelOrder    = "/" + ServiceName + "/CancelOrder"
	MethodGetOrder       = "/" + ServiceName + "/GetOrder"
	MethodListOrders     = "/" + ServiceName + "/ListOrders"
)

// StorefrontServer: серверная часть API. Запросы и ответы передаются как google.protobuf.Struct.
type StorefrontServer interface {
	ListCategories(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListProducts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetProduct(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCustomers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Quote(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Checkout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOrders(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type structCall func(StorefrontServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(StorefrontServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(StorefrontServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// StorefrontServiceDesc описывает сервис для grpc.Server.
var StorefrontServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*StorefrontServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListCategories", Handler: unaryHandler(MethodListCategories, StorefrontServer.ListCategories)},
		{MethodName: "ListProducts", Handler: unaryHandler(MethodListProducts, StorefrontServer.ListProducts)},
		{MethodName: "GetProduct", Handler: unaryHandler(MethodGetProduct, StorefrontServer.GetProduct)},
		{MethodName: "ListCustomers", Handler: unaryHandler(MethodListCustomers, StorefrontServer.ListCustomers)},
		{MethodName: "Quote", Handler: unaryHandler(MethodQuote, StorefrontServer.Quote)},
		{MethodName: "Checkout", Handler: unaryHandler(MethodCheckout, StorefrontServer.Checkout)},
		{MethodName: "CancelOrder", Handler: unaryHandler(MethodCancelOrder, StorefrontServer.CancelOrder)},
		{MethodName: "GetOrder", Handler: unaryHandler(MethodGetOrder, StorefrontServer.GetOrder)},
		{MethodName: "ListOrders", Handler: unaryHandler(MethodListOrders, StorefrontServer.ListOrders)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/v1/storefront.proto",
}

// RegisterStorefrontServer регистрирует реализацию на сервере.
func RegisterStorefrontServer(s grpc.ServiceRegistrar, srv StorefrontServer) {
	s.RegisterService(&StorefrontServiceDesc, srv)
}

// Client: тонкий клиент к StorefrontServer.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call вызывает метод по полному имени; in == nil означает пустой запрос.
func (c *Client) Call(ctx context.Context, fullMethod string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// CallMap собирает запрос из map и вызывает метод.
func (c *Client) CallMap(ctx context.Context, fullMethod string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return c.Call(ctx, fullMethod, in, opts...)
}
