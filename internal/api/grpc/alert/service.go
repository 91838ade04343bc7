package alert

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "emergency.v1.AlertService"

// Method names of the alert service.
const (
	MethodRegisterSubject = "RegisterSubject"
	MethodAddContact      = "AddContact"
	MethodUpdateLocation  = "UpdateLocation"
	MethodTrigger         = "Trigger"
	MethodCancel          = "Cancel"
	MethodResolve         = "Resolve"
	MethodStatus          = "Status"
	MethodListActive      = "ListActive"
	MethodSelfTest        = "SelfTest"
)

// API is the server side of the alert service.
type API interface {
	RegisterSubject(ctx context.Context, req *RegisterSubjectRequest) (*SubjectResponse, error)
	AddContact(ctx context.Context, req *AddContactRequest) (*SubjectResponse, error)
	UpdateLocation(ctx context.Context, req *UpdateLocationRequest) (*LocationResponse, error)
	Trigger(ctx context.Context, req *TriggerRequest) (*TriggerResponse, error)
	Cancel(ctx context.Context, req *CancelRequest) (*ResolveResponse, error)
	Resolve(ctx context.Context, req *ResolveRequest) (*ResolveResponse, error)
	Status(ctx context.Context, req *StatusRequest) (*StatusResponse, error)
	ListActive(ctx context.Context, req *ListActiveRequest) (*ListActiveResponse, error)
	SelfTest(ctx context.Context, req *SelfTestRequest) (*SelfTestResponse, error)
}

// FullMethod returns the path of a method as seen by interceptors, e.g.
// "/emergency.v1.AlertService/Trigger".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Register attaches api to the gRPC server.
func Register(s grpc.ServiceRegistrar, api API) {
	s.RegisterService(&serviceDesc, api)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*API)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRegisterSubject, API.RegisterSubject),
		unary(MethodAddContact, API.AddContact),
		unary(MethodUpdateLocation, API.UpdateLocation),
		unary(MethodTrigger, API.Trigger),
		unary(MethodCancel, API.Cancel),
		unary(MethodResolve, API.Resolve),
		unary(MethodStatus, API.Status),
		unary(MethodListActive, API.ListActive),
		unary(MethodSelfTest, API.SelfTest),
	},
	Streams: []grpc.StreamDesc{},
}

// unary builds the method descriptor of one request/response call.
func unary[Req, Resp any](method string, call func(API, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(
			srv any,
			ctx context.Context,
			dec func(any) error,
			interceptor grpc.UnaryServerInterceptor,
		) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}

			api := srv.(API) //nolint:forcetypeassert // RegisterService verifies the handler type.

			if interceptor == nil {
				return call(api, ctx, in)
			}

			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}

			handler := func(ctx context.Context, req any) (any, error) {
				return call(api, ctx, req.(*Req)) //nolint:forcetypeassert // Interceptors pass the decoded request through.
			}

			return interceptor(ctx, in, info, handler)
		},
	}
}
