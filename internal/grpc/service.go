package grpc

import (
	"context"

	"google.golang.org/grpc"

	"mathengine/internal/models"
)

const (
	serviceName        = "mathengine.WorkService"
	getWorkMethod      = "/" + serviceName + "/GetWork"
	submitResultMethod = "/" + serviceName + "/SubmitResult"
)

type WorkRequest struct {
	AgentID string `json:"agent_id"`
}

// ResultRequest - результат от агента. Непустой Error означает, что работа
// не может быть выполнена.
type ResultRequest struct {
	AgentID string `json:"agent_id"`
	ID      string `json:"id"`
	Result  string `json:"result"`
	Error   string `json:"error,omitempty"`
}

type ResultResponse struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// WorkServiceServer - серверная часть сервиса выдачи работы агентам
type WorkServiceServer interface {
	GetWork(context.Context, *WorkRequest) (*models.Work, error)
	SubmitResult(context.Context, *ResultRequest) (*ResultResponse, error)
}

func RegisterWorkServiceServer(s *grpc.Server, srv WorkServiceServer) {
	s.RegisterService(&workServiceDesc, srv)
}

var workServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*WorkServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetWork", Handler: getWorkHandler},
		{MethodName: "SubmitResult", Handler: submitResultHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mathengine/work_service",
}

func getWorkHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(WorkRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkServiceServer).GetWork(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getWorkMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkServiceServer).GetWork(ctx, req.(*WorkRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func submitResultHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ResultRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WorkServiceServer).SubmitResult(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: submitResultMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(WorkServiceServer).SubmitResult(ctx, req.(*ResultRequest))
	}
	return interceptor(ctx, in, info, handler)
}
