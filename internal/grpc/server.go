package grpc

import (
	"context"
	"errors"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"mathengine/internal/models"
	"mathengine/internal/worker"
)

// WorkSource - очередь готовой работы (worker.Manager)
type WorkSource interface {
	Next() (models.Work, bool)
	Complete(ctx context.Context, id, result string) error
	Fail(ctx context.Context, id string, cause error) error
}

// WorkServer реализует gRPC сервис для агентов
type WorkServer struct {
	source WorkSource
}

func NewWorkServer(source WorkSource) *WorkServer {
	return &WorkServer{source: source}
}

// GetWork выдает агенту готовую работу или NotFound
func (s *WorkServer) GetWork(ctx context.Context, req *WorkRequest) (*models.Work, error) {
	w, ok := s.source.Next()
	if !ok {
		return nil, status.Error(codes.NotFound, worker.ErrNoWork.Error())
	}

	log.Printf("GetWork gRPC: Отправка работы агенту %s: %s", req.AgentID, w.Question())
	return &w, nil
}

// SubmitResult принимает результат вычисления от агента
func (s *WorkServer) SubmitResult(ctx context.Context, req *ResultRequest) (*ResultResponse, error) {
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "пустой id работы")
	}

	var err error
	if req.Error != "" {
		log.Printf("Агент %s не смог выполнить работу %s: %s", req.AgentID, req.ID, req.Error)
		err = s.source.Fail(ctx, req.ID, errors.New(req.Error))
	} else {
		log.Printf("Получен результат работы %s от агента %s: %s", req.ID, req.AgentID, req.Result)
		err = s.source.Complete(ctx, req.ID, req.Result)
	}

	if err != nil {
		log.Printf("Ошибка при обработке результата работы %s: %v", req.ID, err)
		if !errors.Is(err, worker.ErrUnknownWork) {
			// результат не принят, агент повторит отправку
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return &ResultResponse{Success: false, ErrorMessage: err.Error()}, nil
	}
	return &ResultResponse{Success: true}, nil
}

// NewServer создает gRPC сервер с настройками keepalive и
// зарегистрированным сервисом
func NewServer(source WorkSource) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.MaxRecvMsgSize(16 * 1024 * 1024), // 16MB
		grpc.MaxSendMsgSize(16 * 1024 * 1024), // 16MB
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     time.Minute,
			MaxConnectionAge:      5 * time.Minute,
			MaxConnectionAgeGrace: 20 * time.Second,
			Time:                  20 * time.Second,
			Timeout:               10 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
	}

	s := grpc.NewServer(opts...)
	RegisterWorkServiceServer(s, NewWorkServer(source))
	return s
}

// StartServer слушает address и блокируется до остановки сервера
func StartServer(s *grpc.Server, address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	log.Printf("gRPC сервер запущен на %s", address)
	return s.Serve(lis)
}
