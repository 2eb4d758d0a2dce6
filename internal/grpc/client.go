package grpc

import (
	"context"
	"errors"
	"log"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"mathengine/internal/models"
)

var ErrRejected = errors.New("result rejected by orchestrator")

const callTimeout = 10 * time.Second

// WorkClient - gRPC клиент агента
type WorkClient struct {
	conn *grpc.ClientConn
}

// NewWorkClient подключается к оркестратору. Дополнительные опции
// используются в тестах (bufconn).
func NewWorkClient(ctx context.Context, serverAddr string, extra ...grpc.DialOption) (*WorkClient, error) {
	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(codecName),
			grpc.MaxCallRecvMsgSize(16*1024*1024), // 16MB
			grpc.MaxCallSendMsgSize(16*1024*1024), // 16MB
		),
	}
	opts = append(opts, extra...)

	conn, err := grpc.DialContext(ctx, serverAddr, opts...)
	if err != nil {
		return nil, err
	}
	return &WorkClient{conn: conn}, nil
}

// Close закрывает соединение с сервером
func (c *WorkClient) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// GetWork запрашивает работу у оркестратора. Если работы нет,
// возвращает nil без ошибки.
func (c *WorkClient) GetWork(ctx context.Context, agentID string) (*models.Work, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	w := new(models.Work)
	err := c.conn.Invoke(ctx, getWorkMethod, &WorkRequest{AgentID: agentID}, w)
	if err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

// SubmitResult отправляет результат вычисления оркестратору
func (c *WorkClient) SubmitResult(ctx context.Context, req *ResultRequest) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	res := new(ResultResponse)
	if err := c.conn.Invoke(ctx, submitResultMethod, req, res); err != nil {
		log.Printf("Ошибка отправки результата для работы %s: %v", req.ID, err)
		return err
	}
	if !res.Success {
		return errors.Join(ErrRejected, errors.New(res.ErrorMessage))
	}
	return nil
}
