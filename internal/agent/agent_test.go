package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mathengine/internal/grpc"
	"mathengine/internal/models"
)

type fakeClient struct {
	mu         sync.Mutex
	queue      []models.Work
	getErrs    int
	submitErrs int
	submitted  []grpc.ResultRequest
	done       chan struct{}
	want       int
}

func (c *fakeClient) GetWork(ctx context.Context, agentID string) (*models.Work, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErrs > 0 {
		c.getErrs--
		return nil, errors.New("unavailable")
	}
	if len(c.queue) == 0 {
		return nil, nil
	}
	w := c.queue[0]
	c.queue = c.queue[1:]
	return &w, nil
}

func (c *fakeClient) SubmitResult(ctx context.Context, req *grpc.ResultRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitErrs > 0 {
		c.submitErrs--
		return errors.New("unavailable")
	}
	c.submitted = append(c.submitted, *req)
	if len(c.submitted) == c.want {
		close(c.done)
	}
	return nil
}

func newTestAgent(c *fakeClient, workers int) *Agent {
	a := New(c, workers)
	a.retryDelay = time.Millisecond
	a.idleDelay = time.Millisecond
	return a
}

func TestAgentProcessesWork(t *testing.T) {
	c := &fakeClient{
		queue: []models.Work{
			{ID: "a", FirstOperand: 1, SecondOperand: 1, Operator: models.Add},
			{ID: "b", FirstOperand: 6, SecondOperand: 0, Operator: models.Divide},
			{ID: "c", FirstOperand: 3, SecondOperand: 2, Operator: models.Multiply},
		},
		getErrs:    2,
		submitErrs: 1,
		done:       make(chan struct{}),
		want:       3,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- newTestAgent(c, 2).Run(ctx) }()

	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		t.Fatal("агент не отправил результаты вовремя")
	}
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	byID := map[string]grpc.ResultRequest{}
	for _, r := range c.submitted {
		byID[r.ID] = r
	}
	if byID["a"].Result != "1.00 + 1.00 = 2.00" {
		t.Errorf("a = %+v", byID["a"])
	}
	if byID["c"].Result != "3.00 * 2.00 = 6.00" {
		t.Errorf("c = %+v", byID["c"])
	}
	if byID["b"].Error == "" || byID["b"].Result != "" {
		t.Errorf("деление на ноль должно вернуть ошибку: %+v", byID["b"])
	}
}

func TestAgentRejectedResultNotRetried(t *testing.T) {
	calls := 0
	a := newTestAgent(nil, 1)
	a.client = rejectingClient{calls: &calls}

	a.processWork(context.Background(), 0, "agent")
	if calls != 1 {
		t.Errorf("SubmitResult вызван %d раз, want 1", calls)
	}
}

type rejectingClient struct {
	calls *int
}

func (c rejectingClient) GetWork(ctx context.Context, agentID string) (*models.Work, error) {
	return &models.Work{ID: "x", FirstOperand: 1, SecondOperand: 2, Operator: models.Subtract}, nil
}

func (c rejectingClient) SubmitResult(ctx context.Context, req *grpc.ResultRequest) error {
	*c.calls++
	return grpc.ErrRejected
}
