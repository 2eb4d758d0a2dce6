package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"mathengine/internal/models"
)

const (
	SummaryKey    = "mathengine:summary"
	EventsChannel = "mathengine:events"

	eventBuffer = 64
)

// Event публикуется в EventsChannel при каждом изменении
type Event struct {
	Type      string         `json:"type"`
	Summary   models.Summary `json:"summary"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// RedisPublisher хранит счетчики в redis-хеше и публикует события.
// Запись в redis выполняется в Run, а не в горутине движка.
type RedisPublisher struct {
	client    *redis.Client
	events    chan Event
	now       func() time.Time
	pending   int
	completed int
}

func NewRedisPublisher(client *redis.Client, now func() time.Time) *RedisPublisher {
	if now == nil {
		now = time.Now
	}
	return &RedisPublisher{
		client: client,
		events: make(chan Event, eventBuffer),
		now:    now,
	}
}

func (p *RedisPublisher) OnPendingChanged(pending []models.Operation) {
	p.pending = len(pending)
	p.enqueue(MessagePending)
}

func (p *RedisPublisher) OnResultsChanged(answers []models.Answer) {
	p.completed = len(answers)
	p.enqueue(MessageResults)
}

func (p *RedisPublisher) OnCancelAll() {
	p.enqueue(MessageCancelled)
}

func (p *RedisPublisher) enqueue(typ string) {
	ev := Event{
		Type:      typ,
		Summary:   models.Summary{Pending: p.pending, Completed: p.completed},
		UpdatedAt: p.now(),
	}
	select {
	case p.events <- ev:
	default:
		log.Printf("Очередь событий redis переполнена, событие %s пропущено", typ)
	}
}

// Run пишет события в redis до отмены ctx
func (p *RedisPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			if err := p.publish(ctx, ev); err != nil {
				log.Printf("Ошибка публикации в redis: %v", err)
			}
		}
	}
}

func (p *RedisPublisher) publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pipe := p.client.Pipeline()
	pipe.HSet(ctx, SummaryKey,
		"pending", ev.Summary.Pending,
		"completed", ev.Summary.Completed,
		"updated_at", ev.UpdatedAt.Format(time.RFC3339),
	)
	pipe.Publish(ctx, EventsChannel, payload)
	_, err = pipe.Exec(ctx)
	return err
}
