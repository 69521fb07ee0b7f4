package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/streamvault/backend/internal/db"
	"github.com/streamvault/backend/internal/logger"
)

const channelJobStatus = "events:jobs"

// JobEvent is the wire form of a job status transition
type JobEvent struct {
	Type     string `json:"type"`
	JobID    int64  `json:"job_id"`
	SourceID int64  `json:"source_id"`
	Kind     string `json:"kind"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}

// Publisher pushes job status transitions onto the Redis event channel.
// Publishing is best effort; a failed publish never touches job state.
type Publisher struct {
	client *redis.Client
	log    *logger.Logger
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{
		client: client,
		log:    logger.Default().WithComponent("events"),
	}
}

// PublishJobStatus implements download.EventPublisher
func (p *Publisher) PublishJobStatus(ctx context.Context, job *db.DownloadJob) {
	event := JobEvent{
		Type:     "job_status",
		JobID:    job.ID,
		SourceID: job.SourceID,
		Kind:     job.SourceKind,
		Filename: job.Filename,
		Status:   job.Status,
		Progress: job.Progress,
	}
	if job.Error.Valid {
		event.Error = job.Error.String
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	if err := p.client.Publish(ctx, channelJobStatus, data).Err(); err != nil {
		p.log.Warn(ctx, "failed to publish job event", map[string]interface{}{
			"job_id": job.ID,
			"error":  err.Error(),
		})
	}
}

// Relay subscribes to the Redis event channel and fans messages out to the
// WebSocket hub until the context ends.
func Relay(ctx context.Context, client *redis.Client, hub *Hub) {
	pubsub := client.Subscribe(ctx, channelJobStatus)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			hub.Broadcast([]byte(msg.Payload))
		}
	}
}
