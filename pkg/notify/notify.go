package notify

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub"
	"github.com/openswoop/rmpscrape/pkg/harvest"
	"github.com/rotisserie/eris"
)

// Publisher announces finished harvests on a Pub/Sub topic.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPublisher(client *pubsub.Client, topicID string) *Publisher {
	return &Publisher{client: client, topic: client.Topic(topicID)}
}

// Finished publishes stats and waits for the server to acknowledge them.
func (p *Publisher) Finished(ctx context.Context, stats harvest.Stats) (string, error) {
	msg, err := json.Marshal(stats)
	if err != nil {
		return "", eris.Wrap(err, "notify: encode stats")
	}

	res := p.topic.Publish(ctx, &pubsub.Message{
		Data:       msg,
		Attributes: map[string]string{"event": "harvest-finished"},
	})
	id, err := res.Get(ctx)
	if err != nil {
		return "", eris.Wrap(err, "notify: publish")
	}
	return id, nil
}

func (p *Publisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
