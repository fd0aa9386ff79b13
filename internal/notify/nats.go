package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSSink publishes messages under subject prefix + audience
type NATSSink struct {
	conn   *nats.Conn
	prefix string
}

// ConnectNATS dials url and returns a sink publishing under prefix
func ConnectNATS(url, prefix string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.MaxReconnects(10000), nats.Name("round-lottery"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATSSink{conn: nc, prefix: prefix}, nil
}

func (s *NATSSink) Name() string {
	return "nats"
}

func (s *NATSSink) Subject(msg Message) string {
	if msg.Audience == AudienceAccount {
		return fmt.Sprintf("%s.account.%d", s.prefix, msg.AccountID)
	}
	return fmt.Sprintf("%s.%s", s.prefix, msg.Audience)
}

func (s *NATSSink) Deliver(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.conn.Publish(s.Subject(msg), body)
}

func (s *NATSSink) Close() {
	s.conn.Close()
}
