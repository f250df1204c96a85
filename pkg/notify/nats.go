package notify

import (
	"context"
	"encoding/json"

	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

const DefaultSubjectPrefix = "feed"

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each event on <prefix>.<user id>.
type NATSSink struct {
	pub    publisher
	prefix string
	close  func()
}

func DialNATS(url, prefix string) (*NATSSink, error) {
	nc, err := nats.Connect(url, nats.Name("chat-feed"))
	if err != nil {
		return nil, errors.Wrapf(err, "connect to nats at %s", url)
	}
	s := newNATSSink(nc, prefix)
	s.close = nc.Close
	return s, nil
}

func newNATSSink(pub publisher, prefix string) *NATSSink {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSSink{pub: pub, prefix: prefix}
}

func (s *NATSSink) Subject(userID string) string {
	return s.prefix + "." + userID
}

func (s *NATSSink) Publish(ctx context.Context, events []model.Event) error {
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := json.Marshal(ev)
		if err != nil {
			return errors.Wrap(err, "encode event")
		}
		if err := s.pub.Publish(s.Subject(ev.UserID), b); err != nil {
			return errors.Wrapf(err, "publish %s", ev.Type)
		}
	}
	return nil
}

func (s *NATSSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
