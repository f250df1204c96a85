package notify

import (
	"context"
	"strconv"

	"github.com/mahaj/chat-feed/pkg/model"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Activity counts feed events per user and peer in Redis hashes keyed
// <prefix>:<user id>.
type Activity struct {
	rdb    *redis.Client
	prefix string
}

func NewActivity(rdb *redis.Client, prefix string) *Activity {
	if prefix == "" {
		prefix = "chatfeed:activity"
	}
	return &Activity{rdb: rdb, prefix: prefix}
}

func (a *Activity) key(userID string) string {
	return a.prefix + ":" + userID
}

func (a *Activity) Record(ctx context.Context, ev model.Event) error {
	return errors.Wrapf(a.rdb.HIncrBy(ctx, a.key(ev.UserID), ev.PeerID, 1).Err(), "record activity for %s", ev.UserID)
}

// Counts returns the number of recorded events per peer.
func (a *Activity) Counts(ctx context.Context, userID string) (map[string]int64, error) {
	raw, err := a.rdb.HGetAll(ctx, a.key(userID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "read activity")
	}
	out := make(map[string]int64, len(raw))
	for peer, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "activity counter %s", peer)
		}
		out[peer] = n
	}
	return out, nil
}

// Reset clears the counters of userID.
func (a *Activity) Reset(ctx context.Context, userID string) error {
	return errors.Wrap(a.rdb.Del(ctx, a.key(userID)).Err(), "reset activity")
}
