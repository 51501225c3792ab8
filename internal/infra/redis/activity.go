package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const trackedKey = "activity:tracked"

func hitsKey(domainName string) string {
	return fmt.Sprintf("activity:hits:%s", domainName)
}

// ActivityStore accumulates per-domain access counters in Redis so the hot
// read path never touches SQL. A periodic flusher drains the counters into
// Postgres with GETDEL: read and clear in one atomic step, so hits landing
// mid-flush are never lost.
type ActivityStore struct {
	rdb *redis.Client
}

// NewActivityStore creates an activity store on the shared client.
func NewActivityStore(client *Client) *ActivityStore {
	return &ActivityStore{rdb: client.rdb}
}

// Touch records one access to a domain.
func (s *ActivityStore) Touch(ctx context.Context, domainName string) error {
	pipe := s.rdb.Pipeline()
	pipe.Incr(ctx, hitsKey(domainName))
	pipe.SAdd(ctx, trackedKey, domainName)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("activity touch failed: %w", err)
	}
	return nil
}

// Drain atomically collects and clears all pending counters, returning
// domain -> hits since the last drain.
func (s *ActivityStore) Drain(ctx context.Context) (map[string]int64, error) {
	domains, err := s.rdb.SMembers(ctx, trackedKey).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers failed: %w", err)
	}

	out := make(map[string]int64, len(domains))
	for _, d := range domains {
		val, err := s.rdb.GetDel(ctx, hitsKey(d)).Result()
		if err == redis.Nil {
			// Counter already drained; just untrack.
			s.rdb.SRem(ctx, trackedKey, d)
			continue
		}
		if err != nil {
			return out, fmt.Errorf("getdel failed for %s: %w", d, err)
		}

		hits, err := strconv.ParseInt(val, 10, 64)
		if err != nil || hits <= 0 {
			s.rdb.SRem(ctx, trackedKey, d)
			continue
		}

		out[d] = hits
		s.rdb.SRem(ctx, trackedKey, d)
	}
	return out, nil
}
