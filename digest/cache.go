package digest

import (
	"context"
	"time"

	"github.com/onnwee/slack-digest/cache"
	"github.com/onnwee/slack-digest/slackapi"
)

// Cache TTL policy. A live day's message batch is cached briefly so later calls
// pick up new messages; a closed day is immutable and can be held for a full
// day. Digests are final once generated and kept for a week.
const (
	MessagesTodayTTL  = 1 * time.Hour
	MessagesClosedTTL = 24 * time.Hour
	DigestTTL         = 7 * 24 * time.Hour
)

// Cache is the channel/date-keyed layer over the generic Store, holding raw
// enriched message batches and finished digests under separate key families.
type Cache struct {
	store cache.Store
}

func NewCache(store cache.Store) *Cache {
	return &Cache{store: store}
}

func messagesKey(channelID, date string) string { return "channel:" + channelID + ":" + date }
func digestKey(channelID, date string) string   { return "digest:" + channelID + ":" + date }

// StoreMessages caches a day's message batch under channel:<id>:<date>.
func (c *Cache) StoreMessages(ctx context.Context, channelID, date string, msgs []slackapi.Message, ttl time.Duration) bool {
	return c.store.Set(ctx, messagesKey(channelID, date), msgs, ttl)
}

// Messages returns the cached batch for (channel, date), if any.
func (c *Cache) Messages(ctx context.Context, channelID, date string) ([]slackapi.Message, bool) {
	var msgs []slackapi.Message
	if !c.store.Get(ctx, messagesKey(channelID, date), &msgs) {
		return nil, false
	}
	return msgs, true
}

// StoreDigest caches a finished digest under digest:<id>:<date> for DigestTTL.
func (c *Cache) StoreDigest(ctx context.Context, channelID, date string, d *Digest) bool {
	return c.store.Set(ctx, digestKey(channelID, date), d, DigestTTL)
}

// Digest returns the cached digest for (channel, date), if any.
func (c *Cache) Digest(ctx context.Context, channelID, date string) (*Digest, bool) {
	var d Digest
	if !c.store.Get(ctx, digestKey(channelID, date), &d) {
		return nil, false
	}
	return &d, true
}
