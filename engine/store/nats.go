package store

import (
	"context"
	"fmt"

	"github.com/WessleyAI/carfeed/engine/domain"
	"github.com/WessleyAI/carfeed/pkg/natsutil"
)

// DefaultSubject is where listings are published.
const DefaultSubject = "carfeed.listings"

// NATSSink publishes each listing as JSON, keyed by listing id for
// de-duplication.
type NATSSink struct {
	pub     natsutil.Publisher
	subject string
}

// NewNATSSink publishes to subject (DefaultSubject when empty).
func NewNATSSink(pub natsutil.Publisher, subject string) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSink{pub: pub, subject: subject}
}

func (n *NATSSink) Name() string { return "nats" }

func (n *NATSSink) Put(ctx context.Context, l domain.CanonicalListing) error {
	if err := natsutil.Publish(ctx, n.pub, n.subject, l.ID, l); err != nil {
		return fmt.Errorf("store: nats publish %s: %w", l.ID, err)
	}
	return nil
}
