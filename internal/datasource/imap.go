package datasource

import (
	"context"
	"crypto/tls"
	"sync"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/AndrewDell/3AI/internal/config"
	"github.com/AndrewDell/3AI/internal/domain"
)

// InboxSource reads mailbox statistics for the executive agent. Unseen mail
// becomes the emailsPending gauge; messages newly marked seen since the
// previous task poll count as processed.
type InboxSource struct {
	mu       sync.Mutex
	cfg      config.IMAPConfig
	lastSeen int64
	primed   bool
}

// NewInboxSource creates an IMAP source from the integration config.
func NewInboxSource(cfg config.IMAPConfig) *InboxSource {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &InboxSource{cfg: cfg}
}

// Name returns the source name.
func (s *InboxSource) Name() string { return "imap" }

// Survey polls the mailbox without moving counters.
func (s *InboxSource) Survey(ctx context.Context) (domain.Sample, error) {
	return s.poll(ctx, false)
}

// Task polls the mailbox and credits newly seen messages as processed.
func (s *InboxSource) Task(ctx context.Context) (domain.Sample, error) {
	return s.poll(ctx, true)
}

func (s *InboxSource) poll(_ context.Context, withTask bool) (domain.Sample, error) {
	c, err := s.connect()
	if err != nil {
		return nil, err
	}
	defer c.Logout()

	mbox, err := c.Select(s.cfg.Mailbox, true)
	if err != nil {
		return nil, &SourceError{Source: "imap", Message: err.Error()}
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	unseenIDs, err := c.Search(criteria)
	if err != nil {
		return nil, &SourceError{Source: "imap", Message: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sample, seen := inboxSample(mbox.Messages, uint32(len(unseenIDs)), s.lastSeen, s.primed && withTask)
	if withTask {
		s.lastSeen = seen
		s.primed = true
	}
	return sample, nil
}

func (s *InboxSource) connect() (*client.Client, error) {
	var c *client.Client
	var err error
	if s.cfg.TLS {
		c, err = client.DialTLS(s.cfg.Address, &tls.Config{})
	} else {
		c, err = client.Dial(s.cfg.Address)
	}
	if err != nil {
		return nil, &SourceError{Source: "imap", Message: err.Error()}
	}

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		c.Logout()
		return nil, &SourceError{Source: "imap", Message: err.Error()}
	}
	return c, nil
}

// inboxSample maps mailbox statistics onto an executive sample. seen counts
// messages carrying \Seen; withDelta credits growth since lastSeen as the
// emailsProcessed counter increment.
func inboxSample(total, unseen uint32, lastSeen int64, withDelta bool) (domain.Sample, int64) {
	seen := int64(total) - int64(unseen)
	if seen < 0 {
		seen = 0
	}

	sample := domain.Sample{
		domain.FieldSuccessRate:   100,
		domain.FieldEmailsPending: float64(unseen),
	}
	if withDelta && seen > lastSeen {
		sample[domain.FieldEmailsProcessed] = float64(seen - lastSeen)
	}
	return sample, seen
}
