// Package imap implements the notification source on an IMAP inbox.
package imap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/zenorc/zenorc/internal/common"
	"github.com/zenorc/zenorc/internal/model"
	"github.com/zenorc/zenorc/internal/service"
)

// Config holds the configuration for the IMAP source.
type Config struct {
	// Server is the host:port of the IMAP endpoint, TLS assumed.
	Server   string
	Username string
	Password string
	Mailbox  string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server:  "imap.gmail.com:993",
		Mailbox: "INBOX",
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server address is required")
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("username and password are required")
	}
	if c.Mailbox == "" {
		return fmt.Errorf("mailbox is required")
	}
	return nil
}

// Source implements service.NotificationSource over a single IMAP
// connection. The connection is stateful, so all access is serialized by a
// mutex held for the duration of one call; after any protocol error the
// connection is dropped and re-dialed on the next call.
type Source struct {
	client *imapclient.Client
	logger *slog.Logger
	config Config
	mu     sync.Mutex
}

var _ service.NotificationSource = (*Source)(nil)

// NewSource creates an IMAP notification source. No connection is made
// until the first fetch.
func NewSource(config Config, logger *slog.Logger) (*Source, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{config: config, logger: logger}, nil
}

// FetchUnseen returns up to limit unread notifications, newest first. The
// source ref of each notification is its IMAP UID rendered in decimal.
func (s *Source) FetchUnseen(ctx context.Context, limit int) ([]model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.ensureClient()
	if err != nil {
		return nil, err
	}

	criteria := &goimap.SearchCriteria{NotFlag: []goimap.Flag{goimap.FlagSeen}}
	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		s.drop()
		return nil, fmt.Errorf("%w: search: %v", common.ErrSourceUnavailable, err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	// Recent window, newest first. UID search results are ascending.
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	for i, j := 0, len(uids)-1; i < j; i, j = i+1, j-1 {
		uids[i], uids[j] = uids[j], uids[i]
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bodySection := &goimap.FetchItemBodySection{}
	fetchOptions := &goimap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*goimap.FetchItemBodySection{bodySection},
	}
	messages, err := client.Fetch(goimap.UIDSetNum(uids...), fetchOptions).Collect()
	if err != nil {
		s.drop()
		return nil, fmt.Errorf("%w: fetch: %v", common.ErrSourceUnavailable, err)
	}

	byUID := make(map[goimap.UID]model.Notification, len(messages))
	for _, msg := range messages {
		subject := ""
		if msg.Envelope != nil {
			subject = msg.Envelope.Subject
		}
		byUID[msg.UID] = model.Notification{
			SourceRef: strconv.FormatUint(uint64(msg.UID), 10),
			Subject:   subject,
			Body:      textBody(msg.FindBodySection(bodySection)),
		}
	}

	notifications := make([]model.Notification, 0, len(byUID))
	for _, uid := range uids {
		if n, ok := byUID[uid]; ok {
			notifications = append(notifications, n)
		}
	}
	return notifications, nil
}

// MarkConsumed flags the message \Seen so it drops out of future UNSEEN
// searches.
func (s *Source) MarkConsumed(ctx context.Context, sourceRef string) error {
	uid, err := strconv.ParseUint(sourceRef, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid source ref %q: %w", sourceRef, err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.ensureClient()
	if err != nil {
		return err
	}

	flags := &goimap.StoreFlags{
		Op:     goimap.StoreFlagsAdd,
		Silent: true,
		Flags:  []goimap.Flag{goimap.FlagSeen},
	}
	if err := client.Store(goimap.UIDSetNum(goimap.UID(uid)), flags, nil).Close(); err != nil {
		s.drop()
		return fmt.Errorf("%w: store: %v", common.ErrSourceUnavailable, err)
	}
	return nil
}

// Close logs out and drops the connection.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	err := s.client.Logout().Wait()
	s.client = nil
	return err
}

// ensureClient dials, authenticates and selects the mailbox if no live
// connection exists. Callers must hold the mutex.
func (s *Source) ensureClient() (*imapclient.Client, error) {
	if s.client != nil {
		return s.client, nil
	}

	client, err := imapclient.DialTLS(s.config.Server, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", common.ErrSourceUnavailable, err)
	}
	if err := client.Login(s.config.Username, s.config.Password).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrSourceAuth, err)
	}
	if _, err := client.Select(s.config.Mailbox, nil).Wait(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: select %s: %v", common.ErrSourceUnavailable, s.config.Mailbox, err)
	}

	s.logger.Debug("imap connection established", "server", s.config.Server, "mailbox", s.config.Mailbox)
	s.client = client
	return client, nil
}

// drop discards the connection so the next call re-dials. Callers must hold
// the mutex.
func (s *Source) drop() {
	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
}

// textBody extracts the first text/plain part from a raw RFC 822 message.
// Parse failures yield an empty body rather than an error; classification
// rejects such notifications anyway.
func textBody(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	reader, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	defer func() { _ = reader.Close() }()

	for {
		part, err := reader.NextPart()
		if err != nil {
			return ""
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := header.ContentType()
		if err != nil || !strings.EqualFold(contentType, "text/plain") {
			continue
		}
		body, err := io.ReadAll(part.Body)
		if err != nil {
			return ""
		}
		return string(body)
	}
}
