// Package imap reads unseen mail from an IMAP mailbox.
package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"strings"

	"triage-backend/pkg/logger"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"
)

// Config holds the mailbox credentials
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
}

// Message is a parsed mail reduced to what capture needs
type Message struct {
	UID     uint32
	From    string
	Subject string
	Body    string
}

// Client opens a fresh connection per operation
type Client struct {
	cfg Config
	log zerolog.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	if cfg.Port == 0 {
		cfg.Port = 993
	}
	return &Client{cfg: cfg, log: logger.Component("imap")}
}

func (c *Client) connect(ctx context.Context) (*client.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	var (
		conn *client.Client
		err  error
	)
	if c.cfg.Port == 993 {
		conn, err = client.DialTLS(addr, &tls.Config{ServerName: c.cfg.Host})
	} else {
		conn, err = client.Dial(addr)
		if err == nil {
			if ok, _ := conn.SupportStartTLS(); ok {
				err = conn.StartTLS(&tls.Config{ServerName: c.cfg.Host})
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	if err := conn.Login(c.cfg.Username, c.cfg.Password); err != nil {
		conn.Logout()
		return nil, fmt.Errorf("login failed: %w", err)
	}
	return conn, nil
}

// FetchUnseen returns up to limit unseen messages, oldest first, without
// marking them seen.
func (c *Client) FetchUnseen(ctx context.Context, limit int) ([]Message, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Logout()

	if _, err := conn.Select(c.cfg.Mailbox, true); err != nil {
		return nil, fmt.Errorf("select %s: %w", c.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := conn.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search unseen: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[:limit]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchUid, section.FetchItem()}

	fetched := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- conn.UidFetch(seqset, items, fetched)
	}()

	var out []Message
	for msg := range fetched {
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		parsed, err := ParseMessage(body)
		if err != nil {
			c.log.Warn().Err(err).Uint32("uid", msg.Uid).Msg("skipping unreadable message")
			continue
		}
		parsed.UID = msg.Uid
		out = append(out, parsed)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	return out, nil
}

// MarkSeen flags the given messages as read
func (c *Client) MarkSeen(ctx context.Context, uids []uint32) error {
	if len(uids) == 0 {
		return nil
	}
	conn, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer conn.Logout()

	if _, err := conn.Select(c.cfg.Mailbox, false); err != nil {
		return fmt.Errorf("select %s: %w", c.cfg.Mailbox, err)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	op := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := conn.UidStore(seqset, op, []interface{}{imap.SeenFlag}, nil); err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// ParseMessage extracts sender, subject and the plain-text body of a raw
// RFC 5322 message. HTML-only messages yield an empty body.
func ParseMessage(r io.Reader) (Message, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return Message{}, err
	}
	defer mr.Close()

	var msg Message
	if from, err := mr.Header.AddressList("From"); err == nil && len(from) > 0 {
		msg.From = from[0].String()
	}
	msg.Subject, _ = mr.Header.Subject()

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Message{}, err
		}
		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		ct, _, _ := h.ContentType()
		if ct != "" && ct != "text/plain" {
			continue
		}
		b, err := io.ReadAll(part.Body)
		if err != nil {
			return Message{}, err
		}
		msg.Body = strings.TrimSpace(string(b))
		break
	}
	return msg, nil
}
