package notifier

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"go.uber.org/zap"
)

const (
	gmailIMAPAddr = "imap.gmail.com:993"
	inboxMailbox  = "INBOX"
	trashMailbox  = "[Gmail]/Trash"

	// searchWindowDays bounds the UNSEEN search to recent mail.
	searchWindowDays = 3
	// maxFetchedMessages caps how many unread messages one poll fetches.
	maxFetchedMessages = 200

	// fetchItemGmailThreadID is the Gmail IMAP extension item carrying the
	// server-assigned thread ID.
	fetchItemGmailThreadID = imap.FetchItem("X-GM-THRID")
)

// mailSource is the collaborator that talks to the mailbox.  fetchUnread may
// return (nil, nil) when the server answered but produced nothing usable; the
// caller treats that as a no-op poll, not an error.
type mailSource interface {
	fetchUnread(username, password string) ([]EmailRecord, *AppError)
	deleteMessages(username, password string, ids []string) *AppError
}

// imapConn is the subset of the go-imap client the source needs.  Narrowed so
// tests can substitute a mock via the connector.
type imapConn interface {
	Login(username, password string) error
	Logout() error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidStore(seqset *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	UidCopy(seqset *imap.SeqSet, dest string) error
	Expunge(ch chan uint32) error
}

// gmailSource fetches unread mail and performs deletions over IMAP.
type gmailSource struct {
	logger   *zap.SugaredLogger
	gmailURL string
	connect  func() (imapConn, error)
}

func newGmailSource(logger *zap.SugaredLogger, gmailURL string) *gmailSource {
	return &gmailSource{
		logger:   logger,
		gmailURL: gmailURL,
		connect:  dialGmail,
	}
}

func dialGmail() (imapConn, error) {
	c, err := imapclient.DialTLS(gmailIMAPAddr, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return c, nil
}

// withConn runs fn against a fresh logged-in connection and always logs out.
func (s *gmailSource) withConn(username, password string, fn func(imapConn) error) error {
	c, err := s.connect()
	if err != nil {
		return err
	}
	defer func() {
		_ = c.Logout()
	}()

	if err := c.Login(username, password); err != nil {
		return errors.WithStack(err)
	}
	if _, err := c.Select(inboxMailbox, false); err != nil {
		return errors.WithStack(err)
	}
	return fn(c)
}

func (s *gmailSource) fetchUnread(username, password string) ([]EmailRecord, *AppError) {
	var records []EmailRecord
	noop := false

	err := s.withConn(username, password, func(c imapConn) error {
		criteria := imap.NewSearchCriteria()
		criteria.WithoutFlags = []string{imap.SeenFlag}
		criteria.Since = time.Now().AddDate(0, 0, -searchWindowDays)

		uids, err := c.UidSearch(criteria)
		if err != nil {
			return errors.WithStack(err)
		}
		if len(uids) > maxFetchedMessages {
			uids = uids[len(uids)-maxFetchedMessages:]
		}
		if len(uids) == 0 {
			records = []EmailRecord{}
			return nil
		}

		seqset := new(imap.SeqSet)
		seqset.AddNum(uids...)
		items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, fetchItemGmailThreadID}

		ch := make(chan *imap.Message, 10)
		done := make(chan error, 1)
		go func() {
			done <- c.UidFetch(seqset, items, ch)
		}()
		records = make([]EmailRecord, 0, len(uids))
		for msg := range ch {
			records = append(records, s.recordFromMessage(msg))
		}
		if err := <-done; err != nil {
			return errors.WithStack(err)
		}

		// A non-empty UID list that fetches to nothing means the server
		// answered with something we cannot use.  No-op poll.
		if len(records) == 0 {
			noop = true
		}
		return nil
	})
	if err != nil {
		return nil, WrapErr(KindTransport, err)
	}
	if noop {
		return nil, nil
	}
	return records, nil
}

// recordFromMessage builds the canonical record for one fetched message.
// Missing or undecodable fields degrade to documented defaults instead of
// failing the poll.
func (s *gmailSource) recordFromMessage(msg *imap.Message) EmailRecord {
	rec := EmailRecord{
		ID:      strconv.FormatUint(uint64(msg.Uid), 10),
		Subject: noSubjectPlaceholder,
		Link:    s.gmailURL,
	}

	if threadID, ok := gmailThreadID(msg); ok {
		rec.ThreadID = strconv.FormatUint(threadID, 16)
		rec.Link = fmt.Sprintf("https://mail.google.com/mail/u/0/#inbox/%s", rec.ThreadID)
	}

	env := msg.Envelope
	if env == nil {
		return rec
	}
	if subject := decodeHeader(env.Subject); subject != "" {
		rec.Subject = subject
	}
	rec.Sender = senderName(env.From)
	if !env.Date.IsZero() {
		rec.Timestamp = env.Date.Unix()
	}
	return rec
}

// gmailThreadID extracts the X-GM-THRID value from a fetch response.
func gmailThreadID(msg *imap.Message) (uint64, bool) {
	raw, ok := msg.Items[fetchItemGmailThreadID]
	if !ok || raw == nil {
		return 0, false
	}

	switch v := raw.(type) {
	case uint32:
		return uint64(v), true
	case uint64:
		return v, true
	case int64:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	}

	id, err := strconv.ParseUint(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// senderName returns the display name of the first sender, falling back to
// the bare address when no personal name is present.
func senderName(from []*imap.Address) string {
	if len(from) == 0 {
		return ""
	}
	addr := from[0]
	if name := decodeHeader(addr.PersonalName); name != "" {
		return name
	}
	return addr.Address()
}

// deleteMessages moves the given messages to Trash: UID copy, mark deleted,
// expunge.  Best effort; the caller's local removal already happened and is
// never rolled back.
func (s *gmailSource) deleteMessages(username, password string, ids []string) *AppError {
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	for _, id := range ids {
		uid, err := strconv.ParseUint(id, 10, 32)
		if err != nil {
			s.logger.Warnw("skipping non-numeric message id on delete",
				"id", id)
			continue
		}
		seqset.AddNum(uint32(uid))
	}
	if seqset.Empty() {
		return nil
	}

	err := s.withConn(username, password, func(c imapConn) error {
		if err := c.UidCopy(seqset, trashMailbox); err != nil {
			return errors.WithStack(err)
		}
		item := imap.FormatFlagsOp(imap.AddFlags, true)
		if err := c.UidStore(seqset, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
			return errors.WithStack(err)
		}

		expunged := make(chan uint32, 10)
		done := make(chan error, 1)
		go func() {
			done <- c.Expunge(expunged)
		}()
		for range expunged {
		}
		return errors.WithStack(<-done)
	})
	return WrapErr(KindTransport, err)
}
