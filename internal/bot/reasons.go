package bot

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	reasonLedgerSize = 4096
	reasonLedgerTTL  = 10 * time.Minute
)

type memberKey struct {
	chatID int64
	userID int64
}

// ReasonLedger remembers why the bot banned or unbanned someone until the
// matching chat_member update arrives. Telegram does not carry reasons, so
// without it the bot could not recognize its own actions.
type ReasonLedger struct {
	entries *expirable.LRU[memberKey, string]
}

func NewReasonLedger() *ReasonLedger {
	return &ReasonLedger{
		entries: expirable.NewLRU[memberKey, string](reasonLedgerSize, nil, reasonLedgerTTL),
	}
}

// Put records the reason of an action about to be issued.
func (l *ReasonLedger) Put(chatID, userID int64, reason string) {
	l.entries.Add(memberKey{chatID, userID}, reason)
}

// Take returns and forgets the reason recorded for the pair.
func (l *ReasonLedger) Take(chatID, userID int64) (string, bool) {
	key := memberKey{chatID, userID}
	reason, ok := l.entries.Get(key)
	if ok {
		l.entries.Remove(key)
	}
	return reason, ok
}

// Forget drops the entry of an action that was never carried out.
func (l *ReasonLedger) Forget(chatID, userID int64) {
	l.entries.Remove(memberKey{chatID, userID})
}
