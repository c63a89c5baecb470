package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonLedger(t *testing.T) {
	l := NewReasonLedger()

	_, ok := l.Take(groupID, userID)
	assert.False(t, ok)

	l.Put(groupID, userID, "first")
	l.Put(groupID, userID, "second")
	l.Put(groupID, userID+1, "other user")

	reason, ok := l.Take(groupID, userID)
	assert.True(t, ok)
	assert.Equal(t, "second", reason)

	l.Forget(groupID, userID+1)
	_, ok = l.Take(groupID, userID+1)
	assert.False(t, ok)
}
