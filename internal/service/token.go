package service

import (
	"strconv"
	"strings"
)

const (
	tokenSeparator = ":"
	minUserIDLen   = 5
	maxUserIDLen   = 19
	// Telegram rejects callback data above 64 bytes.
	maxTokenLen = 64
)

// Token is the state carried by an alert's confirmation control.
type Token struct {
	Kind   ActionKind
	UserID int64
	// BanID references the ban the alert was raised for, if any.
	BanID *uint
}

// EncodeToken renders kind:userID[:banID].
func EncodeToken(kind ActionKind, userID int64, banID *uint) string {
	var b strings.Builder
	b.WriteString(string(kind))
	b.WriteString(tokenSeparator)
	b.WriteString(strconv.FormatInt(userID, 10))
	if banID != nil {
		b.WriteString(tokenSeparator)
		b.WriteString(strconv.FormatUint(uint64(*banID), 10))
	}
	return b.String()
}

// DecodeToken parses a token. It reports false for anything that is not a
// well-formed ban or unban token, including tokens of other controls.
func DecodeToken(s string) (Token, bool) {
	if len(s) > maxTokenLen {
		return Token{}, false
	}

	parts := strings.Split(s, tokenSeparator)
	if len(parts) < 2 || len(parts) > 3 {
		return Token{}, false
	}

	kind := ActionKind(parts[0])
	if kind != ActionBan && kind != ActionUnban {
		return Token{}, false
	}

	// leading zeros would make two spellings of the same token
	if !isDigits(parts[1], minUserIDLen, maxUserIDLen) || parts[1][0] == '0' {
		return Token{}, false
	}
	userID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || userID <= 0 {
		return Token{}, false
	}

	tok := Token{Kind: kind, UserID: userID}
	if len(parts) == 3 {
		if !isDigits(parts[2], 1, 20) || parts[2][0] == '0' {
			return Token{}, false
		}
		id, err := strconv.ParseUint(parts[2], 10, strconv.IntSize)
		if err != nil {
			return Token{}, false
		}
		banID := uint(id)
		tok.BanID = &banID
	}
	return tok, true
}

// DecodeTokenOf is DecodeToken restricted to one kind.
func DecodeTokenOf(s string, kind ActionKind) (Token, bool) {
	tok, ok := DecodeToken(s)
	if !ok || tok.Kind != kind {
		return Token{}, false
	}
	return tok, true
}

func isDigits(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
