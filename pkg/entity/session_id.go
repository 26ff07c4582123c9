package entity

import (
	"errors"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// TempIDPrefix marks pending ids when they are rendered as plain strings.
const TempIDPrefix = "temp_"

const (
	kindConfirmed = "confirmed"
	kindPending   = "pending"
)

// SessionID is either a remote-assigned id or a client-side temporary one.
// The zero value identifies nothing.
type SessionID struct {
	value   string
	pending bool
}

func ConfirmedID(id string) SessionID {
	return SessionID{value: id}
}

func PendingID(token string) SessionID {
	return SessionID{value: token, pending: true}
}

// NewPendingID draws a fresh token, so a temp id is never handed out twice.
func NewPendingID() SessionID {
	return PendingID(uuid.NewString())
}

// ParseSessionID reverses String.
func ParseSessionID(s string) (SessionID, error) {
	if s == "" {
		return SessionID{}, errors.New("empty session id")
	}
	if token, ok := strings.CutPrefix(s, TempIDPrefix); ok {
		if token == "" {
			return SessionID{}, errors.New("empty temp id token")
		}
		return PendingID(token), nil
	}
	return ConfirmedID(s), nil
}

func (id SessionID) IsPending() bool {
	return id.pending
}

func (id SessionID) IsZero() bool {
	return id.value == ""
}

// Value is the raw id: the remote id for confirmed sessions, the token for pending ones.
func (id SessionID) Value() string {
	return id.value
}

func (id SessionID) String() string {
	if id.pending {
		return TempIDPrefix + id.value
	}
	return id.value
}

type sessionIDJSON struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

func (id SessionID) MarshalJSON() ([]byte, error) {
	kind := kindConfirmed
	if id.pending {
		kind = kindPending
	}
	return sonic.Marshal(sessionIDJSON{Kind: kind, Value: id.value})
}

func (id *SessionID) UnmarshalJSON(data []byte) error {
	var raw sessionIDJSON
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return errors.New("decoding session id error: " + err.Error())
	}
	switch raw.Kind {
	case kindConfirmed:
		*id = ConfirmedID(raw.Value)
	case kindPending:
		*id = PendingID(raw.Value)
	default:
		return errors.New("unknown session id kind: " + raw.Kind)
	}
	return nil
}
