package session

import (
	"encoding/json"
	"errors"
	"fmt"
)

// CurrentSchemaVersion is the envelope version written by Encode.
const CurrentSchemaVersion = 1

// ErrSessionCorrupt is returned when a stored blob cannot be decoded.
var ErrSessionCorrupt = errors.New("session record corrupt")

type envelope struct {
	Version int `json:"v"`
	Session
}

// Encode serializes s into the stored envelope.
func Encode(s *Session) (string, error) {
	if s == nil {
		return "", errors.New("nil session")
	}
	data, err := json.Marshal(envelope{Version: CurrentSchemaVersion, Session: *s})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a stored envelope.
func Decode(data string) (*Session, error) {
	var env envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
	}
	if env.Version != CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported session schema version %d", ErrSessionCorrupt, env.Version)
	}
	if env.ID == "" || env.User.ID == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrSessionCorrupt)
	}
	s := env.Session
	return &s, nil
}
