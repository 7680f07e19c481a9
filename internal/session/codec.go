package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"expensetracker/internal/core"
)

// StorageKey is the fixed key the session record lives under.
const StorageKey = "auth-storage"

var (
	ErrCorrupt        = errors.New("session: corrupt persisted record")
	ErrExpired        = errors.New("session: persisted credential expired")
	ErrInvalidSession = errors.New("session: user and credential must both be set")
)

// record is the durable representation. Form buffers are never part of it.
type record struct {
	User       *core.User `json:"user"`
	Credential *string    `json:"credential"`
}

func encodeRecord(user *core.User, credential string) ([]byte, error) {
	rec := record{User: user}
	if credential != "" {
		rec.Credential = &credential
	}
	return json.Marshal(rec)
}

// decodeRecord returns a nil user and empty credential for an empty record.
func decodeRecord(data []byte) (*core.User, string, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	switch {
	case rec.User == nil && rec.Credential == nil:
		return nil, "", nil
	case rec.User == nil || rec.Credential == nil || *rec.Credential == "":
		return nil, "", fmt.Errorf("%w: user and credential must be stored together", ErrCorrupt)
	}

	if err := rec.User.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return rec.User, *rec.Credential, nil
}

// credentialExpired reports whether credential is a JWT whose exp is
// before now. Signatures are not checked here; the backend does that.
// Opaque tokens never expire from the client's point of view.
func credentialExpired(credential string, now time.Time) bool {
	token, _, err := jwt.NewParser().ParseUnverified(credential, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.Before(now)
}
