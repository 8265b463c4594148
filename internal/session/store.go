// Package session wraps gin-contrib/sessions with typed accessors for the
// authenticated user record and the one-time OAuth state.
package session

import (
	"encoding/json"
	"errors"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/go-orgauth/orgauth/internal/models"
	"github.com/go-orgauth/orgauth/internal/util"
)

// Session keys. The user record is stored as a JSON string so that the cookie
// and redis backends serialize it identically and claim maps survive the trip.
const (
	userKey  = "auth_user"
	stateKey = "oauth_state"
)

// ErrNoSession means the request carries no authenticated user record.
var ErrNoSession = errors.New("no authenticated session")

// SetUser writes the user record and persists the session.
func SetUser(c *gin.Context, record *models.SessionRecord) error {
	raw, err := json.Marshal(record)
	if err != nil {
		return err
	}
	s := sessions.Default(c)
	s.Set(userKey, string(raw))
	return s.Save()
}

// User reads the user record, or ErrNoSession when none is stored. A record
// that fails to decode is treated as absent; the caller forces a re-login.
func User(c *gin.Context) (*models.SessionRecord, error) {
	raw, ok := sessions.Default(c).Get(userKey).(string)
	if !ok || raw == "" {
		return nil, ErrNoSession
	}
	record := &models.SessionRecord{}
	if err := json.Unmarshal([]byte(raw), record); err != nil {
		return nil, ErrNoSession
	}
	if record.SubjectID == "" {
		return nil, ErrNoSession
	}
	return record, nil
}

// SetState stores the one-time OAuth state and persists the session.
func SetState(c *gin.Context, state string) error {
	s := sessions.Default(c)
	s.Set(stateKey, state)
	return s.Save()
}

// ConsumeState removes and returns the stored OAuth state. The state is
// single-use: it is cleared even when the subsequent comparison fails, so a
// replayed callback never matches twice.
func ConsumeState(c *gin.Context) (string, error) {
	s := sessions.Default(c)
	state, _ := s.Get(stateKey).(string)
	s.Delete(stateKey)
	if err := s.Save(); err != nil {
		return "", err
	}
	return state, nil
}

// StateEqual compares states in constant time.
func StateEqual(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return util.SecureCompare(expected, got)
}

// Clear drops everything in the session. Used on logout and on unrecoverable
// session corruption.
func Clear(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	return s.Save()
}
