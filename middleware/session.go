package middleware

import (
	"errors"
	"log"
	"time"

	"github.com/devboard/devboard/model"
	"github.com/devboard/devboard/usecase"
	"github.com/gin-gonic/gin"
)

const SessionCookieName = "session_id"

// SessionMiddleware resolves the session cookie and touches last_activity
// on every request that carries one. Expired, deactivated, or idle-too-long
// sessions get their cookie cleared; expiry of the record itself is left to
// the TTL reaper and the cleanup sweep.
func SessionMiddleware(sessions *usecase.SessionService, inactivityTimeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := c.Cookie(SessionCookieName)
		if err != nil {
			c.Next()
			return
		}

		session, err := sessions.GetSession(c.Request.Context(), sessionID)
		if err != nil {
			if !errors.Is(err, model.ErrSessionNotFound) {
				log.Printf("Warning: session lookup failed: %v", err)
			}
			ClearSessionCookie(c)
			c.Next()
			return
		}

		if !session.IsActive || sessions.IsExpired(session) {
			ClearSessionCookie(c)
			c.Next()
			return
		}

		if time.Since(session.LastActivity) > inactivityTimeout {
			if err := sessions.DeactivateSession(c.Request.Context(), session.SessionID); err != nil {
				log.Printf("Warning: failed to deactivate idle session: %v", err)
			}
			ClearSessionCookie(c)
			c.Next()
			return
		}

		if err := sessions.TouchSession(c.Request.Context(), session.SessionID); err != nil {
			log.Printf("Warning: failed to touch session: %v", err)
		}

		c.Set("session", session)
		c.Set("session_id", session.SessionID)
		c.Next()
	}
}

// SetSessionCookie binds a freshly created session to the client.
func SetSessionCookie(c *gin.Context, session *model.Session) {
	c.SetCookie(
		SessionCookieName,
		session.SessionID,
		int(time.Until(session.ExpiresAt).Seconds()),
		"/",
		"",
		true,
		true,
	)
}

// ClearSessionCookie unbinds the session cookie from the client.
func ClearSessionCookie(c *gin.Context) {
	c.SetCookie(SessionCookieName, "", -1, "/", "", true, true)
}
