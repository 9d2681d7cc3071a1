package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/layer-3/herald/core"
	"github.com/layer-3/herald/ports"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	sessionCookie = "herald_sid"
	cookieMaxAge  = int(24 * time.Hour / time.Second)

	ctxKeySID     = "sid"
	ctxKeySession = "session"
)

// SessionMiddleware binds a session to the request: it mints a session id
// cookie on first contact and loads the stored session into the gin
// context. Load never fails for a missing session; it returns the
// anonymous default. There is no ambient session state, handlers receive
// it explicitly through the context.
func SessionMiddleware(store ports.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(sessionCookie)
		if err != nil || sid == "" {
			sid = uuid.New().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCookie, sid, cookieMaxAge, "/", "", false, true)
		}

		session, err := store.Load(c.Request.Context(), sid)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session store unavailable"})
			return
		}

		c.Set(ctxKeySID, sid)
		c.Set(ctxKeySession, session)

		c.Next()
	}
}

// sessionFrom pulls the bound session out of the gin context.
func sessionFrom(c *gin.Context) (string, core.Session) {
	sid := c.GetString(ctxKeySID)
	session, _ := c.Get(ctxKeySession)
	s, _ := session.(core.Session)
	return sid, s
}

// RequestLogger writes one structured line per request.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

const (
	// Entries idle this long carry no rate-limiting state worth keeping;
	// a fresh limiter starts with a full burst anyway.
	nonceLimiterIdleTTL    = 10 * time.Minute
	nonceLimiterSweepEvery = time.Minute
)

// nonceLimiter rate-limits challenge issuance per session id so clients
// cannot churn nonces. Idle entries are swept so the map stays bounded
// by the number of recently active sessions.
type nonceLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*limiterEntry
	limit     rate.Limit
	burst     int
	lastSweep time.Time
	now       func() time.Time
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newNonceLimiter(perSecond float64, burst int) *nonceLimiter {
	return &nonceLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *nonceLimiter) get(sid string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= nonceLimiterSweepEvery {
		for k, e := range l.limiters {
			if now.Sub(e.lastSeen) > nonceLimiterIdleTTL {
				delete(l.limiters, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.limiters[sid]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[sid] = e
	}
	e.lastSeen = now
	return e.lim
}

// NonceRateLimit rejects challenge requests beyond perSecond per session.
func NonceRateLimit(perSecond float64, burst int) gin.HandlerFunc {
	limiter := newNonceLimiter(perSecond, burst)
	return func(c *gin.Context) {
		sid, _ := sessionFrom(c)
		if !limiter.get(sid).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
