package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dkeye/Huddle/internal/adapters/signal"
	"github.com/dkeye/Huddle/internal/auth"
	"github.com/dkeye/Huddle/internal/config"
	"github.com/dkeye/Huddle/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionUserKey = "uid"
	adminHeader    = "X-Admin-Token"
	healthTimeout  = 2 * time.Second
)

// Pinger is the part of the chat store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// bearerToken looks for a token in the Authorization header, then in the
// token query parameter. Browsers cannot set headers on a WebSocket
// handshake, hence the query fallback.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return c.Query("token")
}

// IdentityMiddleware puts the verified user id, if any, under
// auth.ContextUserKey. A verified id is remembered in the session cookie so
// later requests may omit the token. A request carrying a bad token is
// refused; one carrying none passes through anonymous.
func IdentityMiddleware(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessions.Default(c)

		if token := bearerToken(c); token != "" && v != nil {
			uid, err := v.Verify(token)
			if err != nil {
				log.Info().Err(err).Str("module", "adapters.http").Msg("token rejected")
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": auth.ErrInvalidToken.Error()})
				return
			}
			sess.Set(sessionUserKey, string(uid))
			if err := sess.Save(); err != nil {
				log.Warn().Err(err).Str("module", "adapters.http").Msg("session save")
			}
			c.Set(auth.ContextUserKey, string(uid))
			c.Next()
			return
		}

		if uid, ok := sess.Get(sessionUserKey).(string); ok && domain.UserID(uid).Valid() {
			c.Set(auth.ContextUserKey, uid)
		}
		c.Next()
	}
}

// AdminMiddleware lets through only requests carrying the operator token.
// With no token configured every request is refused.
func AdminMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(adminHeader)
		if token == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			log.Warn().Str("module", "adapters.http").Str("path", c.FullPath()).Str("ip", c.ClientIP()).Msg("admin request refused")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin_token_required"})
			return
		}
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, ctrl *signal.SignalWSController, verifier *auth.Verifier, db Pinger) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions("HuddleSessions", store))
	r.Use(IdentityMiddleware(verifier))

	o := ctrl.Orch

	r.GET("/healthz", func(c *gin.Context) {
		conns, users := o.Registry.Counts()
		if db != nil {
			pctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			err := db.Ping(pctx)
			cancel()
			if err != nil {
				log.Error().Err(err).Str("module", "adapters.http").Msg("health: store unreachable")
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_unavailable", "connections": conns, "users": users})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": conns, "users": users})
	})

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": o.Rooms.List()})
	})

	api.GET("/presence/:user_id", func(c *gin.Context) {
		uid := domain.UserID(c.Param("user_id"))
		if !uid.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidPayload.Error()})
			return
		}
		sid, online := o.Registry.Resolve(uid)
		c.JSON(http.StatusOK, gin.H{"user_id": uid, "online": online, "conn_id": sid})
	})

	admin := api.Group("/", AdminMiddleware(cfg.AdminToken))
	admin.DELETE("/presence/:user_id", func(c *gin.Context) {
		uid := domain.UserID(c.Param("user_id"))
		if err := o.Kick(uid); err != nil {
			if errors.Is(err, domain.ErrTargetUnavailable) {
				c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrTargetUnavailable.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		log.Info().Str("module", "adapters.http").Str("user", string(uid)).Msg("presence revoked")
		c.Status(http.StatusNoContent)
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("user", c.GetString(auth.ContextUserKey)).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
