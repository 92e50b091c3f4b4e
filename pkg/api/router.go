// Package api implements the Vox REST surface and the HTTP server that
// carries it together with the gateway WebSocket endpoint.
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cmorg789/vox/internal/logger"
	"github.com/cmorg789/vox/pkg/api/handlers"
	"github.com/cmorg789/vox/pkg/api/middleware"
	"github.com/cmorg789/vox/pkg/auth"
	"github.com/cmorg789/vox/pkg/eventlog"
	"github.com/cmorg789/vox/pkg/federation"
	"github.com/cmorg789/vox/pkg/gateway"
	"github.com/cmorg789/vox/pkg/metrics"
	"github.com/cmorg789/vox/pkg/notify"
	"github.com/cmorg789/vox/pkg/permissions"
	"github.com/cmorg789/vox/pkg/ratelimit"
	"github.com/cmorg789/vox/pkg/snowflake"
	"github.com/cmorg789/vox/pkg/store"
)

// Deps bundles everything the router needs. Optional collaborators
// (federation, notifier, metrics) may be nil.
type Deps struct {
	Store      store.Store
	Auth       *auth.Service
	Hub        *gateway.Hub
	Dispatcher gateway.Dispatcher
	Resolver   *permissions.Resolver
	IDs        *snowflake.Generator
	EventLog   eventlog.Log

	Notifier *notify.Notifier

	// Federation. Verifier gates the inbound surface; Client and
	// Vouchers drive the outbound one. All nil when federation is off.
	FedVerifier *federation.Verifier
	FedVouchers *federation.VoucherService
	FedClient   *federation.Client

	RateLimiter *ratelimit.Middleware

	// PresenceSink forwards local presence changes to subscribed remote
	// servers. Nil when federation is off.
	PresenceSink gateway.PresenceSink

	GatewayConfig gateway.Config
	Domain        string
	ServerName    string

	HTTPMetrics metrics.HTTPMetrics
}

// NewRouter builds the chi router: middleware stack, unauthenticated
// probes, the gateway upgrade endpoint, the authenticated API, and the
// signature-verified federation surface.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(d.HTTPMetrics))
	r.Use(chimw.Recoverer)
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Handler)
	}

	// Handlers.
	fedInbound := handlersFederation(d)
	authH := newAuthHandler(d)
	channelH := newChannelHandler(d)
	messageH := newMessageHandler(d)
	dmH := newDMHandler(d)
	roleH := newRoleHandler(d)
	memberH := newMemberHandler(d)
	voiceH := newVoiceHandler(d)
	syncH := newSyncHandler(d)
	pushH := newPushHandler(d)
	metaH := newMetaHandler(d)
	fedAdminH := newFederationAdminHandler(d)

	// Probes and the socket, all outside authentication.
	r.Get("/healthz", metaH.Healthz)
	r.Get("/readyz", metaH.Readyz)
	if metrics.IsEnabled() {
		r.Handle("/metrics", metrics.Handler())
	}
	r.Get("/gateway", gateway.Handler(gateway.Deps{
		Hub:        d.Hub,
		Auth:       d.Auth,
		Dispatcher: d.Dispatcher,
		Voice:      d.Store,
		Presence:   d.PresenceSink,
	}, d.GatewayConfig))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/gateway", metaH.GatewayInfo)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authH.Register)
			r.Post("/login", authH.Login)

			r.Group(func(r chi.Router) {
				r.Use(authMW(d))
				r.Post("/logout", authH.Logout)
				r.Get("/2fa", authH.MFAStatus)
			})
		})

		// The session-authenticated surface.
		r.Group(func(r chi.Router) {
			r.Use(authMW(d))

			r.Route("/feeds", func(r chi.Router) {
				r.Post("/", channelH.CreateFeed)
				r.Get("/", channelH.ListFeeds)
				r.Route("/{feedID}", func(r chi.Router) {
					r.Get("/", channelH.GetFeed)
					r.Patch("/", channelH.UpdateFeed)
					r.Delete("/", channelH.DeleteFeed)

					r.Post("/messages", messageH.SendFeedMessage)
					r.Get("/messages", messageH.ListFeedMessages)
					r.Post("/read", messageH.MarkFeedRead)
					r.Put("/pins/{msgID}", messageH.PinMessage)

					r.Post("/threads", channelH.CreateThread)
					r.Get("/threads", channelH.ListThreads)

					r.Put("/permissions", roleH.SetOverride)
					r.Delete("/permissions", roleH.DeleteOverride)
				})
			})

			r.Route("/messages/{msgID}", func(r chi.Router) {
				r.Patch("/", messageH.EditMessage)
				r.Delete("/", messageH.DeleteMessage)
				r.Put("/reactions", messageH.AddReaction)
				r.Delete("/reactions", messageH.RemoveReaction)
			})
			r.Get("/messages/search", messageH.Search)

			r.Post("/threads/{threadID}/messages", messageH.SendThreadMessage)

			r.Route("/rooms", func(r chi.Router) {
				r.Post("/", channelH.CreateRoom)
				r.Get("/", channelH.ListRooms)
				r.Route("/{roomID}", func(r chi.Router) {
					r.Delete("/", channelH.DeleteRoom)
					r.Put("/voice", voiceH.JoinRoom)
					r.Get("/voice", voiceH.ListRoomMembers)
					r.Put("/permissions", roleH.SetOverride)
					r.Delete("/permissions", roleH.DeleteOverride)
				})
			})
			r.Delete("/voice", voiceH.LeaveRoom)

			r.Route("/categories", func(r chi.Router) {
				r.Post("/", channelH.CreateCategory)
				r.Get("/", channelH.ListCategories)
				r.Delete("/{categoryID}", channelH.DeleteCategory)
			})

			r.Route("/dms", func(r chi.Router) {
				r.Post("/", dmH.CreateDM)
				r.Get("/", dmH.ListDMs)
				r.Route("/{dmID}", func(r chi.Router) {
					r.Post("/messages", messageH.SendDMMessage)
					r.Post("/read", dmH.MarkRead)
					r.Put("/participants/{userID}", dmH.AddParticipant)
				})
			})

			r.Route("/roles", func(r chi.Router) {
				r.Post("/", roleH.CreateRole)
				r.Get("/", roleH.ListRoles)
				r.Route("/{roleID}", func(r chi.Router) {
					r.Patch("/", roleH.UpdateRole)
					r.Delete("/", roleH.DeleteRole)
					r.Put("/members/{userID}", roleH.AssignRole)
					r.Delete("/members/{userID}", roleH.RevokeRole)
				})
			})

			r.Route("/users", func(r chi.Router) {
				r.Get("/", memberH.ListMembers)
				r.Patch("/@me", memberH.UpdateSelf)
				r.Put("/@me/push-subscription", pushH.Subscribe)
				r.Delete("/@me/push-subscription", pushH.Unsubscribe)
				r.Route("/{userID}", func(r chi.Router) {
					r.Get("/", memberH.GetMember)
					r.Post("/kick", memberH.Kick)
					r.Put("/ban", memberH.Ban)
					r.Delete("/ban", memberH.Unban)
				})
			})
			r.Get("/bans", memberH.ListBans)

			r.Route("/invites", func(r chi.Router) {
				r.Post("/", memberH.CreateInvite)
				r.Get("/", memberH.ListInvites)
				r.Delete("/{code}", memberH.DeleteInvite)
				r.Post("/{code}/redeem", memberH.RedeemInvite)
			})

			r.Post("/sync", syncH.Sync)

			// Operator surface.
			r.Route("/admin/federation", func(r chi.Router) {
				r.Get("/", fedAdminH.ListEntries)
				r.Post("/block", fedAdminH.Block)
				r.Delete("/block/{target}", fedAdminH.Unblock)
				r.Post("/allow", fedAdminH.Allow)
				r.Delete("/allow/{target}", fedAdminH.Unallow)
			})

			if fedInbound != nil {
				r.Post("/federation/join-request", fedInbound.JoinRequest)
			}
		})

		// Server-to-server surface, authenticated by envelope signature.
		if fedInbound != nil && d.FedVerifier != nil {
			r.Route("/federation", func(r chi.Router) {
				r.Use(federationMW(d))
				r.Post("/join", fedInbound.Join)
				r.Post("/relay/message", fedInbound.RelayMessage)
				r.Post("/relay/typing", fedInbound.RelayTyping)
				r.Post("/relay/read", fedInbound.RelayRead)
				r.Get("/users/{address}", fedInbound.FetchUser)
				r.Get("/users/{address}/prekeys", fedInbound.FetchPrekeys)
				r.Post("/presence/subscribe", fedInbound.SubscribePresence)
				r.Post("/presence/unsubscribe", fedInbound.UnsubscribePresence)
				r.Post("/presence/notify", fedInbound.NotifyPresence)
				r.Post("/block", fedInbound.Block)
			})
		}
	})

	return r
}

// Constructor shims keep NewRouter readable; each one just plucks the
// dependencies its handler needs.

func newAuthHandler(d Deps) *handlers.AuthHandler {
	return handlers.NewAuthHandler(d.Store, d.Auth, d.Hub)
}

func newChannelHandler(d Deps) *handlers.ChannelHandler {
	return handlers.NewChannelHandler(d.Store, d.Dispatcher, d.IDs, d.Resolver)
}

func newMessageHandler(d Deps) *handlers.MessageHandler {
	return handlers.NewMessageHandler(d.Store, d.Dispatcher, d.IDs, d.Resolver, d.Notifier, d.FedClient, d.Domain)
}

func newDMHandler(d Deps) *handlers.DMHandler {
	return handlers.NewDMHandler(d.Store, d.Dispatcher, d.IDs, d.FedClient, d.Domain)
}

func newRoleHandler(d Deps) *handlers.RoleHandler {
	return handlers.NewRoleHandler(d.Store, d.Dispatcher, d.IDs, d.Resolver)
}

func newMemberHandler(d Deps) *handlers.MemberHandler {
	return handlers.NewMemberHandler(d.Store, d.Dispatcher, d.Hub, d.IDs, d.Resolver)
}

func newVoiceHandler(d Deps) *handlers.VoiceHandler {
	return handlers.NewVoiceHandler(d.Store, d.Dispatcher, d.Auth, d.Resolver)
}

func newSyncHandler(d Deps) *handlers.SyncHandler {
	return handlers.NewSyncHandler(d.Store, d.EventLog)
}

func newPushHandler(d Deps) *handlers.PushHandler {
	return handlers.NewPushHandler(d.Store, d.IDs)
}

func newMetaHandler(d Deps) *handlers.MetaHandler {
	return handlers.NewMetaHandler(d.Store, d.Domain, d.ServerName)
}

func newFederationAdminHandler(d Deps) *handlers.FederationAdminHandler {
	return handlers.NewFederationAdminHandler(d.Store, d.IDs, d.Resolver)
}

// handlersFederation builds the inbound federation handler, or nil when
// vouchers are not configured.
func handlersFederation(d Deps) *handlers.FederationHandler {
	if d.FedVouchers == nil {
		return nil
	}
	return handlers.NewFederationHandler(d.Store, d.Dispatcher, d.Hub, d.Auth, d.IDs, d.FedVouchers, d.FedClient, d.Domain, d.ServerName)
}

func authMW(d Deps) func(http.Handler) http.Handler {
	return middleware.Auth(d.Auth, auth.PurposeSession, auth.PurposeFederation)
}

func federationMW(d Deps) func(http.Handler) http.Handler {
	return middleware.FederationVerify(d.FedVerifier)
}

// tokenResolver adapts the auth service to the rate limiter's cache
// interface.
type tokenResolver struct {
	svc *auth.Service
}

// ResolveToken maps a raw session token to its user ID.
func (t tokenResolver) ResolveToken(ctx context.Context, raw string) (int64, error) {
	id, err := t.svc.Authenticate(ctx, raw, auth.PurposeSession, auth.PurposeFederation)
	if err != nil {
		return 0, err
	}
	return id.User.ID, nil
}

// NewRateLimitMiddleware wires the limiter to the auth service for
// principal resolution.
func NewRateLimitMiddleware(l *ratelimit.Limiter, svc *auth.Service) *ratelimit.Middleware {
	return ratelimit.NewMiddleware(l, tokenResolver{svc: svc})
}

// isProbePath reports whether the path is a health probe, logged at
// debug to keep orchestrator noise out of the logs.
func isProbePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || strings.HasPrefix(path, "/metrics")
}

// requestLogger logs each request once on completion and feeds the
// HTTP metrics when enabled.
func requestLogger(m metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			if m != nil {
				m.RecordRequestStart(r.Method, r.URL.Path)
			}
			next.ServeHTTP(ww, r)
			duration := time.Since(start)
			if m != nil {
				m.RecordRequestEnd(r.Method, r.URL.Path)
				m.RecordRequest(r.Method, routePattern(r), ww.Status(), duration)
			}

			args := []any{
				"request_id", chimw.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				logger.Status(ww.Status()),
				"bytes", ww.BytesWritten(),
				logger.DurationMs(float64(duration.Microseconds()) / 1000),
			}
			if isProbePath(r.URL.Path) {
				logger.Debug("request completed", args...)
			} else {
				logger.Info("request completed", args...)
			}
		})
	}
}

// routePattern returns the chi route pattern so metrics label by route
// shape rather than raw path.
func routePattern(r *http.Request) string {
	if ctx := chi.RouteContext(r.Context()); ctx != nil {
		if p := ctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
