package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/visionhub/internal/config"
	"github.com/geocoder89/visionhub/internal/domain/user"
	"github.com/geocoder89/visionhub/internal/http/handlers"
	"github.com/geocoder89/visionhub/internal/http/middlewares"
	"github.com/geocoder89/visionhub/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Dependencies are the stores and services the routes are wired against.
// Prom, Metrics and Checks may be left empty.
type Dependencies struct {
	Projects handlers.ProjectsStore
	Users    handlers.UserLookup
	Resolver middlewares.IdentityResolver
	Gateway  handlers.RPCGateway
	Metadata handlers.MetadataFetcher
	Lookups  handlers.LookupSource

	Prom    *observability.Prom
	Metrics http.Handler
	Checks  map[string]handlers.PingFunc

	// Health is built by NewRouter when nil.
	Health *handlers.HealthHandler
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Dependencies) *gin.Engine {
	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	if cfg.OTelExporterEndpoint != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSAllowedOrigins))
	if cfg.MaxBodyBytes > 0 {
		r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	}
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}
	r.GET("/swagger", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	// health
	h := deps.Health
	if h == nil {
		h = handlers.NewHealthHandler(deps.Checks)
	}
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	identity := middlewares.NewIdentityMiddleware(deps.Resolver)

	session := handlers.NewSessionHandler()
	r.GET("/session", identity.OptionalIdentity(), session.Session)
	r.GET("/me", identity.RequireIdentity(), session.Me)

	lookups := handlers.NewLookupsHandler(deps.Lookups)
	r.GET("/lookups/:table", lookups.GetTable)

	authed := r.Group("/")
	authed.Use(identity.RequireIdentity())

	projects := handlers.NewProjectsHandler(deps.Projects)
	authed.GET("/projects", projects.ListProjects)
	authed.POST("/projects", middlewares.RequireJSON(), projects.CreateProject)
	authed.GET("/projects/:id", projects.GetProject)
	authed.POST("/projects/:id/archive", projects.ArchiveProject)
	authed.POST("/projects/:id/views", projects.IncrementViews)

	rpcHandler := handlers.NewRPCHandler(deps.Gateway)
	authed.GET("/rpc", rpcHandler.ListProcedures)
	authed.POST("/rpc/:procedure", middlewares.RequireJSON(), rpcHandler.Call)

	// metadata calls a paid upstream; cap it per caller, or per IP when anonymous
	meta := handlers.NewMetadataHandler(deps.Metadata)
	metaChain := []gin.HandlerFunc{identity.OptionalIdentity()}
	if cfg.MetadataRateLimit > 0 {
		metaLimiter := middlewares.NewRateLimiter(cfg.MetadataRateLimit, time.Minute)
		metaChain = append(metaChain, metaLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
	}
	r.GET("/metadata", append(metaChain, meta.GetMetadata)...)

	admin := authed.Group("/admin")
	admin.Use(middlewares.RequireRole(user.RoleAdmin))
	{
		adminUsers := handlers.NewAdminUsersHandler(deps.Users)
		admin.GET("/users/:externalId", adminUsers.GetUser)
	}

	return r
}
