package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	echoswagger "github.com/swaggo/echo-swagger"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/resellium/console/internal/api/handler"
	"github.com/resellium/console/internal/api/middleware"
	"github.com/resellium/console/internal/core/domain"
	"github.com/resellium/console/internal/core/ports"
	"github.com/resellium/console/internal/core/service"
	"github.com/resellium/console/internal/infrastructure/config"
	mongodb "github.com/resellium/console/internal/infrastructure/db/mongo"
	redisdb "github.com/resellium/console/internal/infrastructure/db/redis"
)

// NewRouter builds and returns the Echo instance with all routes
// registered. recorder persists the audit trail; pass nil to disable.
func NewRouter(db *mongo.Database, rdb *redis.Client, cfg *config.Config, recorder ports.OperationRecorder, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("console"))

	// --- Dependencies ---
	identityRepo := mongodb.NewIdentityRepository(db)
	profileRepo := mongodb.NewProfileRepository(db)
	operationRepo := mongodb.NewOperationRepository(db)

	markers := redisdb.NewMarkerStore(rdb, cfg.TwoFactor.MarkerTTL)
	codes := redisdb.NewCodeStore(rdb, cfg.TwoFactor.CodeTTL)
	broadcast := redisdb.NewBroadcast(rdb, log)

	provider := service.NewIdentityService(identityRepo, cfg.JWTSecret, cfg.TokenTTL, log)
	resolver := service.NewProfileResolver(profileRepo, log)
	gate := service.NewTwoFactorGate(markers, codes, log)
	accounts := service.NewAccountService(profileRepo, provider, operationRepo, recorder, log)

	authHandler := handler.NewAuthHandler(provider, resolver, gate, codes, broadcast, recorder, log)
	accountHandler := handler.NewAccountHandler(accounts)

	authMW := middleware.Auth(provider, resolver, gate)

	// --- Auth routes ---
	e.POST("/v1/auth/login", authHandler.Login)
	e.POST("/v1/auth/logout", authHandler.Logout)
	e.POST("/v1/auth/2fa/challenge", authHandler.Challenge)
	e.POST("/v1/auth/2fa/verify", authHandler.Verify)
	e.GET("/v1/auth/session", authHandler.Session)

	// --- Account routes ---
	e.GET("/v1/me", accountHandler.Me, authMW)

	admin := e.Group("/v1/admin", authMW, middleware.RBAC(domain.RoleAdmin))
	admin.GET("/users", accountHandler.ListUsers)
	admin.POST("/users", accountHandler.CreateUser)
	admin.POST("/users/:id/credits", accountHandler.AdjustCredits)
	admin.GET("/users/:id/operations", accountHandler.ListOperations)

	distributor := e.Group("/v1/distributor", authMW, middleware.RBAC(domain.RoleDistributor, domain.RoleAdmin))
	distributor.GET("/users", accountHandler.ListDistributorUsers)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)          // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	// --- Operational endpoints ---
	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoswagger.WrapHandler)

	return e
}
