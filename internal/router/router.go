package router

import (
	"time"

	"settlepos/internal/config"
	"settlepos/internal/handler"
	"settlepos/internal/infra"
	"settlepos/internal/metrics"
	"settlepos/internal/middleware"
	"settlepos/internal/model"
	"settlepos/internal/repository"
	"settlepos/internal/service"
	"settlepos/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the long-lived components shared with the background workers.
type Deps struct {
	Serializer *service.Serializer
	Events     *infra.EventPublisher
	Jobs       *worker.Dispatcher
	Drawer     *infra.DrawerClient
	Location   *time.Location
	// Limiters are purged periodically by the caller.
	APILimiter   *middleware.IPRateLimiter
	LoginLimiter *middleware.IPRateLimiter
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, deps Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.APILimiter == nil {
		deps.APILimiter = middleware.NewIPRateLimiter(float64(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	if deps.LoginLimiter == nil {
		deps.LoginLimiter = middleware.LoginRateLimiter()
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Localize(cfg.DefaultLocale))
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(deps.APILimiter.Middleware())

	// ── Repositories ─────────────────────────────────────────────────────────
	staffRepo := repository.NewStaffRepository(db)
	productRepo := repository.NewProductRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(staffRepo, cfg)
	broadcaster := infra.NewBroadcaster(rdb)
	orderSvc := service.NewOrderService(service.OrderDeps{
		Orders:     repository.NewOrderRepository(db),
		Commands:   repository.NewCommandRepository(db),
		Products:   productRepo,
		Rules:      repository.NewPricingRuleRepository(db),
		Stamps:     repository.NewStampRepository(db),
		Members:    repository.NewMemberRepository(db),
		Staff:      staffRepo,
		Serializer: deps.Serializer,
		Snapshots:  broadcaster,
		Events:     deps.Events,
		Jobs:       deps.Jobs,
		Location:   deps.Location,
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	ordersH := handler.NewOrdersHandler(orderSvc)
	streamH := handler.NewStreamHandler(orderSvc, broadcaster)
	productsH := handler.NewProductsHandler(productRepo, rdb)
	adminH := handler.NewAdminHandler(rdb)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, deps.Drawer))
	r.GET("/metrics", metrics.Handler())

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", deps.LoginLimiter.Middleware(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes. Per-command permissions and supervisor overrides are
	// checked by the order service.
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		v1.GET("/auth/me", authH.Me)
		v1.GET("/products/sku/:sku", productsH.GetBySKU)

		orders := v1.Group("/orders")
		{
			orders.POST("", ordersH.OpenOrder)
			orders.GET("", ordersH.ListOrders)
			orders.GET("/:id", ordersH.GetOrder)
			orders.GET("/:id/stream", streamH.Stream)

			orders.POST("/:id/items", ordersH.AddItem)
			orders.POST("/:id/items/remove", ordersH.RemoveItem)
			orders.POST("/:id/items/discount", ordersH.ApplyItemDiscount)
			orders.POST("/:id/items/comp", ordersH.CompItem)
			orders.POST("/:id/items/uncomp", ordersH.UncompItem)
			orders.POST("/:id/discount", ordersH.ApplyOrderDiscount)
			orders.POST("/:id/surcharge", ordersH.ApplyOrderSurcharge)

			orders.POST("/:id/splits/items", ordersH.SplitByItems)
			orders.POST("/:id/splits/amount", ordersH.SplitByAmount)
			orders.POST("/:id/splits/aa", ordersH.StartAASplit)
			orders.POST("/:id/splits/aa/pay", ordersH.PayAASplit)
			orders.POST("/:id/payments", ordersH.AddPayment)
			orders.POST("/:id/payments/cancel", ordersH.CancelPayment)

			orders.POST("/:id/complete", ordersH.CompleteOrder)
			orders.POST("/:id/void", ordersH.VoidOrder)
			orders.POST("/:id/relocate", ordersH.RelocateOrder)

			orders.POST("/:id/member", ordersH.LinkMember)
			orders.POST("/:id/member/unlink", ordersH.UnlinkMember)
			orders.GET("/:id/stamps/match", ordersH.MatchStamp)
			orders.POST("/:id/stamps/redeem", ordersH.RedeemStamp)
			orders.POST("/:id/stamps/cancel", ordersH.CancelStampRedemption)
		}

		admin := v1.Group("/admin", middleware.RequireRole(model.RoleManager))
		{
			admin.GET("/dlq", adminH.DLQ)
			admin.POST("/dlq/:queue/requeue", adminH.RequeueDLQ)
		}
	}

	// Swagger UI, only outside production
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
