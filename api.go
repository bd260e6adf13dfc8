package labflow

import (
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jcuga/golongpoll"
	"github.com/rs/zerolog"
	timeout "github.com/vearne/gin-timeout"

	auditservice "github.com/openlims/labflow/auditlog/service"
	"github.com/openlims/labflow/authmanager"
	"github.com/openlims/labflow/config"
	"github.com/openlims/labflow/middleware"
)

type GinApi interface {
	Run() error
}

type api struct {
	config            *config.Configuration
	engine            *gin.Engine
	orderService      OrderService
	flaggingService   FlaggingService
	reagentService    ReagentService
	instrumentService InstrumentService
	auditLogService   auditservice.AuditLogService
	longpollManager   *golongpoll.LongpollManager
}

func (api *api) Run() error {
	return api.engine.Run(fmt.Sprintf(":%d", api.config.APIPort))
}

func NewAPI(config *config.Configuration, authManager authmanager.AuthManager, orderService OrderService,
	flaggingService FlaggingService, reagentService ReagentService, instrumentService InstrumentService,
	auditLogService auditservice.AuditLogService, longpollManager *golongpoll.LongpollManager) GinApi {
	return newAPI(gin.New(), config, authManager, orderService, flaggingService, reagentService, instrumentService, auditLogService, longpollManager)
}

func newAPI(engine *gin.Engine, config *config.Configuration, authManager authmanager.AuthManager, orderService OrderService,
	flaggingService FlaggingService, reagentService ReagentService, instrumentService InstrumentService,
	auditLogService auditservice.AuditLogService, longpollManager *golongpoll.LongpollManager) GinApi {

	if config.LogLevel <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine.Use(gin.Recovery())
	engine.Use(timeout.Timeout(
		timeout.WithTimeout(time.Duration(config.RequestTimeoutSeconds)*time.Second),
		timeout.WithErrorHttpCode(http.StatusRequestTimeout)))

	api := api{
		config:            config,
		engine:            engine,
		orderService:      orderService,
		flaggingService:   flaggingService,
		reagentService:    reagentService,
		instrumentService: instrumentService,
		auditLogService:   auditLogService,
		longpollManager:   longpollManager,
	}

	corsMiddleWare := middleware.CreateCorsMiddleware(config)
	engine.Use(corsMiddleWare)

	root := engine.Group("")
	root.GET("/health", api.GetHealth)

	v1Group := root.Group("v1")

	if api.config.Authorization {
		authMiddleWare := middleware.CheckAuth(authManager)
		v1Group.Use(authMiddleWare)
	}

	testOrdersGroup := v1Group.Group("/test-orders")
	{
		testOrdersGroup.POST("", api.CreateTestOrder)
		testOrdersGroup.GET("", api.GetTestOrders)
		testOrdersGroup.POST("/process-sample", api.ProcessSample)
		testOrdersGroup.GET("/:orderId", api.GetTestOrderByID)
		testOrdersGroup.PUT("/:orderId", api.UpdateTestOrder)
		testOrdersGroup.DELETE("/:orderId", api.DeleteTestOrder)
		testOrdersGroup.PUT("/:orderId/results", api.AddTestResults)
		testOrdersGroup.POST("/:orderId/complete", api.CompleteTestOrder)

		commentsGroup := testOrdersGroup.Group("/:orderId/comments")
		{
			commentsGroup.POST("", api.AddTestOrderComment)
			commentsGroup.PUT("/:commentId", api.UpdateTestOrderComment)
			commentsGroup.DELETE("/:commentId", api.DeleteTestOrderComment)
		}
	}

	rawResultsGroup := v1Group.Group("/raw-results")
	{
		rawResultsGroup.POST("/:rawResultId/sync", api.SyncRawResult)
	}

	flaggingGroup := v1Group.Group("/flagging-configurations")
	{
		flaggingGroup.POST("", api.CreateFlaggingConfiguration)
		flaggingGroup.GET("", api.GetFlaggingConfigurations)
		flaggingGroup.POST("/sync", api.SyncFlaggingConfigurations)
		flaggingGroup.GET("/:configurationId", api.GetFlaggingConfigurationByID)
		flaggingGroup.PUT("/:configurationId", api.UpdateFlaggingConfiguration)
		flaggingGroup.DELETE("/:configurationId", api.DeleteFlaggingConfiguration)
	}

	instrumentReagentsGroup := v1Group.Group("/instrument-reagents")
	{
		instrumentReagentsGroup.POST("", api.InstallReagent)
		instrumentReagentsGroup.GET("", api.GetInstrumentReagents)
		instrumentReagentsGroup.PUT("/:instrumentReagentId/status", api.UpdateInstrumentReagentStatus)
	}

	reagentUsageGroup := v1Group.Group("/reagent-usage")
	{
		reagentUsageGroup.POST("", api.RecordReagentUsage)
		reagentUsageGroup.GET("", api.GetReagentUsageHistory)
	}

	reagentInventoryGroup := v1Group.Group("/reagent-inventory")
	{
		reagentInventoryGroup.GET("", api.GetReagentInventories)
		reagentInventoryGroup.GET("/:inventoryLotId", api.GetReagentInventoryByID)
		reagentInventoryGroup.POST("/:inventoryLotId/return", api.ReturnReagentInventory)
	}

	instrumentsGroup := v1Group.Group("/instruments")
	{
		instrumentsGroup.GET("", api.GetInstruments)
		instrumentsGroup.GET("/:instrumentId", api.GetInstrumentByID)
		instrumentsGroup.PUT("/:instrumentId/status", api.UpdateInstrumentStatus)
	}

	eventsGroup := v1Group.Group("/events")
	{
		eventsGroup.GET("", api.GetAuditEvents)
		eventsGroup.GET("/subscribe", api.SubscribeAuditEvents)
	}

	// Development-option enables debugger, this can have side-effects
	if api.config.Development {
		debug := root.Group("/debug/pprof")
		{
			debug.GET("/", gin.WrapF(pprof.Index))
			debug.GET("/cmdline", gin.WrapF(pprof.Cmdline))
			debug.GET("/profile", gin.WrapF(pprof.Profile))
			debug.GET("/symbol", gin.WrapF(pprof.Symbol))
			debug.GET("/trace", gin.WrapF(pprof.Trace))
			debug.GET("/allocs", gin.WrapH(pprof.Handler("allocs")))
			debug.GET("/block", gin.WrapH(pprof.Handler("block")))
			debug.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
			debug.GET("/heap", gin.WrapH(pprof.Handler("heap")))
			debug.GET("/mutex", gin.WrapH(pprof.Handler("mutex")))
			debug.GET("/threadcreate", gin.WrapH(pprof.Handler("threadcreate")))
			debug.POST("/symbol", gin.WrapF(pprof.Symbol))
		}
	}

	return &api
}
