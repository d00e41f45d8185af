package main

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/config"
	"github.com/kendall-kelly/eventflow-api/controllers"
	"github.com/kendall-kelly/eventflow-api/middleware"
	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.Logger().Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := config.NewLogger(cfg.LogLevel, cfg.GoEnv)
	config.SetLogger(log)
	log.Info().Str("env", cfg.GoEnv).Msg("Starting EventFlow API server")

	if err := config.ConnectDatabase(); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	db := config.GetDB()
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	log.Info().Msg("Database migration completed successfully")

	ctx := context.Background()
	collab, err := newCollaborators(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize collaborators")
	}

	auth, err := middleware.EnsureValidToken(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up token validation")
	}

	router := newRouter(cfg, buildHandlers(cfg, db, collab, log), auth)

	port := ":" + cfg.Port
	log.Info().Str("addr", "http://localhost"+port).Msg("Server is running")
	if err := router.Run(port); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}

// collaborators are the external systems the services talk to.
type collaborators struct {
	email    services.EmailSender
	docs     services.DocumentStore
	gateway  services.PaymentGateway
	userInfo services.UserInfoProvider
}

// newCollaborators picks real providers when they are configured and local
// stand-ins otherwise.
func newCollaborators(ctx context.Context, cfg *config.Config, log zerolog.Logger) (collaborators, error) {
	var c collaborators

	if cfg.EmailProvider == "ses" {
		ses, err := services.NewSESEmailSender(ctx, cfg, log)
		if err != nil {
			return c, err
		}
		c.email = ses
	} else {
		c.email = services.NewLogEmailSender(log)
	}

	if cfg.AWSS3Bucket != "" {
		store, err := services.NewS3DocumentStore(ctx, cfg, log)
		if err != nil {
			return c, err
		}
		c.docs = store
	} else {
		log.Warn().Msg("AWS_S3_BUCKET not set, signed documents are kept in memory")
		c.docs = services.NewMockDocumentStore()
	}

	if cfg.MercadoPagoAccessToken != "" {
		gw, err := services.NewMercadoPagoGateway(cfg.MercadoPagoAccessToken, log)
		if err != nil {
			return c, err
		}
		c.gateway = gw
	} else {
		log.Warn().Msg("MERCADOPAGO_ACCESS_TOKEN not set, online charges are simulated")
		c.gateway = services.NewMockPaymentGateway()
	}

	c.userInfo = services.NewAuth0Client(cfg.Auth0Domain, log)
	return c, nil
}

// buildHandlers wires services over db and the collaborators.
func buildHandlers(cfg *config.Config, db *gorm.DB, c collaborators, log zerolog.Logger) controllers.Handlers {
	seq := services.NewSequencer(cfg.ReorderMargin)
	taxRate := cfg.TaxRate()
	notifier := services.NewNotifier(c.email, log)

	users := services.NewUserService(db, c.userInfo, log)
	workflows := services.NewWorkflowService(db, seq, log)
	events := services.NewEventService(db, workflows, log)
	quotes := services.NewQuoteService(db, notifier, taxRate, log)
	invoices := services.NewInvoiceService(db, notifier, taxRate, log)
	payments := services.NewPaymentService(db, notifier, invoices, workflows, c.gateway, log)
	plans := services.NewPaymentPlanService(db, log)
	contracts := services.NewContractService(db, notifier, c.docs, log)

	return controllers.Handlers{
		DB:             db,
		Users:          controllers.NewUserHandler(users),
		Events:         controllers.NewEventHandler(events, workflows, users),
		Workflows:      controllers.NewWorkflowHandler(workflows, users),
		Quotes:         controllers.NewQuoteHandler(quotes, users),
		QuoteTemplates: controllers.NewQuoteTemplateHandler(services.NewQuoteTemplateService(db, seq, taxRate, log), users),
		Invoices:       controllers.NewInvoiceHandler(invoices, users),
		Payments:       controllers.NewPaymentHandler(payments, plans, users),
		Contracts:      controllers.NewContractHandler(contracts, users),
		Questionnaires: controllers.NewQuestionnaireHandler(services.NewQuestionnaireService(db, seq, log)),
		BookingFlows:   controllers.NewBookingFlowHandler(services.NewBookingFlowService(db, seq, log)),
		CRM: controllers.NewCRMHandler(
			services.NewClientService(db, notifier, log),
			services.NewNoteService(db, log),
			services.NewDiscountService(db, log),
			services.NewProductService(db, log),
			users,
		),
	}
}

func newRouter(cfg *config.Config, h controllers.Handlers, auth gin.HandlerFunc) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.CORSAllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	router.Use(cors.New(corsCfg))

	controllers.RegisterRoutes(router, h, auth)
	return router
}
