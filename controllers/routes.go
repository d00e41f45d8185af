package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/middleware"
	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/services"
)

// ScopeChargePayments must be granted to a token before it can charge a
// card through the payment gateway.
const ScopeChargePayments = "charge:payments"

// Handlers bundles every handler mounted by RegisterRoutes.
type Handlers struct {
	DB             *gorm.DB
	Users          *UserHandler
	Events         *EventHandler
	Workflows      *WorkflowHandler
	Quotes         *QuoteHandler
	QuoteTemplates *QuoteTemplateHandler
	Invoices       *InvoiceHandler
	Payments       *PaymentHandler
	Contracts      *ContractHandler
	Questionnaires *QuestionnaireHandler
	BookingFlows   *BookingFlowHandler
	CRM            *CRMHandler
}

// RegisterRoutes mounts the API under /api/v1. Everything except the health
// checks and invitation acceptance sits behind auth.
func RegisterRoutes(r gin.IRouter, h Handlers, auth gin.HandlerFunc) {
	v1 := r.Group("/api/v1")
	v1.GET("/health", healthCheck)
	v1.GET("/database/status", databaseStatus(h.DB))
	v1.POST("/invitations/:token/accept", h.CRM.AcceptInvitation)

	api := v1.Group("", auth)
	owner := middleware.RequireRole(services.RoleOwner)

	api.POST("/users", h.Users.CreateUser)
	api.GET("/users/me", h.Users.GetMyProfile)
	api.PUT("/users/me", h.Users.UpdateMyProfile)

	api.POST("/events", h.Events.CreateEvent)
	api.GET("/events", h.Events.ListEvents)
	api.GET("/events/:id", h.Events.GetEvent)
	api.PATCH("/events/:id/status", h.Events.SetStatus)
	api.POST("/events/:id/stage", h.Events.ApplyStage)
	api.GET("/events/:id/timeline", h.Events.Timeline)
	api.GET("/events/:id/activities", h.Events.Activities)

	api.POST("/workflow-templates", owner, h.Workflows.CreateTemplate)
	api.GET("/workflow-templates", h.Workflows.ListTemplates)
	api.GET("/workflow-templates/:id", h.Workflows.GetTemplate)
	api.DELETE("/workflow-templates/:id", owner, h.Workflows.DeleteTemplate)
	api.POST("/workflow-templates/:id/stages", owner, h.Workflows.CreateStage)
	api.POST("/workflow-templates/:id/stages/reorder", owner, h.Workflows.ReorderStages)
	api.PATCH("/workflow-stages/:id", owner, h.Workflows.UpdateStage)
	api.DELETE("/workflow-stages/:id", owner, h.Workflows.DeleteStage)
	api.POST("/workflow-stages/:id/move", owner, h.Workflows.MoveStage)

	api.POST("/events/:id/quotes", h.Quotes.CreateQuote)
	api.GET("/events/:id/quotes", h.Quotes.ListQuotes)
	api.GET("/quotes/:id", h.Quotes.GetQuote)
	api.DELETE("/quotes/:id", h.Quotes.DeleteQuote)
	api.POST("/quotes/:id/line-items", h.Quotes.AddLineItem)
	api.PATCH("/quote-line-items/:id", h.Quotes.UpdateLineItem)
	api.DELETE("/quote-line-items/:id", h.Quotes.DeleteLineItem)
	api.POST("/quotes/:id/discount", h.Quotes.ApplyDiscount)
	api.DELETE("/quotes/:id/discount", h.Quotes.RemoveDiscount)
	api.POST("/quotes/:id/send", h.Quotes.Send)
	api.POST("/quotes/:id/accept", h.Quotes.Accept)
	api.POST("/quotes/:id/reject", h.Quotes.Reject)
	api.POST("/quotes/:id/expire", h.Quotes.Expire)
	api.POST("/quotes/:id/versions", h.Quotes.NextVersion)
	api.POST("/quotes/:id/options", h.Quotes.AddOption)
	api.POST("/quote-options/:id/items", h.Quotes.AddOptionItem)
	api.POST("/quote-options/:id/select", h.Quotes.SelectOption)
	api.POST("/quotes/:id/invoice", h.Invoices.CreateFromQuote)

	api.POST("/quote-templates", owner, h.QuoteTemplates.CreateTemplate)
	api.GET("/quote-templates", h.QuoteTemplates.ListTemplates)
	api.GET("/quote-templates/:id", h.QuoteTemplates.GetTemplate)
	api.DELETE("/quote-templates/:id", owner, h.QuoteTemplates.DeleteTemplate)
	api.POST("/quote-templates/:id/products", owner, h.QuoteTemplates.AddProduct)
	api.POST("/quote-templates/:id/products/reorder", owner, h.QuoteTemplates.ReorderProducts)
	api.POST("/quote-templates/:id/apply", h.QuoteTemplates.Apply)
	api.DELETE("/quote-template-products/:id", owner, h.QuoteTemplates.RemoveProduct)
	api.POST("/quote-template-products/:id/move", owner, h.QuoteTemplates.MoveProduct)

	api.POST("/events/:id/invoices", h.Invoices.CreateInvoice)
	api.GET("/events/:id/invoices", h.Invoices.ListInvoices)
	api.GET("/invoices/:id", h.Invoices.GetInvoice)
	api.POST("/invoices/:id/line-items", h.Invoices.AddLineItem)
	api.PATCH("/invoice-line-items/:id", h.Invoices.UpdateLineItem)
	api.DELETE("/invoice-line-items/:id", h.Invoices.DeleteLineItem)
	api.POST("/invoices/:id/issue", h.Invoices.Issue)
	api.POST("/invoices/:id/mark-paid", h.Invoices.MarkPaid)
	api.POST("/invoices/:id/void", h.Invoices.Void)
	api.POST("/invoices/:id/cancel", h.Invoices.Cancel)

	api.POST("/events/:id/payments", h.Payments.CreatePayment)
	api.GET("/events/:id/payments", h.Payments.ListPayments)
	api.GET("/payments/:id", h.Payments.GetPayment)
	api.PATCH("/payments/:id", h.Payments.UpdatePayment)
	api.POST("/payments/:id/complete", h.Payments.Complete)
	api.POST("/payments/:id/fail", h.Payments.Fail)
	api.POST("/payments/:id/refunds", h.Payments.Refund)
	api.POST("/payments/:id/charge", middleware.RequireScope(ScopeChargePayments), h.Payments.Charge)
	api.POST("/events/:id/payment-plans", h.Payments.CreatePlan)
	api.GET("/payment-plans/:id", h.Payments.GetPlan)
	api.GET("/payment-plans/:id/summary", h.Payments.PlanSummary)

	api.POST("/contract-templates", owner, h.Contracts.CreateTemplate)
	api.GET("/contract-templates", h.Contracts.ListTemplates)
	api.POST("/events/:id/contracts", h.Contracts.CreateContract)
	api.GET("/events/:id/contracts", h.Contracts.ListContracts)
	api.GET("/contracts/:id", h.Contracts.GetContract)
	api.PATCH("/contracts/:id/status", h.Contracts.SetStatus)
	api.POST("/contracts/:id/sign", h.Contracts.Sign)
	api.GET("/contracts/:id/document", h.Contracts.Document)

	api.POST("/questionnaires", owner, h.Questionnaires.CreateQuestionnaire)
	api.GET("/questionnaires", h.Questionnaires.ListQuestionnaires)
	api.GET("/questionnaires/:id", h.Questionnaires.GetQuestionnaire)
	api.DELETE("/questionnaires/:id", owner, h.Questionnaires.DeleteQuestionnaire)
	api.POST("/questionnaires/:id/fields", owner, h.Questionnaires.CreateField)
	api.POST("/questionnaires/:id/fields/reorder", owner, h.Questionnaires.ReorderFields)
	api.PATCH("/questionnaire-fields/:id", owner, h.Questionnaires.UpdateField)
	api.DELETE("/questionnaire-fields/:id", owner, h.Questionnaires.DeleteField)
	api.POST("/questionnaire-fields/:id/move", owner, h.Questionnaires.MoveField)

	api.POST("/booking-flows", owner, h.BookingFlows.CreateFlow)
	api.GET("/booking-flows", h.BookingFlows.ListFlows)
	api.GET("/booking-flows/:id", h.BookingFlows.GetFlow)
	api.DELETE("/booking-flows/:id", owner, h.BookingFlows.DeleteFlow)
	api.POST("/booking-flows/:id/items", owner, h.BookingFlows.AddItem)
	api.POST("/booking-flows/:id/items/reorder", owner, h.BookingFlows.ReorderItems)
	api.DELETE("/booking-flow-items/:id", owner, h.BookingFlows.RemoveItem)
	api.POST("/booking-flow-items/:id/move", owner, h.BookingFlows.MoveItem)

	api.POST("/clients", h.CRM.CreateClient)
	api.GET("/clients", h.CRM.ListClients)
	api.GET("/clients/:id", h.CRM.GetClient)
	api.PATCH("/clients/:id", h.CRM.UpdateClient)
	api.DELETE("/clients/:id", owner, h.CRM.DeleteClient)
	api.POST("/clients/:id/invitations", h.CRM.InviteClient)
	api.GET("/clients/:id/invitations", h.CRM.ListInvitations)

	noteTargets := map[string]models.NoteTargetKind{
		"events":    models.NoteTargetEvent,
		"clients":   models.NoteTargetClient,
		"quotes":    models.NoteTargetQuote,
		"invoices":  models.NoteTargetInvoice,
		"contracts": models.NoteTargetContract,
	}
	for prefix, kind := range noteTargets {
		api.POST("/"+prefix+"/:id/notes", h.CRM.CreateNote(kind))
		api.GET("/"+prefix+"/:id/notes", h.CRM.ListNotes(kind))
	}
	api.PATCH("/notes/:id", h.CRM.UpdateNote)
	api.DELETE("/notes/:id", h.CRM.DeleteNote)

	api.POST("/discount-codes", owner, h.CRM.CreateDiscount)
	api.GET("/discount-codes", h.CRM.ListDiscounts)
	api.GET("/discount-codes/lookup/:code", h.CRM.LookupDiscount)
	api.GET("/discount-codes/:id", h.CRM.GetDiscount)
	api.PATCH("/discount-codes/:id", owner, h.CRM.UpdateDiscount)
	api.DELETE("/discount-codes/:id", owner, h.CRM.DeleteDiscount)

	api.POST("/products", owner, h.CRM.CreateProduct)
	api.GET("/products", h.CRM.ListProducts)
	api.GET("/products/:id", h.CRM.GetProduct)
	api.PATCH("/products/:id", owner, h.CRM.UpdateProduct)
	api.DELETE("/products/:id", owner, h.CRM.DeleteProduct)
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "EventFlow API is running",
	})
}

// databaseStatus pings the database behind the API.
func databaseStatus(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusInternalServerError, errorBody("DATABASE_ERROR", "Database is not configured"))
			return
		}
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusInternalServerError, errorBody("DATABASE_ERROR", "Failed to get database instance"))
			return
		}
		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, errorBody("DATABASE_CONNECTION_ERROR", "Database connection failed"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Database connected",
		})
	}
}
