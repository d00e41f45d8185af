package integration

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/controllers"
	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/services"
	"github.com/kendall-kelly/eventflow-api/tests/testutil"
)

// apiSuite wires every handler over a fresh in-memory database per test,
// with local collaborators standing in for SES, S3 and the payment gateway.
type apiSuite struct {
	suite.Suite
	router *gin.Engine
	db     *gorm.DB
	email  *services.MockEmailSender
	docs   *services.MockDocumentStore
}

func (s *apiSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	testutil.RequireTestEnvironment(s.T())
}

func (s *apiSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.email = services.NewMockEmailSender()
	s.docs = services.NewMockDocumentStore()

	log := zerolog.Nop()
	seq := services.NewSequencer(services.DefaultReorderMargin)
	notifier := services.NewNotifier(s.email, log)

	users := services.NewUserService(s.db, services.NewAuth0Client("test.auth0.com", log), log)
	workflows := services.NewWorkflowService(s.db, seq, log)
	events := services.NewEventService(s.db, workflows, log)
	quotes := services.NewQuoteService(s.db, notifier, d("0"), log)
	invoices := services.NewInvoiceService(s.db, notifier, d("0"), log)
	payments := services.NewPaymentService(s.db, notifier, invoices, workflows, services.NewMockPaymentGateway(), log)

	h := controllers.Handlers{
		DB:             s.db,
		Users:          controllers.NewUserHandler(users),
		Events:         controllers.NewEventHandler(events, workflows, users),
		Workflows:      controllers.NewWorkflowHandler(workflows, users),
		Quotes:         controllers.NewQuoteHandler(quotes, users),
		QuoteTemplates: controllers.NewQuoteTemplateHandler(services.NewQuoteTemplateService(s.db, seq, d("0"), log), users),
		Invoices:       controllers.NewInvoiceHandler(invoices, users),
		Payments:       controllers.NewPaymentHandler(payments, services.NewPaymentPlanService(s.db, log), users),
		Contracts:      controllers.NewContractHandler(services.NewContractService(s.db, notifier, s.docs, log), users),
		Questionnaires: controllers.NewQuestionnaireHandler(services.NewQuestionnaireService(s.db, seq, log)),
		BookingFlows:   controllers.NewBookingFlowHandler(services.NewBookingFlowService(s.db, seq, log)),
		CRM: controllers.NewCRMHandler(
			services.NewClientService(s.db, notifier, log),
			services.NewNoteService(s.db, log),
			services.NewDiscountService(s.db, log),
			services.NewProductService(s.db, log),
			users,
		),
	}

	s.router = gin.New()
	controllers.RegisterRoutes(s.router, h, testutil.MockAuth("auth0|owner", services.RoleOwner, "Olivia Owner"))
}

// call sends an authenticated request, requires status and decodes the
// data payload into out.
func (s *apiSuite) call(method, path string, body interface{}, status int, out interface{}) {
	s.T().Helper()
	w := testutil.DoJSON(s.T(), s.router, method, path, body)
	resp := testutil.ExpectStatus(s.T(), w, status, out)
	s.Equal(status < 300, resp.Success, "body: %s", w.Body.String())
}

// fail sends a request expected to be rejected and returns its error code.
func (s *apiSuite) fail(method, path string, body interface{}, status int) string {
	s.T().Helper()
	w := testutil.DoJSON(s.T(), s.router, method, path, body)
	s.Require().Equal(status, w.Code, "body: %s", w.Body.String())
	return testutil.ErrorCode(s.T(), w)
}

func (s *apiSuite) createClient(name, email string) models.Client {
	var client models.Client
	s.call(http.MethodPost, "/api/v1/clients", gin.H{"name": name, "email": email}, http.StatusCreated, &client)
	return client
}

func (s *apiSuite) createEvent(body gin.H) models.Event {
	var event models.Event
	s.call(http.MethodPost, "/api/v1/events", body, http.StatusCreated, &event)
	return event
}

func (s *apiSuite) getEvent(id uint) models.Event {
	var event models.Event
	s.call(http.MethodGet, fmt.Sprintf("/api/v1/events/%d", id), nil, http.StatusOK, &event)
	return event
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
