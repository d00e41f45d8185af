package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// BookingFlow is the client-facing booking wizard. Each flow owns exactly one
// config row per step.
type BookingFlow struct {
	ID                  uint                        `gorm:"primaryKey" json:"id"`
	Name                string                      `gorm:"not null" json:"name"`
	IsActive            bool                        `gorm:"not null;default:true" json:"is_active"`
	Settings            datatypes.JSONMap           `json:"settings,omitempty"`
	IntroConfig         *BookingIntroConfig         `gorm:"foreignKey:FlowID" json:"intro_config,omitempty"`
	DateConfig          *BookingDateConfig          `gorm:"foreignKey:FlowID" json:"date_config,omitempty"`
	QuestionnaireConfig *BookingQuestionnaireConfig `gorm:"foreignKey:FlowID" json:"questionnaire_config,omitempty"`
	PackageConfig       *BookingPackageConfig       `gorm:"foreignKey:FlowID" json:"package_config,omitempty"`
	AddonConfig         *BookingAddonConfig         `gorm:"foreignKey:FlowID" json:"addon_config,omitempty"`
	SummaryConfig       *BookingSummaryConfig       `gorm:"foreignKey:FlowID" json:"summary_config,omitempty"`
	PaymentConfig       *BookingPaymentConfig       `gorm:"foreignKey:FlowID" json:"payment_config,omitempty"`
	ConfirmationConfig  *BookingConfirmationConfig  `gorm:"foreignKey:FlowID" json:"confirmation_config,omitempty"`
	CreatedAt           time.Time                   `json:"created_at"`
	UpdatedAt           time.Time                   `json:"updated_at"`
}

func (BookingFlow) TableName() string {
	return "booking_flows"
}

type BookingIntroConfig struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	FlowID   uint   `gorm:"not null;uniqueIndex" json:"flow_id"`
	Title    string `gorm:"not null" json:"title"`
	Message  string `gorm:"type:text" json:"message"`
	ShowLogo bool   `gorm:"not null" json:"show_logo"`
}

func (BookingIntroConfig) TableName() string { return "booking_intro_configs" }

type BookingDateConfig struct {
	ID                 uint   `gorm:"primaryKey" json:"id"`
	FlowID             uint   `gorm:"not null;uniqueIndex" json:"flow_id"`
	Title              string `gorm:"not null" json:"title"`
	MinLeadDays        int    `gorm:"not null" json:"min_lead_days"`
	MaxAdvanceDays     int    `gorm:"not null" json:"max_advance_days"`
	AllowTimeSelection bool   `gorm:"not null" json:"allow_time_selection"`
}

func (BookingDateConfig) TableName() string { return "booking_date_configs" }

type BookingQuestionnaireConfig struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	FlowID          uint   `gorm:"not null;uniqueIndex" json:"flow_id"`
	Title           string `gorm:"not null" json:"title"`
	QuestionnaireID *uint  `json:"questionnaire_id,omitempty"`
	Required        bool   `gorm:"not null" json:"required"`
}

func (BookingQuestionnaireConfig) TableName() string { return "booking_questionnaire_configs" }

type BookingPackageConfig struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	FlowID        uint              `gorm:"not null;uniqueIndex" json:"flow_id"`
	Title         string            `gorm:"not null" json:"title"`
	AllowMultiple bool              `gorm:"not null" json:"allow_multiple"`
	Items         []BookingFlowItem `gorm:"-" json:"items,omitempty"`
}

func (BookingPackageConfig) TableName() string { return "booking_package_configs" }

type BookingAddonConfig struct {
	ID      uint              `gorm:"primaryKey" json:"id"`
	FlowID  uint              `gorm:"not null;uniqueIndex" json:"flow_id"`
	Title   string            `gorm:"not null" json:"title"`
	Enabled bool              `gorm:"not null" json:"enabled"`
	Items   []BookingFlowItem `gorm:"-" json:"items,omitempty"`
}

func (BookingAddonConfig) TableName() string { return "booking_addon_configs" }

type BookingSummaryConfig struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	FlowID     uint   `gorm:"not null;uniqueIndex" json:"flow_id"`
	Title      string `gorm:"not null" json:"title"`
	ShowPrices bool   `gorm:"not null" json:"show_prices"`
}

func (BookingSummaryConfig) TableName() string { return "booking_summary_configs" }

type BookingPaymentConfig struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	FlowID         uint            `gorm:"not null;uniqueIndex" json:"flow_id"`
	Title          string          `gorm:"not null" json:"title"`
	RequireDeposit bool            `gorm:"not null" json:"require_deposit"`
	DepositPercent decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"deposit_percent"`
	AcceptOnline   bool            `gorm:"not null" json:"accept_online"`
}

func (BookingPaymentConfig) TableName() string { return "booking_payment_configs" }

type BookingConfirmationConfig struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	FlowID      uint   `gorm:"not null;uniqueIndex" json:"flow_id"`
	Title       string `gorm:"not null" json:"title"`
	Message     string `gorm:"type:text" json:"message"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

func (BookingConfirmationConfig) TableName() string { return "booking_confirmation_configs" }

// BookingItemKind identifies which step config a BookingFlowItem belongs to.
type BookingItemKind string

const (
	BookingItemPackage BookingItemKind = "PACKAGE"
	BookingItemAddon   BookingItemKind = "ADDON"
)

// BookingFlowItem is a product offered on the package or addon step. Order
// is unique and dense within (ConfigKind, ConfigID).
type BookingFlowItem struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	ConfigKind BookingItemKind `gorm:"not null;uniqueIndex:idx_booking_item_position" json:"config_kind"`
	ConfigID   uint            `gorm:"not null;uniqueIndex:idx_booking_item_position" json:"config_id"`
	ProductID  uint            `gorm:"not null" json:"product_id"`
	Product    *Product        `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	Order      int             `gorm:"column:position;not null;uniqueIndex:idx_booking_item_position" json:"order"`
}

func (BookingFlowItem) TableName() string { return "booking_flow_items" }

// AllModels lists every persisted model for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&User{}, &Client{}, &ClientInvitation{}, &Product{},
		&WorkflowTemplate{}, &WorkflowStage{}, &Event{},
		&EventTimeline{}, &Activity{}, &Notification{}, &FollowUpReminder{}, &WorkflowTrigger{},
		&DiscountCode{}, &EventQuote{}, &QuoteLineItem{}, &QuoteOption{}, &QuoteOptionItem{},
		&QuoteTemplate{}, &QuoteTemplateProduct{},
		&Invoice{}, &InvoiceLineItem{},
		&PaymentPlan{}, &PaymentInstallment{}, &Payment{}, &PaymentRefund{},
		&ContractTemplate{}, &EventContract{},
		&Questionnaire{}, &QuestionnaireField{},
		&BookingFlow{}, &BookingIntroConfig{}, &BookingDateConfig{}, &BookingQuestionnaireConfig{},
		&BookingPackageConfig{}, &BookingAddonConfig{}, &BookingSummaryConfig{},
		&BookingPaymentConfig{}, &BookingConfirmationConfig{}, &BookingFlowItem{},
		&Note{},
	}
}
