package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var ErrMissingMercadoPagoAccessToken = errors.New("missing MERCADOPAGO_ACCESS_TOKEN")

// ChargeRequest is a card charge for an existing pending payment.
type ChargeRequest struct {
	Amount            decimal.Decimal
	Description       string
	PaymentMethodID   string
	Token             string
	Installments      int
	PayerEmail        string
	ExternalReference string
}

// ChargeResult is the provider's answer to a charge.
type ChargeResult struct {
	ProviderID string
	Status     string
	Detail     string
}

// Approved reports whether the provider captured the money.
func (r ChargeResult) Approved() bool {
	return r.Status == "approved"
}

// PaymentGateway charges cards through an external provider.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// MercadoPagoGateway charges cards through Mercado Pago.
type MercadoPagoGateway struct {
	client payment.Client
	log    zerolog.Logger
}

func NewMercadoPagoGateway(accessToken string, log zerolog.Logger) (*MercadoPagoGateway, error) {
	if accessToken == "" {
		return nil, ErrMissingMercadoPagoAccessToken
	}
	cfg, err := config.New(accessToken)
	if err != nil {
		return nil, err
	}
	return &MercadoPagoGateway{client: payment.NewClient(cfg), log: log}, nil
}

func (g *MercadoPagoGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	installments := req.Installments
	if installments < 1 {
		installments = 1
	}
	amount, _ := req.Amount.Float64()

	resp, err := g.client.Create(ctx, payment.Request{
		TransactionAmount: amount,
		Description:       req.Description,
		PaymentMethodID:   req.PaymentMethodID,
		Token:             req.Token,
		Installments:      installments,
		ExternalReference: req.ExternalReference,
		Payer:             &payment.PayerRequest{Email: req.PayerEmail},
	})
	if err != nil {
		g.log.Warn().Err(err).Str("reference", req.ExternalReference).Msg("payment gateway: create failed")
		return ChargeResult{}, err
	}

	g.log.Info().
		Int("provider_payment_id", resp.ID).
		Str("status", resp.Status).
		Str("reference", req.ExternalReference).
		Msg("payment gateway: charge processed")
	return ChargeResult{
		ProviderID: strconv.Itoa(resp.ID),
		Status:     resp.Status,
		Detail:     resp.StatusDetail,
	}, nil
}
