package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

func newBookingFlowService(t *testing.T) (*BookingFlowService, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	return NewBookingFlowService(db, NewSequencer(DefaultReorderMargin), testLog), db
}

func itemProducts(items []models.BookingFlowItem) []uint {
	ids := make([]uint, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	return ids
}

func TestCreateFlowUsesDefaults(t *testing.T) {
	svc, _ := newBookingFlowService(t)

	flow, err := svc.CreateFlow(testCtx, CreateBookingFlowRequest{Name: "Weddings"})
	require.NoError(t, err)
	assert.True(t, flow.IsActive)

	require.NotNil(t, flow.IntroConfig)
	require.NotNil(t, flow.DateConfig)
	require.NotNil(t, flow.QuestionnaireConfig)
	require.NotNil(t, flow.PackageConfig)
	require.NotNil(t, flow.AddonConfig)
	require.NotNil(t, flow.SummaryConfig)
	require.NotNil(t, flow.PaymentConfig)
	require.NotNil(t, flow.ConfirmationConfig)

	assert.Equal(t, "Welcome", flow.IntroConfig.Title)
	assert.True(t, flow.IntroConfig.ShowLogo)
	assert.Equal(t, 7, flow.DateConfig.MinLeadDays)
	assert.Equal(t, 365, flow.DateConfig.MaxAdvanceDays)
	assert.True(t, flow.QuestionnaireConfig.Required)
	assert.Nil(t, flow.QuestionnaireConfig.QuestionnaireID)
	assert.True(t, flow.AddonConfig.Enabled)
	assert.True(t, flow.PaymentConfig.RequireDeposit)
	assert.True(t, d("25").Equal(flow.PaymentConfig.DepositPercent))
	assert.Empty(t, flow.PackageConfig.Items)
}

func TestCreateFlowAppliesOverrides(t *testing.T) {
	svc, db := newBookingFlowService(t)
	q := models.Questionnaire{Name: "Intake"}
	require.NoError(t, db.Create(&q).Error)

	flow, err := svc.CreateFlow(testCtx, CreateBookingFlowRequest{
		Name:          "Portraits",
		Intro:         IntroOverrides{Title: strp("Hi there"), ShowLogo: boolp(false)},
		Date:          DateOverrides{MinLeadDays: intp(0), MaxAdvanceDays: intp(90)},
		Questionnaire: QuestionnaireOverrides{QuestionnaireID: &q.ID, Required: boolp(false)},
		Addon:         AddonOverrides{Enabled: boolp(false)},
		Payment:       PaymentOverrides{RequireDeposit: boolp(false), DepositPercent: dp("50")},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hi there", flow.IntroConfig.Title)
	assert.False(t, flow.IntroConfig.ShowLogo)
	assert.Equal(t, 0, flow.DateConfig.MinLeadDays)
	assert.Equal(t, 90, flow.DateConfig.MaxAdvanceDays)
	require.NotNil(t, flow.QuestionnaireConfig.QuestionnaireID)
	assert.Equal(t, q.ID, *flow.QuestionnaireConfig.QuestionnaireID)
	assert.False(t, flow.QuestionnaireConfig.Required)
	assert.False(t, flow.AddonConfig.Enabled)
	assert.False(t, flow.PaymentConfig.RequireDeposit)
	assert.True(t, d("50").Equal(flow.PaymentConfig.DepositPercent))
}

func TestCreateFlowValidation(t *testing.T) {
	svc, db := newBookingFlowService(t)

	_, err := svc.CreateFlow(testCtx, CreateBookingFlowRequest{})
	requireKind(t, err, KindValidation, CodeValidation)

	_, err = svc.CreateFlow(testCtx, CreateBookingFlowRequest{Name: "x", Payment: PaymentOverrides{DepositPercent: dp("101")}})
	requireKind(t, err, KindValidation, CodeValidation)

	_, err = svc.CreateFlow(testCtx, CreateBookingFlowRequest{Name: "x", Date: DateOverrides{MinLeadDays: intp(30), MaxAdvanceDays: intp(10)}})
	requireKind(t, err, KindValidation, CodeInvalidDateRange)

	missing := uint(9999)
	_, err = svc.CreateFlow(testCtx, CreateBookingFlowRequest{Name: "x", Questionnaire: QuestionnaireOverrides{QuestionnaireID: &missing}})
	requireKind(t, err, KindNotFound, "QUESTIONNAIRE_NOT_FOUND")

	var flows int64
	require.NoError(t, db.Model(&models.BookingFlow{}).Count(&flows).Error)
	assert.Zero(t, flows, "a failed create must not leave a partial flow")
}

func TestBookingItemsStayDense(t *testing.T) {
	svc, _ := newBookingFlowService(t)
	flow, err := svc.CreateFlow(testCtx, CreateBookingFlowRequest{Name: "Weddings"})
	require.NoError(t, err)

	var products []uint
	for _, name := range []string{"Bronze", "Silver", "Gold"} {
		p := createTestProduct(t, svc.db, name, "100")
		_, err := svc.AddItem(testCtx, flow.ID, models.BookingItemPackage, p.ID, nil)
		require.NoError(t, err)
		products = append(products, p.ID)
	}

	platinum := createTestProduct(t, svc.db, "Platinum", "900")
	item, err := svc.AddItem(testCtx, flow.ID, models.BookingItemPackage, platinum.ID, intp(1))
	require.NoError(t, err)
	assert.Equal(t, 1, item.Order)
	require.NotNil(t, item.Product)
	assert.Equal(t, "Platinum", item.Product.Name)

	got, err := svc.GetFlow(testCtx, flow.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{platinum.ID, products[0], products[1], products[2]}, itemProducts(got.PackageConfig.Items))
	assert.Empty(t, got.AddonConfig.Items)

	moved, err := svc.MoveItem(testCtx, item.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, moved.Order)

	require.NoError(t, svc.RemoveItem(testCtx, got.PackageConfig.Items[1].ID))
	got, err = svc.GetFlow(testCtx, flow.ID)
	require.NoError(t, err)
	require.Len(t, got.PackageConfig.Items, 3)
	for i, it := range got.PackageConfig.Items {
		assert.Equal(t, i+1, it.Order)
	}
	assert.Equal(t, []uint{products[1], products[2], platinum.ID}, itemProducts(got.PackageConfig.Items))
}

func TestReorderBookingItems(t *testing.T) {
	svc, _ := newBookingFlowService(t)
	flow, err := svc.CreateFlow(testCtx, CreateBookingFlowRequest{Name: "Weddings"})
	require.NoError(t, err)

	var items []*models.BookingFlowItem
	for _, name := range []string{"Album", "Drone", "Second shooter"} {
		p := createTestProduct(t, svc.db, name, "50")
		item, err := svc.AddItem(testCtx, flow.ID, models.BookingItemAddon, p.ID, nil)
		require.NoError(t, err)
		items = append(items, item)
	}

	got, err := svc.ReorderItems(testCtx, flow.ID, models.BookingItemAddon, map[uint]int{
		items[0].ID: 3,
		items[1].ID: 1,
		items[2].ID: 2,
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, items[1].ID, got[0].ID)
	assert.Equal(t, items[2].ID, got[1].ID)
	assert.Equal(t, items[0].ID, got[2].ID)

	_, err = svc.ReorderItems(testCtx, flow.ID, models.BookingItemAddon, map[uint]int{items[0].ID: 1, items[1].ID: 1})
	requireKind(t, err, KindConstraintViolation, CodeDuplicatePosition)

	_, err = svc.ReorderItems(testCtx, flow.ID, "EXTRAS", map[uint]int{items[0].ID: 1})
	requireKind(t, err, KindValidation, CodeValidation)
}

func TestBookingItemValidation(t *testing.T) {
	svc, _ := newBookingFlowService(t)
	flow, err := svc.CreateFlow(testCtx, CreateBookingFlowRequest{Name: "Weddings"})
	require.NoError(t, err)
	p := createTestProduct(t, svc.db, "Bronze", "100")

	_, err = svc.AddItem(testCtx, flow.ID, models.BookingItemPackage, p.ID, intp(0))
	requireKind(t, err, KindValidation, CodeValidation)

	_, err = svc.AddItem(testCtx, flow.ID, models.BookingItemPackage, 9999, nil)
	requireKind(t, err, KindNotFound, "PRODUCT_NOT_FOUND")

	_, err = svc.AddItem(testCtx, 9999, models.BookingItemPackage, p.ID, nil)
	requireKind(t, err, KindNotFound, "BOOKING_FLOW_NOT_FOUND")

	err = svc.RemoveItem(testCtx, 9999)
	requireKind(t, err, KindNotFound, "BOOKING_ITEM_NOT_FOUND")
}

func TestDeleteFlowRemovesSteps(t *testing.T) {
	svc, db := newBookingFlowService(t)
	flow, err := svc.CreateFlow(testCtx, CreateBookingFlowRequest{Name: "Weddings"})
	require.NoError(t, err)
	p := createTestProduct(t, db, "Bronze", "100")
	_, err = svc.AddItem(testCtx, flow.ID, models.BookingItemPackage, p.ID, nil)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFlow(testCtx, flow.ID))

	for _, m := range []interface{}{&models.BookingFlow{}, &models.BookingFlowItem{}, &models.BookingPaymentConfig{}, &models.BookingIntroConfig{}} {
		var n int64
		require.NoError(t, db.Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T rows left behind", m)
	}

	_, err = svc.GetFlow(testCtx, flow.ID)
	requireKind(t, err, KindNotFound, "BOOKING_FLOW_NOT_FOUND")
}
