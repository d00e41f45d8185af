package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

type workflowFixture struct {
	db        *gorm.DB
	workflows *WorkflowService
	events    *EventService
	tpl       *models.WorkflowTemplate
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	db := setupTestDB(t)
	workflows := NewWorkflowService(db, NewSequencer(DefaultReorderMargin), testLog)
	tpl, err := workflows.CreateTemplate(testCtx, CreateTemplateRequest{Name: "Wedding"})
	require.NoError(t, err)
	return &workflowFixture{
		db:        db,
		workflows: workflows,
		events:    NewEventService(db, workflows, testLog),
		tpl:       tpl,
	}
}

func (f *workflowFixture) stage(t *testing.T, typ models.StageType, name string) *models.WorkflowStage {
	t.Helper()
	s, err := f.workflows.CreateStage(testCtx, f.tpl.ID, StageInput{Stage: typ, Name: name})
	require.NoError(t, err)
	return s
}

func (f *workflowFixture) order(t *testing.T, typ models.StageType) []uint {
	t.Helper()
	var stages []models.WorkflowStage
	require.NoError(t, f.db.Where("workflow_template_id = ? AND stage = ?", f.tpl.ID, typ).
		Order("position ASC").Find(&stages).Error)
	ids := make([]uint, len(stages))
	for i, s := range stages {
		require.Equal(t, i+1, s.Order, "positions are not dense: %+v", stages)
		ids[i] = s.ID
	}
	return ids
}

func (f *workflowFixture) position(t *testing.T, id uint) int {
	t.Helper()
	var s models.WorkflowStage
	require.NoError(t, f.db.First(&s, id).Error)
	return s.Order
}

// The (template, stage, position) unique index rejects any statement that
// would persist a duplicate, so a clean commit proves no collision occurred.
func TestReorderStagesAvoidsCollisions(t *testing.T) {
	f := newWorkflowFixture(t)
	s1 := f.stage(t, models.StageLead, "Inquiry")
	s2 := f.stage(t, models.StageLead, "Consultation")
	s3 := f.stage(t, models.StageLead, "Proposal")
	prod := f.stage(t, models.StageProduction, "Shoot")

	stages, err := f.workflows.ReorderStages(testCtx, f.tpl.ID, models.StageLead, map[uint]int{s1.ID: 3, s2.ID: 1, s3.ID: 2})
	require.NoError(t, err)
	require.Len(t, stages, 3)

	assert.Equal(t, 3, f.position(t, s1.ID))
	assert.Equal(t, 1, f.position(t, s2.ID))
	assert.Equal(t, 2, f.position(t, s3.ID))
	assert.Equal(t, 1, f.position(t, prod.ID))
}

func TestReorderStagesRejectsUnknownStageType(t *testing.T) {
	f := newWorkflowFixture(t)
	_, err := f.workflows.ReorderStages(testCtx, f.tpl.ID, models.StageType("DELIVERY"), map[uint]int{1: 1})
	requireKind(t, err, KindValidation, CodeValidation)
}

func TestReorderStagesIgnoresStagesOfOtherPartition(t *testing.T) {
	f := newWorkflowFixture(t)
	f.stage(t, models.StageLead, "Inquiry")
	prod := f.stage(t, models.StageProduction, "Shoot")

	_, err := f.workflows.ReorderStages(testCtx, f.tpl.ID, models.StageLead, map[uint]int{prod.ID: 1})
	requireKind(t, err, KindNotFound, "")
}

func TestCreateStageValidation(t *testing.T) {
	f := newWorkflowFixture(t)

	_, err := f.workflows.CreateStage(testCtx, f.tpl.ID, StageInput{Stage: "DELIVERY", Name: "x"})
	requireKind(t, err, KindValidation, CodeValidation)

	_, err = f.workflows.CreateStage(testCtx, f.tpl.ID, StageInput{Stage: models.StageLead, Name: ""})
	requireKind(t, err, KindValidation, CodeValidation)

	_, err = f.workflows.CreateStage(testCtx, f.tpl.ID, StageInput{Stage: models.StageLead, Name: "x", AdvancementCriteria: "MOON_PHASE"})
	requireKind(t, err, KindValidation, CodeValidation)

	_, err = f.workflows.CreateStage(testCtx, 9999, StageInput{Stage: models.StageLead, Name: "x"})
	requireKind(t, err, KindNotFound, "WORKFLOW_TEMPLATE_NOT_FOUND")
}

func TestCreateStageAtPosition(t *testing.T) {
	f := newWorkflowFixture(t)
	a := f.stage(t, models.StageLead, "A")
	b := f.stage(t, models.StageLead, "B")

	c, err := f.workflows.CreateStage(testCtx, f.tpl.ID, StageInput{Stage: models.StageLead, Name: "C", Order: intp(1)})
	require.NoError(t, err)
	assert.Equal(t, 1, c.Order)
	assert.Equal(t, []uint{c.ID, a.ID, b.ID}, f.order(t, models.StageLead))
}

func TestUpdateStageMovesAcrossPartitions(t *testing.T) {
	f := newWorkflowFixture(t)
	a := f.stage(t, models.StageLead, "A")
	b := f.stage(t, models.StageLead, "B")
	c := f.stage(t, models.StageLead, "C")
	x := f.stage(t, models.StageProduction, "X")
	y := f.stage(t, models.StageProduction, "Y")

	prod := models.StageProduction
	moved, err := f.workflows.UpdateStage(testCtx, b.ID, UpdateStageRequest{Stage: &prod, Order: intp(1)})
	require.NoError(t, err)
	assert.Equal(t, models.StageProduction, moved.Stage)
	assert.Equal(t, 1, moved.Order)

	assert.Equal(t, []uint{a.ID, c.ID}, f.order(t, models.StageLead))
	assert.Equal(t, []uint{b.ID, x.ID, y.ID}, f.order(t, models.StageProduction))
}

func TestUpdateStageChangeOfTypeWithoutOrderAppends(t *testing.T) {
	f := newWorkflowFixture(t)
	a := f.stage(t, models.StageLead, "A")
	x := f.stage(t, models.StageProduction, "X")

	prod := models.StageProduction
	moved, err := f.workflows.UpdateStage(testCtx, a.ID, UpdateStageRequest{Stage: &prod, Name: strp("A2")})
	require.NoError(t, err)
	assert.Equal(t, 2, moved.Order)
	assert.Equal(t, "A2", moved.Name)
	assert.Empty(t, f.order(t, models.StageLead))
	assert.Equal(t, []uint{x.ID, a.ID}, f.order(t, models.StageProduction))
}

func TestDeleteStageCompactsAndDetachesEvents(t *testing.T) {
	f := newWorkflowFixture(t)
	a := f.stage(t, models.StageLead, "A")
	b := f.stage(t, models.StageLead, "B")
	c := f.stage(t, models.StageLead, "C")

	event, err := f.events.CreateEvent(testCtx, CreateEventRequest{Name: "Smith wedding", WorkflowTemplateID: &f.tpl.ID}, testActor)
	require.NoError(t, err)
	require.NotNil(t, event.CurrentStageID)
	assert.Equal(t, a.ID, *event.CurrentStageID)

	require.NoError(t, f.workflows.DeleteStage(testCtx, a.ID))
	assert.Equal(t, []uint{b.ID, c.ID}, f.order(t, models.StageLead))

	reloaded, err := f.events.GetEvent(testCtx, event.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.CurrentStageID)
}

func TestGetTemplateSortsByStageTypeThenOrder(t *testing.T) {
	f := newWorkflowFixture(t)
	post := f.stage(t, models.StagePostProduction, "Deliver")
	prod := f.stage(t, models.StageProduction, "Shoot")
	lead2 := f.stage(t, models.StageLead, "Consult")
	lead1, err := f.workflows.CreateStage(testCtx, f.tpl.ID, StageInput{Stage: models.StageLead, Name: "Inquiry", Order: intp(1)})
	require.NoError(t, err)

	tpl, err := f.workflows.GetTemplate(testCtx, f.tpl.ID)
	require.NoError(t, err)
	require.Len(t, tpl.Stages, 4)

	got := []uint{tpl.Stages[0].ID, tpl.Stages[1].ID, tpl.Stages[2].ID, tpl.Stages[3].ID}
	assert.Equal(t, []uint{lead1.ID, lead2.ID, prod.ID, post.ID}, got)
}

func TestCreateEventStartsInFirstStage(t *testing.T) {
	f := newWorkflowFixture(t)
	f.stage(t, models.StageProduction, "Shoot")
	lead := f.stage(t, models.StageLead, "Inquiry")

	event, err := f.events.CreateEvent(testCtx, CreateEventRequest{Name: "Lee portraits", WorkflowTemplateID: &f.tpl.ID}, testActor)
	require.NoError(t, err)
	require.NotNil(t, event.CurrentStageID)
	assert.Equal(t, lead.ID, *event.CurrentStageID)

	timeline, err := f.events.Timeline(testCtx, event.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, models.TimelineStageChanged, timeline[0].Kind)
	assert.Equal(t, "Inquiry", timeline[0].ToStage)
	assert.Empty(t, timeline[0].FromStage)
}

func TestApplyStage(t *testing.T) {
	f := newWorkflowFixture(t)
	lead := f.stage(t, models.StageLead, "Inquiry")
	prod := f.stage(t, models.StageProduction, "Shoot")

	other, err := f.workflows.CreateTemplate(testCtx, CreateTemplateRequest{Name: "Portrait"})
	require.NoError(t, err)
	foreign, err := f.workflows.CreateStage(testCtx, other.ID, StageInput{Stage: models.StageLead, Name: "Other"})
	require.NoError(t, err)

	event, err := f.events.CreateEvent(testCtx, CreateEventRequest{Name: "Smith wedding", WorkflowTemplateID: &f.tpl.ID}, testActor)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, *event.CurrentStageID)

	_, err = f.workflows.ApplyStage(testCtx, event.ID, foreign.ID, testActor)
	requireKind(t, err, KindValidation, CodeStageNotInWorkflow)

	updated, err := f.workflows.ApplyStage(testCtx, event.ID, prod.ID, testActor)
	require.NoError(t, err)
	assert.Equal(t, prod.ID, *updated.CurrentStageID)

	timeline, err := f.events.Timeline(testCtx, event.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 2)
	assert.Equal(t, "Inquiry", timeline[1].FromStage)
	assert.Equal(t, "Shoot", timeline[1].ToStage)
	assert.Equal(t, testActor.Name, timeline[1].ActorName)

	_, err = f.workflows.ApplyStage(testCtx, event.ID, prod.ID, testActor)
	require.NoError(t, err)
	timeline, err = f.events.Timeline(testCtx, event.ID)
	require.NoError(t, err)
	assert.Len(t, timeline, 2, "re-applying the current stage must not add history")
}

func advance(t *testing.T, f *workflowFixture, eventID uint) bool {
	t.Helper()
	var advanced bool
	err := f.db.Transaction(func(tx *gorm.DB) error {
		event, err := lockEvent(tx, eventID)
		if err != nil {
			return err
		}
		advanced, err = f.workflows.AdvanceOnPayment(tx, event, models.SystemActor)
		return err
	})
	require.NoError(t, err)
	return advanced
}

func TestAdvanceOnPaymentHonoursCriteria(t *testing.T) {
	f := newWorkflowFixture(t)
	f.stage(t, models.StageLead, "Inquiry")

	post, err := f.workflows.CreateStage(testCtx, f.tpl.ID, StageInput{
		Stage: models.StagePostProduction, Name: "Deliver", TriggerOnPaymentReceived: true,
	})
	require.NoError(t, err)
	booked, err := f.workflows.CreateStage(testCtx, f.tpl.ID, StageInput{
		Stage: models.StageProduction, Name: "Booked", TriggerOnPaymentReceived: true,
		AdvancementCriteria: CriterionBalancePaid,
	})
	require.NoError(t, err)

	event, err := f.events.CreateEvent(testCtx, CreateEventRequest{Name: "Smith wedding", WorkflowTemplateID: &f.tpl.ID}, testActor)
	require.NoError(t, err)

	assert.False(t, advance(t, f, event.ID), "balance is unpaid")
	reloaded, err := f.events.GetEvent(testCtx, event.ID)
	require.NoError(t, err)
	assert.NotEqual(t, post.ID, *reloaded.CurrentStageID, "a later trigger stage is never picked over the first")

	require.NoError(t, f.db.Model(&models.Event{}).Where("id = ?", event.ID).
		Update("payment_status", models.EventPaymentPaid).Error)
	assert.True(t, advance(t, f, event.ID))

	reloaded, err = f.events.GetEvent(testCtx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, booked.ID, *reloaded.CurrentStageID)

	assert.False(t, advance(t, f, event.ID), "already in the stage")
}

func TestAdvanceOnPaymentCustomCriterion(t *testing.T) {
	f := newWorkflowFixture(t)
	allow := false
	f.workflows.RegisterCriterion("MANUAL_GATE", func(*gorm.DB, *models.Event) (bool, error) {
		return allow, nil
	})
	f.stage(t, models.StageLead, "Inquiry")
	gate, err := f.workflows.CreateStage(testCtx, f.tpl.ID, StageInput{
		Stage: models.StageProduction, Name: "Gate", TriggerOnPaymentReceived: true, AdvancementCriteria: "MANUAL_GATE",
	})
	require.NoError(t, err)

	event, err := f.events.CreateEvent(testCtx, CreateEventRequest{Name: "Gala", WorkflowTemplateID: &f.tpl.ID}, testActor)
	require.NoError(t, err)

	assert.False(t, advance(t, f, event.ID))
	allow = true
	assert.True(t, advance(t, f, event.ID))

	reloaded, err := f.events.GetEvent(testCtx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, gate.ID, *reloaded.CurrentStageID)
}

func TestAdvanceOnPaymentWithoutTemplate(t *testing.T) {
	f := newWorkflowFixture(t)
	event := createTestEvent(t, f.db, "Walk-in")
	assert.False(t, advance(t, f, event.ID))
}

func TestDeleteTemplateDetachesEvents(t *testing.T) {
	f := newWorkflowFixture(t)
	f.stage(t, models.StageLead, "Inquiry")
	event, err := f.events.CreateEvent(testCtx, CreateEventRequest{Name: "Gala", WorkflowTemplateID: &f.tpl.ID}, testActor)
	require.NoError(t, err)

	require.NoError(t, f.workflows.DeleteTemplate(testCtx, f.tpl.ID))

	reloaded, err := f.events.GetEvent(testCtx, event.ID)
	require.NoError(t, err)
	assert.Nil(t, reloaded.WorkflowTemplateID)
	assert.Nil(t, reloaded.CurrentStageID)

	_, err = f.workflows.GetTemplate(testCtx, f.tpl.ID)
	requireKind(t, err, KindNotFound, "WORKFLOW_TEMPLATE_NOT_FOUND")
}
