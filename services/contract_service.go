package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kendall-kelly/eventflow-api/models"
	"github.com/kendall-kelly/eventflow-api/utils"
)

// ContractService manages contract templates and the contracts sent to
// clients.
type ContractService struct {
	db       *gorm.DB
	notifier *Notifier
	store    DocumentStore
	now      func() time.Time
	log      zerolog.Logger
}

func NewContractService(db *gorm.DB, notifier *Notifier, store DocumentStore, log zerolog.Logger) *ContractService {
	return &ContractService{db: db, notifier: notifier, store: store, now: time.Now, log: log}
}

func (s *ContractService) CreateTemplate(ctx context.Context, name, content string, validityDays int) (*models.ContractTemplate, error) {
	if name == "" || strings.TrimSpace(content) == "" {
		return nil, Validation(CodeValidation, "template name and content are required")
	}
	if validityDays <= 0 {
		validityDays = 14
	}
	tpl := models.ContractTemplate{Name: name, Content: content, ValidityDays: validityDays}
	if err := s.db.WithContext(ctx).Create(&tpl).Error; err != nil {
		return nil, fmt.Errorf("failed to create contract template: %w", err)
	}
	return &tpl, nil
}

func (s *ContractService) ListTemplates(ctx context.Context) ([]models.ContractTemplate, error) {
	var tpls []models.ContractTemplate
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&tpls).Error; err != nil {
		return nil, fmt.Errorf("failed to list contract templates: %w", err)
	}
	return tpls, nil
}

// CreateContract drafts a contract for an event from a template. The
// template content is copied so later template edits do not change it.
func (s *ContractService) CreateContract(ctx context.Context, eventID, templateID uint, actor models.Actor) (*models.EventContract, error) {
	var contract models.EventContract
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockEvent(tx, eventID); err != nil {
			return err
		}
		var tpl models.ContractTemplate
		if err := tx.First(&tpl, templateID).Error; err != nil {
			return notFoundOr(err, "contract template", templateID)
		}
		validUntil := s.now().AddDate(0, 0, tpl.ValidityDays)
		contract = models.EventContract{
			EventID:    eventID,
			TemplateID: templateID,
			Status:     models.ContractStatusDraft,
			Content:    tpl.Content,
			ValidUntil: &validUntil,
		}
		if err := tx.Omit(clause.Associations).Create(&contract).Error; err != nil {
			return fmt.Errorf("failed to create contract: %w", err)
		}
		return addActivity(tx, &eventID, "contract", contract.ID, "created", tpl.Name, actor)
	})
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (s *ContractService) GetContract(ctx context.Context, id uint) (*models.EventContract, error) {
	var contract models.EventContract
	if err := s.db.WithContext(ctx).First(&contract, id).Error; err != nil {
		return nil, notFoundOr(err, "contract", id)
	}
	return &contract, nil
}

func (s *ContractService) ListContracts(ctx context.Context, eventID uint) ([]models.EventContract, error) {
	var contracts []models.EventContract
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("created_at ASC").Find(&contracts).Error; err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", err)
	}
	return contracts, nil
}

// transition checks the allow-list, stamps the timestamp of the target
// status and runs apply for the extra effects of the transition.
func (s *ContractService) transition(ctx context.Context, id uint, to models.ContractStatus, actor models.Actor, apply func(tx *gorm.DB, c *models.EventContract, updates map[string]interface{}) error) (*models.EventContract, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var contract models.EventContract
		if err := tx.Clauses(lockingClause()).First(&contract, id).Error; err != nil {
			return notFoundOr(err, "contract", id)
		}
		if !models.CanTransitionContract(contract.Status, to) {
			return InvalidTransition(CodeInvalidContractStatus, "contract", contract.Status, to)
		}

		now := s.now()
		updates := map[string]interface{}{"status": to}
		switch to {
		case models.ContractStatusSent:
			updates["sent_at"] = now
		case models.ContractStatusSigned:
			updates["signed_at"] = now
		case models.ContractStatusExpired:
			updates["expired_at"] = now
		case models.ContractStatusVoid:
			updates["voided_at"] = now
		}
		if apply != nil {
			if err := apply(tx, &contract, updates); err != nil {
				return err
			}
		}
		if err := tx.Model(&models.EventContract{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update contract: %w", err)
		}
		return addActivity(tx, &contract.EventID, "contract", contract.ID, strings.ToLower(string(to)), "", actor)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("contract_id", id).Str("status", string(to)).Msg("contract status changed")
	return s.GetContract(ctx, id)
}

// SendContract emails a draft contract to the client.
func (s *ContractService) SendContract(ctx context.Context, id uint, actor models.Actor) (*models.EventContract, error) {
	return s.transition(ctx, id, models.ContractStatusSent, actor, func(tx *gorm.DB, c *models.EventContract, _ map[string]interface{}) error {
		event, err := lockEvent(tx, c.EventID)
		if err != nil {
			return err
		}
		data := map[string]interface{}{"contract_id": c.ID}
		if c.ValidUntil != nil {
			data["valid_until"] = c.ValidUntil.Format("2006-01-02")
		}
		_, err = s.notifier.Notify(ctx, tx, Message{
			EventID:   &c.EventID,
			Kind:      "CONTRACT_SENT",
			Template:  TemplateContractSent,
			Recipient: clientEmail(tx, event),
			Context:   data,
		})
		return err
	})
}

// SignRequest carries the client's signature and an optional signed
// document to store.
type SignRequest struct {
	SignerName          string
	Signature           string
	Document            []byte
	DocumentContentType string
}

// checkSignature validates a typed or drawn signature.
func checkSignature(signature string) error {
	err := utils.ValidateSignature(signature)
	var uploadErr *utils.FileUploadError
	if errors.As(err, &uploadErr) {
		return Validation(uploadErr.Code, "%s", uploadErr.Message)
	}
	return err
}

// SignContract signs a sent contract. The status is checked first, then the
// signature, then that the contract is still valid.
func (s *ContractService) SignContract(ctx context.Context, id uint, req SignRequest, actor models.Actor) (*models.EventContract, error) {
	var uploaded string
	contract, err := s.transition(ctx, id, models.ContractStatusSigned, actor, func(tx *gorm.DB, c *models.EventContract, updates map[string]interface{}) error {
		if err := checkSignature(req.Signature); err != nil {
			return err
		}
		if c.ValidUntil != nil && s.now().After(*c.ValidUntil) {
			return Validation(CodeContractExpired, "contract %d expired on %s", c.ID, c.ValidUntil.Format("2006-01-02"))
		}
		updates["signer_name"] = req.SignerName
		updates["signature"] = req.Signature

		if len(req.Document) > 0 {
			key := fmt.Sprintf("contracts/%d/%d-signed.pdf", c.EventID, c.ID)
			contentType := req.DocumentContentType
			if contentType == "" {
				contentType = "application/pdf"
			}
			if err := s.store.Put(ctx, key, contentType, req.Document); err != nil {
				return ExternalDependency(CodeDocumentStoreFailed, err, "could not store the signed contract")
			}
			uploaded = key
			updates["document_key"] = key
		}

		if err := addTimeline(tx, c.EventID, models.TimelineContractSigned,
			fmt.Sprintf("Contract signed by %s", req.SignerName), actor); err != nil {
			return err
		}
		event, err := lockEvent(tx, c.EventID)
		if err != nil {
			return err
		}
		_, err = s.notifier.Notify(ctx, tx, Message{
			EventID:   &c.EventID,
			Kind:      models.TimelineContractSigned,
			Template:  TemplateContractSigned,
			Recipient: clientEmail(tx, event),
			Context:   map[string]interface{}{"contract_id": c.ID, "signer_name": req.SignerName},
		})
		return err
	})
	if err != nil {
		if uploaded != "" {
			if delErr := s.store.Delete(ctx, uploaded); delErr != nil {
				s.log.Warn().Err(delErr).Str("key", uploaded).Msg("failed to remove orphaned contract document")
			}
		}
		return nil, err
	}
	return contract, nil
}

func (s *ContractService) ExpireContract(ctx context.Context, id uint, actor models.Actor) (*models.EventContract, error) {
	return s.transition(ctx, id, models.ContractStatusExpired, actor, nil)
}

func (s *ContractService) VoidContract(ctx context.Context, id uint, actor models.Actor) (*models.EventContract, error) {
	return s.transition(ctx, id, models.ContractStatusVoid, actor, nil)
}

// Transition dispatches a requested status to the matching operation.
// Signing carries no signature here, so an allowed SIGNED request is
// answered with SIGNATURE_REQUIRED and must go through SignContract.
func (s *ContractService) Transition(ctx context.Context, id uint, to models.ContractStatus, actor models.Actor) (*models.EventContract, error) {
	switch to {
	case models.ContractStatusSent:
		return s.SendContract(ctx, id, actor)
	case models.ContractStatusExpired:
		return s.ExpireContract(ctx, id, actor)
	case models.ContractStatusVoid:
		return s.VoidContract(ctx, id, actor)
	case models.ContractStatusSigned:
		return s.SignContract(ctx, id, SignRequest{}, actor)
	}
	contract, err := s.GetContract(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, InvalidTransition(CodeInvalidContractStatus, "contract", contract.Status, to)
}

// DocumentURL returns a temporary download link for the signed document.
func (s *ContractService) DocumentURL(ctx context.Context, id uint) (string, error) {
	contract, err := s.GetContract(ctx, id)
	if err != nil {
		return "", err
	}
	if contract.DocumentKey == nil {
		return "", &Error{Kind: KindNotFound, Code: "CONTRACT_DOCUMENT_NOT_FOUND", Message: fmt.Sprintf("contract %d has no signed document", id)}
	}
	url, err := s.store.PresignedURL(ctx, *contract.DocumentKey)
	if err != nil {
		return "", ExternalDependency(CodeDocumentStoreFailed, err, "could not create a download link")
	}
	return url, nil
}
