package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/kendall-kelly/eventflow-api/models"
)

// InvitationValidity is how long a client portal invitation can be accepted.
const InvitationValidity = 7 * 24 * time.Hour

// ClientService manages CRM clients and their portal invitations.
type ClientService struct {
	db       *gorm.DB
	notifier *Notifier
	now      func() time.Time
	log      zerolog.Logger
}

func NewClientService(db *gorm.DB, notifier *Notifier, log zerolog.Logger) *ClientService {
	return &ClientService{db: db, notifier: notifier, now: time.Now, log: log}
}

type CreateClientRequest struct {
	Name  string
	Email string
	Phone string
}

func (s *ClientService) CreateClient(ctx context.Context, req CreateClientRequest, actor models.Actor) (*models.Client, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if strings.TrimSpace(req.Name) == "" || email == "" {
		return nil, Validation(CodeValidation, "client name and email are required")
	}

	client := models.Client{Name: req.Name, Email: email, Phone: req.Phone}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkClientEmail(tx, email, 0); err != nil {
			return err
		}
		if err := tx.Create(&client).Error; err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}
		return addActivity(tx, nil, "client", client.ID, "created", client.Name, actor)
	})
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// checkClientEmail includes soft-deleted clients, which still hold their
// email in the unique index.
func checkClientEmail(tx *gorm.DB, email string, exceptID uint) error {
	var existing models.Client
	q := tx.Unscoped().Where("email = ?", email)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check client email: %w", err)
	}
	if existing.DeletedAt.Valid {
		return ConstraintViolation(CodeDuplicateClientEmail, "email %s belongs to a deleted client and cannot be reused", email)
	}
	return ConstraintViolation(CodeDuplicateClientEmail, "a client with email %s already exists", email)
}

func (s *ClientService) GetClient(ctx context.Context, id uint) (*models.Client, error) {
	var client models.Client
	if err := s.db.WithContext(ctx).First(&client, id).Error; err != nil {
		return nil, notFoundOr(err, "client", id)
	}
	return &client, nil
}

// ListClients returns clients ordered by name, optionally filtered by a
// case-insensitive match on name or email.
func (s *ClientService) ListClients(ctx context.Context, search string) ([]models.Client, error) {
	var clients []models.Client
	q := s.db.WithContext(ctx).Order("name ASC")
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	if err := q.Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

type UpdateClientRequest struct {
	Name  *string
	Email *string
	Phone *string
}

func (s *ClientService) UpdateClient(ctx context.Context, id uint, req UpdateClientRequest) (*models.Client, error) {
	var client models.Client
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&client, id).Error; err != nil {
			return notFoundOr(err, "client", id)
		}
		updates := map[string]interface{}{}
		if req.Name != nil {
			if strings.TrimSpace(*req.Name) == "" {
				return Validation(CodeValidation, "client name is required")
			}
			updates["name"] = *req.Name
		}
		if req.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*req.Email))
			if email == "" {
				return Validation(CodeValidation, "client email is required")
			}
			if err := checkClientEmail(tx, email, id); err != nil {
				return err
			}
			updates["email"] = email
		}
		if req.Phone != nil {
			updates["phone"] = *req.Phone
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.Client{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update client: %w", err)
		}
		return tx.First(&client, id).Error
	})
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *ClientService) DeleteClient(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Client{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete client: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFound("client", id)
	}
	return nil
}

// InviteClient creates a portal invitation and emails it. The invitation is
// only kept when the email provider accepted the message.
func (s *ClientService) InviteClient(ctx context.Context, clientID uint, actor models.Actor) (*models.ClientInvitation, error) {
	var inv models.ClientInvitation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.First(&client, clientID).Error; err != nil {
			return notFoundOr(err, "client", clientID)
		}
		inv = models.ClientInvitation{
			ClientID:  client.ID,
			Email:     client.Email,
			Token:     uuid.NewString(),
			ExpiresAt: s.now().Add(InvitationValidity),
		}
		if err := tx.Create(&inv).Error; err != nil {
			return fmt.Errorf("failed to create invitation: %w", err)
		}

		data := map[string]interface{}{
			"client_name": client.Name,
			"token":       inv.Token,
			"expires_at":  inv.ExpiresAt.Format(time.RFC3339),
		}
		if !s.notifier.SendDirect(ctx, TemplateClientInvitation, client.Email, data) {
			return ExternalDependency(CodeEmailSendFailed, nil, "could not send the invitation to %s", client.Email)
		}
		return addActivity(tx, nil, "client", client.ID, "invited", client.Email, actor)
	})
	if err != nil {
		if KindOf(err) == KindExternalDependency {
			s.log.Warn().Err(err).Uint("client_id", clientID).Msg("client invitation not sent")
		}
		return nil, err
	}
	s.log.Info().Uint("client_id", clientID).Uint("invitation_id", inv.ID).Msg("client invited")
	return &inv, nil
}

// AcceptInvitation marks the invitation behind token as accepted. Accepting
// twice is a no-op.
func (s *ClientService) AcceptInvitation(ctx context.Context, token string) (*models.ClientInvitation, error) {
	var inv models.ClientInvitation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(lockingClause()).Where("token = ?", token).First(&inv).Error; err != nil {
			return notFoundOr(err, "invitation", "for token")
		}
		if inv.AcceptedAt != nil {
			return nil
		}
		now := s.now()
		if now.After(inv.ExpiresAt) {
			return Validation(CodeInvitationExpired, "invitation expired on %s", inv.ExpiresAt.Format("2006-01-02"))
		}
		if err := tx.Model(&models.ClientInvitation{}).Where("id = ?", inv.ID).Update("accepted_at", now).Error; err != nil {
			return fmt.Errorf("failed to accept invitation: %w", err)
		}
		inv.AcceptedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (s *ClientService) ListInvitations(ctx context.Context, clientID uint) ([]models.ClientInvitation, error) {
	var invs []models.ClientInvitation
	if err := s.db.WithContext(ctx).Where("client_id = ?", clientID).Order("created_at DESC").Find(&invs).Error; err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return invs, nil
}
