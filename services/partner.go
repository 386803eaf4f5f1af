// services/partner.go
package services

import (
	"errors"
	"time"

	"quest-tracking-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PartnerService manages sponsoring organizations and their quest
// partnerships. Thin CRUD; the only interesting behavior is the
// partnership_created notification enqueue.
type PartnerService struct {
	DB    *gorm.DB
	Queue *TaskQueueService
}

func NewPartnerService(db *gorm.DB, queue *TaskQueueService) *PartnerService {
	return &PartnerService{DB: db, Queue: queue}
}

type OrganizationInput struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Website      string `json:"website"`
	ContactEmail string `json:"contact_email"`
}

func (s *PartnerService) CreateOrganization(in OrganizationInput) (*models.PartnerOrganization, error) {
	org := &models.PartnerOrganization{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Description:  in.Description,
		Website:      in.Website,
		ContactEmail: in.ContactEmail,
		IsActive:     true,
	}
	if err := s.DB.Create(org).Error; err != nil {
		return nil, err
	}
	return org, nil
}

type PartnershipInput struct {
	OrganizationID string     `json:"organization_id"`
	QuestID        string     `json:"quest_id"`
	Benefits       string     `json:"benefits"`
	IsFeatured     bool       `json:"is_featured"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
}

// CreatePartnership links an organization to a quest and queues the
// partnership_created notification for the organization contact, both in
// one transaction.
func (s *PartnerService) CreatePartnership(in PartnershipInput) (*models.Partnership, error) {
	var org models.PartnerOrganization
	if err := s.DB.First(&org, "id = ?", in.OrganizationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.New("partner organization not found")
		}
		return nil, err
	}
	var quest models.Quest
	if err := s.DB.First(&quest, "id = ?", in.QuestID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}

	partnership := &models.Partnership{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		QuestID:        quest.ID,
		Benefits:       in.Benefits,
		IsFeatured:     in.IsFeatured,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(partnership).Error; err != nil {
			return err
		}
		_, err := s.Queue.Enqueue(tx, models.TaskPartnershipCreated, map[string]interface{}{
			"organization_name": org.Name,
			"contact_email":     org.ContactEmail,
			"quest_title":       quest.Title,
			"start_date":        in.StartDate,
			"end_date":          in.EndDate,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return partnership, nil
}
