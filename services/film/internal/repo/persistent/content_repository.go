package persistent

import (
	"errors"

	"reelshare/pkg/apperr"
	"reelshare/services/film/internal/entity"
	"reelshare/services/film/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ContentRepository interface {
	Create(content *entity.Content) error
	GetByID(id string) (*entity.Content, error)
	GetByToken(network, tokenID string) (*entity.Content, error)
	ListByProducer(producerID string) ([]*entity.Content, error)
	Update(content *entity.Content) error
}

type contentRepository struct {
	db *gorm.DB
}

func NewContentRepository(db *gorm.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) Create(content *entity.Content) error {
	if err := content.ValidateSplit(); err != nil {
		return err
	}
	contentModel := ToContentModel(content)
	if contentModel.ID == "" {
		contentModel.ID = uuid.New().String()
	}
	if err := r.db.Create(contentModel).Error; err != nil {
		return err
	}
	*content = *ToContentEntity(contentModel)
	return nil
}

func (r *contentRepository) GetByID(id string) (*entity.Content, error) {
	var contentModel model.ContentModel
	if err := r.db.Where("id = ?", id).First(&contentModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("content not found")
		}
		return nil, err
	}
	return ToContentEntity(&contentModel), nil
}

func (r *contentRepository) GetByToken(network, tokenID string) (*entity.Content, error) {
	var contentModel model.ContentModel
	if err := r.db.Where("network = ? AND token_id = ?", network, tokenID).First(&contentModel).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("film %s not found on %s", tokenID, network)
		}
		return nil, err
	}
	return ToContentEntity(&contentModel), nil
}

func (r *contentRepository) ListByProducer(producerID string) ([]*entity.Content, error) {
	var contentModels []model.ContentModel
	if err := r.db.Where("producer_id = ?", producerID).Order("created_at DESC").Find(&contentModels).Error; err != nil {
		return nil, err
	}

	contents := make([]*entity.Content, len(contentModels))
	for i := range contentModels {
		contents[i] = ToContentEntity(&contentModels[i])
	}
	return contents, nil
}

// Update saves descriptive fields and prices. Share counts and revenue are
// owned by the ledger and are never written here.
func (r *contentRepository) Update(content *entity.Content) error {
	if err := content.ValidateSplit(); err != nil {
		return err
	}
	m := ToContentModel(content)
	result := r.db.Model(&model.ContentModel{}).Where("id = ?", content.ID).Updates(map[string]interface{}{
		"title":           m.Title,
		"description":     m.Description,
		"genre":           m.Genre,
		"token_id":        m.TokenID,
		"direct_price":    m.DirectPrice,
		"nft_price":       m.NFTPrice,
		"price_per_share": m.PricePerShare,
		"creator_share":   m.CreatorShare,
		"investor_share":  m.InvestorShare,
		"platform_fee":    m.PlatformFee,
		"is_active":       m.IsActive,
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("content not found")
	}
	return nil
}
