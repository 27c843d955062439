package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"nft-escrow-market/core/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm stores listing history in a SQL database.
type Gorm struct {
	db *gorm.DB
}

// OpenPostgres connects to dsn and migrates the listing tables.
func OpenPostgres(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return NewGorm(db)
}

func NewGorm(db *gorm.DB) (*Gorm, error) {
	if err := db.AutoMigrate(&model.ListingRecord{}, &model.IndexerCursor{}); err != nil {
		return nil, fmt.Errorf("migrate listing tables: %w", err)
	}
	return &Gorm{db: db}, nil
}

func (s *Gorm) SaveListing(ctx context.Context, rec *model.ListingRecord) error {
	row := *rec
	row.ID = 0
	row.Market = strings.ToLower(row.Market)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "market"}, {Name: "item_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
}

func (s *Gorm) MarkSold(ctx context.Context, market string, itemId uint64, sale Sale) error {
	res := s.db.WithContext(ctx).
		Model(&model.ListingRecord{}).
		Where("market = ? AND item_id = ?", strings.ToLower(market), itemId).
		Updates(map[string]interface{}{
			"sold":       true,
			"buyer":      strings.ToLower(sale.Buyer),
			"sold_hash":  sale.TxHash,
			"sold_block": sale.Block,
			"sold_ts":    sale.Timestamp,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: listing %s/%d", model.ErrDocumentNotExists, market, itemId)
	}
	return nil
}

func (s *Gorm) GetListing(ctx context.Context, market string, itemId uint64) (*model.ListingRecord, error) {
	var rec model.ListingRecord
	err := s.db.WithContext(ctx).
		Where("market = ? AND item_id = ?", strings.ToLower(market), itemId).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: listing %s/%d", model.ErrDocumentNotExists, market, itemId)
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Gorm) ListingsBySeller(ctx context.Context, market, seller string) ([]*model.ListingRecord, error) {
	var recs []*model.ListingRecord
	err := s.db.WithContext(ctx).
		Where("market = ? AND seller = ?", strings.ToLower(market), strings.ToLower(seller)).
		Order("item_id").
		Find(&recs).Error
	return recs, err
}

func (s *Gorm) ListingsByBuyer(ctx context.Context, market, buyer string) ([]*model.ListingRecord, error) {
	var recs []*model.ListingRecord
	err := s.db.WithContext(ctx).
		Where("market = ? AND sold = ? AND buyer = ?", strings.ToLower(market), true, strings.ToLower(buyer)).
		Order("item_id").
		Find(&recs).Error
	return recs, err
}

func (s *Gorm) LoadCursor(ctx context.Context, market string) (uint64, bool, error) {
	var cursor model.IndexerCursor
	err := s.db.WithContext(ctx).Where("market = ?", strings.ToLower(market)).First(&cursor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return cursor.BlockNumber, true, nil
}

func (s *Gorm) SaveCursor(ctx context.Context, market string, blockNumber uint64) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "market"}},
			DoUpdates: clause.AssignmentColumns([]string{"block_number"}),
		}).
		Create(&model.IndexerCursor{Market: strings.ToLower(market), BlockNumber: blockNumber}).Error
}
