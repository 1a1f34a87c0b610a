package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/distribution/internal/domain/catalog"
	"github.com/erp/distribution/internal/domain/partner"
	"github.com/erp/distribution/internal/domain/shared"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const searchBackfillBatch = 500

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// whereFolded restricts query to rows whose search_text contains the folded
// search. The column is folded on write, so both sides compare the same form
// and the filter runs in SQL on PostgreSQL and SQLite alike.
func whereFolded(query *gorm.DB, search string) *gorm.DB {
	folded := shared.FoldText(search)
	if folded == "" {
		return query
	}
	return query.Where(`search_text LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(folded)+"%")
}

// BackfillSearchText fills search_text on rows written before the column
// existed. SQL has no portable way to strip Vietnamese diacritics, so the
// folding happens here, one batch at a time.
func BackfillSearchText(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var products []catalog.Product
	productRows := int64(0)
	result := db.WithContext(ctx).
		Where("search_text = '' OR search_text IS NULL").
		FindInBatches(&products, searchBackfillBatch, func(_ *gorm.DB, _ int) error {
			for i := range products {
				p := &products[i]
				if err := db.WithContext(ctx).Model(&catalog.Product{}).Where("id = ?", p.ID).
					UpdateColumn("search_text", shared.SearchKey(p.Name, p.SKU, p.Barcode)).Error; err != nil {
					return err
				}
			}
			productRows += int64(len(products))
			return nil
		})
	if result.Error != nil {
		return fmt.Errorf("backfill product search text: %w", result.Error)
	}

	var customers []partner.Customer
	customerRows := int64(0)
	result = db.WithContext(ctx).
		Where("search_text = '' OR search_text IS NULL").
		FindInBatches(&customers, searchBackfillBatch, func(_ *gorm.DB, _ int) error {
			for i := range customers {
				c := &customers[i]
				if err := db.WithContext(ctx).Model(&partner.Customer{}).Where("id = ?", c.ID).
					UpdateColumn("search_text", shared.SearchKey(c.Code, c.Name, c.Phone, c.Email)).Error; err != nil {
					return err
				}
			}
			customerRows += int64(len(customers))
			return nil
		})
	if result.Error != nil {
		return fmt.Errorf("backfill customer search text: %w", result.Error)
	}

	if productRows > 0 || customerRows > 0 {
		logger.Info("search text backfilled",
			zap.Int64("products", productRows),
			zap.Int64("customers", customerRows),
		)
	}
	return nil
}
