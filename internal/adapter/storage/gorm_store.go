package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"github.com/rl1809/jersey-pos/internal/core/domain"
)

// GormStore persists the catalog, sales and coupons. Stock columns are only
// moved by relative conditional updates, so concurrent writers on different
// SKUs never overwrite each other.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) CreateTeam(ctx context.Context, team *domain.Team) error {
	rec := teamRecord{Name: team.Name, League: team.League, Country: team.Country}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("%w: team %q already exists", domain.ErrInvalidInput, team.Name)
		}
		return fmt.Errorf("insert team: %w", err)
	}
	*team = rec.toDomain()
	return nil
}

func (s *GormStore) GetTeam(ctx context.Context, id uint) (*domain.Team, error) {
	var rec teamRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err, "team %d", id)
	}
	t := rec.toDomain()
	return &t, nil
}

func (s *GormStore) ListTeams(ctx context.Context) ([]domain.Team, error) {
	var recs []teamRecord
	if err := s.db.WithContext(ctx).Order("name").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query teams: %w", err)
	}
	out := make([]domain.Team, len(recs))
	for i, r := range recs {
		out[i] = r.toDomain()
	}
	return out, nil
}

// jerseyRow is a jersey joined with its team name. The record sits in a named
// embedded field since gorm does not map unexported anonymous structs.
type jerseyRow struct {
	Jersey   jerseyRecord `gorm:"embedded"`
	TeamName string
}

func (s *GormStore) jerseyQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&jerseyRecord{}).
		Select("jerseys.*, teams.name AS team_name").
		Joins("LEFT JOIN teams ON teams.id = jerseys.team_id")
}

func (s *GormStore) CreateJersey(ctx context.Context, jersey *domain.Jersey) error {
	rec := jerseyRecord{
		TeamID:      jersey.TeamID,
		Name:        jersey.Name,
		Season:      jersey.Season,
		Type:        jersey.Type,
		Supplier:    jersey.Supplier,
		CostPrice:   jersey.CostPrice,
		RetailPrice: jersey.RetailPrice,
		Description: jersey.Description,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert jersey: %w", err)
	}
	*jersey = rec.toDomain(jersey.TeamName)
	return nil
}

func (s *GormStore) GetJersey(ctx context.Context, id uint) (*domain.Jersey, error) {
	var row jerseyRow
	res := s.jerseyQuery(ctx).Where("jerseys.id = ?", id).Limit(1).Scan(&row)
	if res.Error != nil {
		return nil, fmt.Errorf("query jersey: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: jersey %d", domain.ErrNotFound, id)
	}
	j := row.Jersey.toDomain(row.TeamName)
	return &j, nil
}

func (s *GormStore) ListJerseys(ctx context.Context) ([]domain.Jersey, error) {
	var rows []jerseyRow
	if err := s.jerseyQuery(ctx).Order("jerseys.created_at DESC, jerseys.id DESC").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query jerseys: %w", err)
	}
	out := make([]domain.Jersey, len(rows))
	for i, r := range rows {
		out[i] = r.Jersey.toDomain(r.TeamName)
	}
	return out, nil
}

func (s *GormStore) DeleteJersey(ctx context.Context, id uint, skus []string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(skus) > 0 {
			if err := tx.Where("jersey_id = ? AND sku IN ?", id, skus).Delete(&variantRecord{}).Error; err != nil {
				return fmt.Errorf("delete variants: %w", err)
			}
		}
		var left int64
		if err := tx.Model(&variantRecord{}).Where("jersey_id = ?", id).Count(&left).Error; err != nil {
			return fmt.Errorf("count variants: %w", err)
		}
		if left > 0 {
			return fmt.Errorf("%w: jersey %d still has %d variants", domain.ErrConflict, id, left)
		}
		res := tx.Delete(&jerseyRecord{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete jersey: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: jersey %d", domain.ErrNotFound, id)
		}
		return nil
	})
}

func (s *GormStore) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	rec := customerRecord{Name: c.Name, Email: c.Email, Phone: c.Phone, Address: c.Address}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	*c = rec.toDomain()
	return nil
}

func (s *GormStore) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	var recs []customerRecord
	if err := s.db.WithContext(ctx).Order("name").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	out := make([]domain.Customer, len(recs))
	for i, r := range recs {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *GormStore) FindCustomerByName(ctx context.Context, name string) (*domain.Customer, error) {
	var rec customerRecord
	if err := s.db.WithContext(ctx).Where("name = ?", name).Order("id").First(&rec).Error; err != nil {
		return nil, notFound(err, "customer %q", name)
	}
	c := rec.toDomain()
	return &c, nil
}

func (s *GormStore) CreateVariant(ctx context.Context, v *domain.Variant) error {
	rec := variantRecord{
		JerseyID:          v.JerseyID,
		Size:              v.Size,
		Sleeve:            v.Sleeve,
		SKU:               v.SKU,
		StockQuantity:     v.StockQuantity,
		LowStockThreshold: v.LowStockThreshold,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&jerseyRecord{}).Where("id = ?", v.JerseyID).Count(&n).Error; err != nil {
			return fmt.Errorf("check jersey: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: jersey %d", domain.ErrNotFound, v.JerseyID)
		}
		if err := tx.Create(&rec).Error; err != nil {
			if isDuplicate(err) {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateSku, v.SKU)
			}
			return fmt.Errorf("insert variant: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	*v = rec.toDomain()
	return nil
}

func (s *GormStore) GetVariant(ctx context.Context, id uint) (*domain.Variant, error) {
	var rec variantRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err, "variant %d", id)
	}
	v := rec.toDomain()
	return &v, nil
}

func (s *GormStore) GetVariantBySKU(ctx context.Context, sku string) (*domain.Variant, error) {
	var rec variantRecord
	err := s.db.WithContext(ctx).Where("sku = ?", sku).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSku, sku)
	}
	if err != nil {
		return nil, fmt.Errorf("query variant: %w", err)
	}
	v := rec.toDomain()
	return &v, nil
}

func (s *GormStore) GetVariantDetail(ctx context.Context, sku string) (*domain.VariantDetail, error) {
	v, err := s.GetVariantBySKU(ctx, sku)
	if err != nil {
		return nil, err
	}
	j, err := s.GetJersey(ctx, v.JerseyID)
	if err != nil {
		return nil, err
	}
	var total int64
	if err := s.db.WithContext(ctx).Model(&variantRecord{}).
		Where("jersey_id = ?", v.JerseyID).
		Select("COALESCE(SUM(stock_quantity), 0)").
		Scan(&total).Error; err != nil {
		return nil, fmt.Errorf("sum jersey stock: %w", err)
	}
	return &domain.VariantDetail{
		Variant:          *v,
		JerseyName:       j.Name,
		Season:           j.Season,
		Type:             j.Type,
		RetailPrice:      j.RetailPrice,
		TeamName:         j.TeamName,
		TotalJerseyStock: int(total),
		IsLowStock:       v.IsLowStock(),
	}, nil
}

func (s *GormStore) ListVariants(ctx context.Context, jerseyID uint) ([]domain.Variant, error) {
	var recs []variantRecord
	if err := s.db.WithContext(ctx).Where("jersey_id = ?", jerseyID).Order("id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	out := make([]domain.Variant, len(recs))
	for i, r := range recs {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *GormStore) DeleteVariant(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&variantRecord{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete variant: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: variant %d", domain.ErrNotFound, id)
	}
	return nil
}

func (s *GormStore) AdjustStock(ctx context.Context, sku string, delta int) error {
	return adjustStock(s.db.WithContext(ctx), sku, delta)
}

// adjustStock moves a counter by delta and bumps its version. A decrement only
// matches rows that can afford it.
func adjustStock(tx *gorm.DB, sku string, delta int) error {
	q := tx.Model(&variantRecord{}).Where("sku = ?", sku)
	if delta < 0 {
		q = q.Where("stock_quantity >= ?", -delta)
	}
	res := q.Updates(map[string]interface{}{
		"stock_quantity": gorm.Expr("stock_quantity + ?", delta),
		"stock_version":  gorm.Expr("stock_version + 1"),
		"updated_at":     time.Now(),
	})
	if res.Error != nil {
		return fmt.Errorf("update stock: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := tx.Model(&variantRecord{}).Where("sku = ?", sku).Count(&n).Error; err != nil {
		return fmt.Errorf("check variant: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrUnknownSku, sku)
	}
	return fmt.Errorf("%w: %s cannot give %d", domain.ErrInsufficientStock, sku, -delta)
}

func (s *GormStore) ListStockLevels(ctx context.Context) ([]domain.StockLevel, error) {
	var recs []variantRecord
	if err := s.db.WithContext(ctx).
		Select("sku", "jersey_id", "stock_quantity", "low_stock_threshold", "stock_version").
		Order("sku").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query stock levels: %w", err)
	}
	out := make([]domain.StockLevel, len(recs))
	for i, r := range recs {
		out[i] = domain.StockLevel{
			SKU:       r.SKU,
			JerseyID:  r.JerseyID,
			Quantity:  r.StockQuantity,
			Threshold: r.LowStockThreshold,
			Version:   r.StockVersion,
		}
	}
	return out, nil
}

func (s *GormStore) ListSkuSeeds(ctx context.Context) ([]domain.SkuSeed, error) {
	var rows []struct {
		TeamName string
		Season   string
		Type     string
		Size     string
		Sleeve   string
		SKU      string `gorm:"column:sku"`
	}
	err := s.db.WithContext(ctx).
		Table("variants").
		Select("teams.name AS team_name, jerseys.season, jerseys.type, variants.size, variants.sleeve, variants.sku").
		Joins("JOIN jerseys ON jerseys.id = variants.jersey_id").
		Joins("JOIN teams ON teams.id = jerseys.team_id").
		Order("variants.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query sku seeds: %w", err)
	}
	out := make([]domain.SkuSeed, len(rows))
	for i, r := range rows {
		out[i] = domain.SkuSeed{TeamName: r.TeamName, Season: r.Season, Type: r.Type, Size: r.Size, Sleeve: r.Sleeve, SKU: r.SKU}
	}
	return out, nil
}

func (s *GormStore) ListLowStock(ctx context.Context) ([]domain.LowStockAlert, error) {
	var rows []struct {
		VariantID         uint
		JerseyID          uint
		SKU               string `gorm:"column:sku"`
		Size              string
		Sleeve            string
		StockQuantity     int
		LowStockThreshold int
		JerseyName        string
		TeamName          string
	}
	err := s.db.WithContext(ctx).
		Table("variants").
		Select(`variants.id AS variant_id, variants.jersey_id, variants.sku, variants.size, variants.sleeve,
			variants.stock_quantity, variants.low_stock_threshold,
			jerseys.name AS jersey_name, teams.name AS team_name`).
		Joins("JOIN jerseys ON jerseys.id = variants.jersey_id").
		Joins("LEFT JOIN teams ON teams.id = jerseys.team_id").
		Where("variants.stock_quantity <= variants.low_stock_threshold").
		Order("variants.stock_quantity, variants.sku").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query low stock: %w", err)
	}
	out := make([]domain.LowStockAlert, len(rows))
	for i, r := range rows {
		out[i] = domain.LowStockAlert{
			VariantID:         r.VariantID,
			JerseyID:          r.JerseyID,
			SKU:               r.SKU,
			Size:              r.Size,
			Sleeve:            r.Sleeve,
			StockQuantity:     r.StockQuantity,
			LowStockThreshold: r.LowStockThreshold,
			JerseyName:        r.JerseyName,
			TeamName:          r.TeamName,
		}
	}
	return out, nil
}

func (s *GormStore) RecordSale(ctx context.Context, sale *domain.Sale) error {
	rec := saleFromDomain(*sale)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}
		return adjustStock(tx, rec.SKU, -rec.Quantity)
	})
	if err != nil {
		return err
	}
	sale.ID = rec.ID
	return nil
}

func (s *GormStore) RevertSale(ctx context.Context, sale domain.Sale) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&saleRecord{}, sale.ID)
		if res.Error != nil {
			return fmt.Errorf("delete sale: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: sale %d", domain.ErrNotFound, sale.ID)
		}
		return adjustStock(tx, sale.SKU, sale.Quantity)
	})
}

func (s *GormStore) GetSale(ctx context.Context, id uint) (*domain.Sale, error) {
	var rec saleRecord
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		return nil, notFound(err, "sale %d", id)
	}
	sale := rec.toDomain()
	return &sale, nil
}

func (s *GormStore) ListSales(ctx context.Context, limit int) ([]domain.Sale, error) {
	q := s.db.WithContext(ctx).Order("sale_date DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []saleRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	out := make([]domain.Sale, len(recs))
	for i, r := range recs {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *GormStore) CreateCoupons(ctx context.Context, coupons []domain.Coupon) ([]domain.Coupon, error) {
	if len(coupons) == 0 {
		return nil, nil
	}
	recs := make([]couponRecord, len(coupons))
	for i, c := range coupons {
		recs[i] = couponRecord{Code: c.Code, Status: string(c.Status), ImportedAt: c.ImportedAt, ClaimedAt: c.ClaimedAt}
	}
	if err := s.db.WithContext(ctx).CreateInBatches(&recs, 500).Error; err != nil {
		if isDuplicate(err) {
			return nil, fmt.Errorf("%w: coupon code already imported", domain.ErrInvalidInput)
		}
		return nil, fmt.Errorf("insert coupons: %w", err)
	}
	out := make([]domain.Coupon, len(recs))
	for i, r := range recs {
		out[i] = r.toDomain()
	}
	return out, nil
}

func (s *GormStore) ListCoupons(ctx context.Context, status domain.CouponStatus) ([]domain.Coupon, error) {
	order := "imported_at, id"
	if status == domain.CouponStatusClaimed {
		order = "claimed_at DESC, id DESC"
	}
	var recs []couponRecord
	if err := s.db.WithContext(ctx).Where("status = ?", string(status)).Order(order).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query coupons: %w", err)
	}
	out := make([]domain.Coupon, len(recs))
	for i, r := range recs {
		out[i] = r.toDomain()
	}
	return out, nil
}

// ClaimCoupon is a compare-and-swap on status; zero rows means someone else got it.
func (s *GormStore) ClaimCoupon(ctx context.Context, id uint, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&couponRecord{}).
		Where("id = ? AND status = ?", id, string(domain.CouponStatusAvailable)).
		Updates(map[string]interface{}{
			"status":     string(domain.CouponStatusClaimed),
			"claimed_at": at,
		})
	if res.Error != nil {
		return fmt.Errorf("claim coupon: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: coupon %d is not available", domain.ErrNotFound, id)
	}
	return nil
}

func notFound(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: "+format, append([]interface{}{domain.ErrNotFound}, args...)...)
	}
	return fmt.Errorf("query "+format+": %w", append(args, err)...)
}

// isDuplicate recognizes unique violations whether or not the dialect translated them.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
