// Package catalog implements the link catalog: the relational store used for
// per-owner listings and the analytical queries over click history. It is
// written independently of the link store; the two are not transactionally
// linked.
package catalog

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/blatik/shortlink/internal/model"
)

// topGroupLimit caps the country/browser/referrer groupings. Device types are
// never limited; their cardinality is inherently small.
const topGroupLimit = 10

// Catalog handles database operations for links and clicks
type Catalog struct {
	db *gorm.DB
}

// Open connects to MySQL and configures the connection pool
func Open(dsn string, maxIdleConns, maxOpenConns int) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetMaxOpenConns(maxOpenConns)

	return db, nil
}

// NewCatalog creates a catalog over the given connection and migrates the
// urls and clicks tables.
func NewCatalog(db *gorm.DB) (*Catalog, error) {
	if err := db.AutoMigrate(&model.Link{}, &model.Click{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Catalog{db: db}, nil
}

// InsertLink mirrors a newly created link into the urls table
func (c *Catalog) InsertLink(ctx context.Context, link *model.Link) error {
	if err := c.db.WithContext(ctx).Create(link).Error; err != nil {
		return fmt.Errorf("failed to insert link: %w", err)
	}
	return nil
}

// ListByOwner returns up to limit links owned by ownerID, newest first
func (c *Catalog) ListByOwner(ctx context.Context, ownerID string, limit int) ([]model.Link, error) {
	links := make([]model.Link, 0)
	err := c.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	return links, nil
}

// InsertClick appends one click event
func (c *Catalog) InsertClick(ctx context.Context, click *model.Click) error {
	if err := c.db.WithContext(ctx).Create(click).Error; err != nil {
		return fmt.Errorf("failed to insert click: %w", err)
	}
	return nil
}

// IncrementClicks bumps the denormalized click counter on the urls row
func (c *Catalog) IncrementClicks(ctx context.Context, shortCode string) error {
	err := c.db.WithContext(ctx).Model(&model.Link{}).
		Where("short_code = ?", shortCode).
		UpdateColumn("clicks", gorm.Expr("clicks + ?", 1)).Error
	if err != nil {
		return fmt.Errorf("failed to increment click count: %w", err)
	}
	return nil
}

// CountClicks returns the total number of clicks recorded for a short code
func (c *Catalog) CountClicks(ctx context.Context, shortCode string) (int64, error) {
	var count int64
	err := c.db.WithContext(ctx).Model(&model.Click{}).
		Where("short_code = ?", shortCode).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count clicks: %w", err)
	}
	return count, nil
}

// ClicksByCountry returns the top country groups by descending count
func (c *Catalog) ClicksByCountry(ctx context.Context, shortCode string) ([]model.CountryCount, error) {
	rows := make([]model.CountryCount, 0)
	err := c.db.WithContext(ctx).Model(&model.Click{}).
		Select("country, COUNT(*) AS count").
		Where("short_code = ?", shortCode).
		Group("country").
		Order("count DESC").
		Limit(topGroupLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group clicks by country: %w", err)
	}
	return rows, nil
}

// ClicksByDevice returns all device type groups by descending count
func (c *Catalog) ClicksByDevice(ctx context.Context, shortCode string) ([]model.DeviceCount, error) {
	rows := make([]model.DeviceCount, 0)
	err := c.db.WithContext(ctx).Model(&model.Click{}).
		Select("device_type, COUNT(*) AS count").
		Where("short_code = ?", shortCode).
		Group("device_type").
		Order("count DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group clicks by device: %w", err)
	}
	return rows, nil
}

// ClicksByBrowser returns the top browser groups by descending count
func (c *Catalog) ClicksByBrowser(ctx context.Context, shortCode string) ([]model.BrowserCount, error) {
	rows := make([]model.BrowserCount, 0)
	err := c.db.WithContext(ctx).Model(&model.Click{}).
		Select("browser, COUNT(*) AS count").
		Where("short_code = ?", shortCode).
		Group("browser").
		Order("count DESC").
		Limit(topGroupLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group clicks by browser: %w", err)
	}
	return rows, nil
}

// ClicksByReferrer returns the top referrer groups by descending count
func (c *Catalog) ClicksByReferrer(ctx context.Context, shortCode string) ([]model.ReferrerCount, error) {
	rows := make([]model.ReferrerCount, 0)
	err := c.db.WithContext(ctx).Model(&model.Click{}).
		Select("referrer, COUNT(*) AS count").
		Where("short_code = ?", shortCode).
		Group("referrer").
		Order("count DESC").
		Limit(topGroupLimit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group clicks by referrer: %w", err)
	}
	return rows, nil
}

// ClicksPerDay returns daily click counts since the given cutoff, ascending by
// date. DATE() buckets by calendar day on both MySQL and SQLite.
func (c *Catalog) ClicksPerDay(ctx context.Context, shortCode string, since time.Time) ([]model.DateCount, error) {
	rows := make([]model.DateCount, 0)
	err := c.db.WithContext(ctx).Model(&model.Click{}).
		Select("DATE(clicked_at) AS date, COUNT(*) AS count").
		Where("short_code = ? AND clicked_at >= ?", shortCode, since).
		Group("DATE(clicked_at)").
		Order("date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group clicks by day: %w", err)
	}
	for i := range rows {
		rows[i].Date = dayString(rows[i].Date)
	}
	return rows, nil
}

// dayString trims a scanned date bucket down to its YYYY-MM-DD part. The
// mysql driver with parseTime hands DATE() back as a full timestamp, which
// lands in the string field as RFC3339; SQLite returns the bare date already.
func dayString(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

// AllShortCodes returns every issued short code, used to seed the bloom
// filter at startup.
func (c *Catalog) AllShortCodes(ctx context.Context) ([]string, error) {
	var codes []string
	err := c.db.WithContext(ctx).Model(&model.Link{}).
		Pluck("short_code", &codes).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load short codes: %w", err)
	}
	return codes, nil
}

// Close closes the underlying database connection
func (c *Catalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
