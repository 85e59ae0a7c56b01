package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const shopColumns = `domain, access_token, country_code, active, last_scanned_at, created_at, updated_at`

// UpsertShop registers a shop or updates its token and settings
func (s *Store) UpsertShop(ctx context.Context, shop Shop) (*Shop, error) {
	countryCode := strings.ToUpper(shop.CountryCode)
	if countryCode == "" {
		countryCode = "NO"
	}

	saved, err := scanShop(s.pool.QueryRow(ctx, `
		INSERT INTO shops (domain, access_token, country_code, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (domain) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			country_code = EXCLUDED.country_code,
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING `+shopColumns,
		strings.ToLower(shop.Domain), shop.AccessToken, countryCode, shop.Active,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert shop: %w", err)
	}
	return saved, nil
}

// GetShop returns a shop by domain
func (s *Store) GetShop(ctx context.Context, domain string) (*Shop, error) {
	shop, err := scanShop(s.pool.QueryRow(ctx, `
		SELECT `+shopColumns+` FROM shops WHERE domain = $1
	`, strings.ToLower(domain)))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query shop: %w", err)
	}
	return shop, nil
}

// ActiveShops returns the shops due for scanning: active shops never scanned
// or last scanned before the cutoff
func (s *Store) ActiveShops(ctx context.Context, scannedBefore time.Time) ([]Shop, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+shopColumns+`
		FROM shops
		WHERE active AND (last_scanned_at IS NULL OR last_scanned_at < $1)
		ORDER BY last_scanned_at ASC NULLS FIRST, domain ASC
	`, scannedBefore.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query shops: %w", err)
	}
	defer rows.Close()

	shops := make([]Shop, 0)
	for rows.Next() {
		shop, err := scanShop(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shop: %w", err)
		}
		shops = append(shops, *shop)
	}
	return shops, rows.Err()
}

// MarkShopScanned records the completion time of a scan
func (s *Store) MarkShopScanned(ctx context.Context, domain string, at time.Time) error {
	result, err := s.pool.Exec(ctx, `
		UPDATE shops SET last_scanned_at = $2, updated_at = NOW() WHERE domain = $1
	`, strings.ToLower(domain), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to mark shop scanned: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanShop(row pgx.Row) (*Shop, error) {
	var shop Shop
	if err := row.Scan(&shop.Domain, &shop.AccessToken, &shop.CountryCode, &shop.Active,
		&shop.LastScannedAt, &shop.CreatedAt, &shop.UpdatedAt); err != nil {
		return nil, err
	}
	return &shop, nil
}
