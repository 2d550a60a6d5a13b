package billing

import (
	"context"
	"fmt"
	"log"

	"github.com/dvelchev/codeforge/internal/models"
)

// SyncStripeCatalog mirrors the active recurring prices from Stripe
// into the price_products table so the pricing page never needs a live
// Stripe call.
func SyncStripeCatalog(ctx context.Context, b *Billing, store Store) error {
	prices, err := b.ListActivePrices(ctx)
	if err != nil {
		return fmt.Errorf("failed to list prices: %w", err)
	}

	for _, p := range prices {
		if p.Recurring == nil || p.Product == nil {
			continue
		}

		row := &models.PriceProduct{
			StripePriceID:   p.ID,
			StripeProductID: p.Product.ID,
			Name:            p.Product.Name,
			UnitAmountCents: p.UnitAmount,
			Currency:        string(p.Currency),
			Interval:        string(p.Recurring.Interval),
			IsActive:        true,
		}
		if p.Product.Description != "" {
			desc := p.Product.Description
			row.Description = &desc
		}

		if err := store.UpsertPrice(ctx, row); err != nil {
			return fmt.Errorf("failed to upsert price %s: %w", p.ID, err)
		}
		log.Printf("Stripe price synced: %s (%s, %d %s/%s)",
			p.ID, p.Product.Name, p.UnitAmount, p.Currency, p.Recurring.Interval)
	}

	return nil
}
