// Package model defines shared data types for the price tracker.
//
// Conventions:
//   - Prices: decimal.Decimal dollar amounts, non-negative
//   - Timestamps: time.Time, captured when the scrape succeeded
//   - IDs: uuid.UUID assigned when an Observation is created
package model
