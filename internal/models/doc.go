// Package models defines the core domain models for the ledger bot.
//
// # Models
//
//   - User: a chat user, keyed by their messaging-platform id
//   - Transaction: one income or expense entry owned by a single user
//   - Budget: per-month spending thresholds, stored as a versioned document
//   - SavingsGoal: a target whose progress is derived from the ledger
//   - GroupExpense: a shared bill inside a chat group, open until settled
//   - Pet: gamification state fed by new transactions
//
// # Conventions
//
// 1. Money is [decimal.Decimal]; storage keeps it as integer cents
// 2. Timestamps that are only displayed are Unix seconds (int64)
// 3. Relationships use ID strings, never pointers
package models
