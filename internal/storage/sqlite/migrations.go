package sqlite

import "database/sql"

// schema contains the SQL statements to set up the database schema.
// These run on startup to ensure tables exist.
// Amounts are integer cents; times are Unix seconds.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    line_user_id TEXT NOT NULL UNIQUE,
    display_name TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    amount_cents INTEGER NOT NULL CHECK (amount_cents > 0),
    category TEXT NOT NULL,
    note TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL CHECK (kind IN ('income', 'expense')),
    occurred_at INTEGER NOT NULL,
    created_at INTEGER NOT NULL,
    group_expense_id TEXT,
    group_role TEXT NOT NULL DEFAULT '',
    FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS budgets (
    owner_id TEXT NOT NULL,
    month TEXT NOT NULL,
    document TEXT NOT NULL,
    updated_at INTEGER NOT NULL,
    PRIMARY KEY (owner_id, month),
    FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS savings_goals (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    title TEXT NOT NULL,
    target_cents INTEGER NOT NULL,
    current_cents INTEGER NOT NULL DEFAULT 0,
    deadline INTEGER,
    completed INTEGER NOT NULL DEFAULT 0,
    completed_at INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS group_expenses (
    id TEXT PRIMARY KEY,
    group_id TEXT NOT NULL,
    creator_id TEXT NOT NULL,
    total_cents INTEGER NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    settled INTEGER NOT NULL DEFAULT 0,
    settled_at INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS group_participants (
    expense_id TEXT NOT NULL,
    member_id TEXT NOT NULL,
    display_name TEXT NOT NULL DEFAULT '',
    paid_cents INTEGER NOT NULL DEFAULT 0,
    share_cents INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (expense_id, member_id),
    FOREIGN KEY (expense_id) REFERENCES group_expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS group_expense_transactions (
    expense_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    transaction_id TEXT NOT NULL,
    PRIMARY KEY (expense_id, position),
    FOREIGN KEY (expense_id) REFERENCES group_expenses(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS pets (
    owner_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    stage TEXT NOT NULL,
    state TEXT NOT NULL,
    hunger INTEGER NOT NULL,
    happiness INTEGER NOT NULL,
    health INTEGER NOT NULL,
    experience INTEGER NOT NULL,
    level INTEGER NOT NULL,
    last_fed_at INTEGER NOT NULL DEFAULT 0,
    consecutive_days INTEGER NOT NULL DEFAULT 0,
    total_transactions INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_transactions_owner_date ON transactions(owner_id, occurred_at);
CREATE INDEX IF NOT EXISTS idx_transactions_group_expense ON transactions(group_expense_id);
CREATE INDEX IF NOT EXISTS idx_savings_goals_owner ON savings_goals(owner_id);
CREATE INDEX IF NOT EXISTS idx_group_expenses_group ON group_expenses(group_id, created_at);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
