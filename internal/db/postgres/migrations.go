package postgres

// SQL-миграции встроены в код для упрощения деплоя.
// Суммы хранятся в рупиях NUMERIC(12,2), идентификаторы — UUID.

type migration struct {
	version int
	name    string
	sql     string
}

var migrations = []migration{
	{1, "wallets", migration001Wallets},
	{2, "payout_methods", migration002PayoutMethods},
	{3, "payout_requests", migration003PayoutRequests},
	{4, "payout_confirmations", migration004Confirmations},
	{5, "referrals", migration005Referrals},
	{6, "admin_audit_log", migration006AuditLog},
}

var migration001Wallets = `
CREATE TABLE IF NOT EXISTS wallets (
    user_id UUID PRIMARY KEY,
    balance NUMERIC(12,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
    total_earned NUMERIC(12,2) NOT NULL DEFAULT 0,
    total_withdrawn NUMERIC(12,2) NOT NULL DEFAULT 0,
    last_updated TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS wallet_transactions (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES wallets(user_id),
    type VARCHAR(32) NOT NULL,
    amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
    description TEXT NOT NULL DEFAULT '',
    status VARCHAR(16) NOT NULL DEFAULT 'completed',
    reference VARCHAR(128),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_wallet_tx_user_created ON wallet_transactions(user_id, created_at DESC);
CREATE UNIQUE INDEX IF NOT EXISTS uq_wallet_tx_type_reference
    ON wallet_transactions(type, reference) WHERE reference IS NOT NULL;
`

var migration002PayoutMethods = `
CREATE TABLE IF NOT EXISTS payout_methods (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    method_type VARCHAR(8) NOT NULL CHECK (method_type IN ('UPI', 'BANK')),
    upi_id VARCHAR(320),
    account_number VARCHAR(18),
    ifsc_code VARCHAR(11),
    is_default BOOLEAN NOT NULL DEFAULT FALSE,
    added_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payout_methods_user ON payout_methods(user_id);
CREATE UNIQUE INDEX IF NOT EXISTS uq_payout_methods_default
    ON payout_methods(user_id) WHERE is_default;
`

var migration003PayoutRequests = `
CREATE TABLE IF NOT EXISTS payout_requests (
    id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    amount NUMERIC(12,2) NOT NULL CHECK (amount > 0),
    payout_method_id UUID NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'success', 'failed')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    processed_at TIMESTAMPTZ,
    razorpay_payout_id VARCHAR(64) UNIQUE,
    failure_reason TEXT,
    wallet_debited BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS idx_payout_requests_user ON payout_requests(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_payout_requests_pending ON payout_requests(created_at) WHERE status = 'pending';
`

var migration004Confirmations = `
CREATE TABLE IF NOT EXISTS payout_confirmations (
    payout_id UUID PRIMARY KEY,
    user_id UUID NOT NULL,
    amount NUMERIC(12,2) NOT NULL,
    payout_method_id UUID NOT NULL,
    operator_id BIGINT NOT NULL,
    requested_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payout_confirmations_expires ON payout_confirmations(expires_at);
`

var migration005Referrals = `
CREATE TABLE IF NOT EXISTS referrals (
    referred_user_id UUID PRIMARY KEY,
    referrer_user_id UUID NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (referred_user_id <> referrer_user_id)
);
CREATE TABLE IF NOT EXISTS course_purchases (
    payment_id VARCHAR(64) PRIMARY KEY,
    order_id VARCHAR(64),
    user_id UUID NOT NULL,
    course_id VARCHAR(64),
    amount NUMERIC(12,2) NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

var migration006AuditLog = `
CREATE TABLE IF NOT EXISTS admin_audit_log (
    id BIGSERIAL PRIMARY KEY,
    actor VARCHAR(64) NOT NULL,
    action VARCHAR(32) NOT NULL,
    payout_id UUID,
    user_id UUID,
    amount NUMERIC(12,2),
    details TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_admin_audit_payout ON admin_audit_log(payout_id);
`
