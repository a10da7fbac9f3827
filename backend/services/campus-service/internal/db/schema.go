package db

const schema = `
CREATE TABLE IF NOT EXISTS students (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	roll_no TEXT NOT NULL,
	email TEXT,
	rfid_uid TEXT NOT NULL,
	legacy_rfid TEXT,
	wallet_balance BIGINT NOT NULL DEFAULT 0 CHECK (wallet_balance >= 0),
	modules TEXT NOT NULL DEFAULT '',
	active BOOLEAN NOT NULL DEFAULT TRUE,
	password_hash TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS students_roll_no_key ON students(roll_no);
CREATE UNIQUE INDEX IF NOT EXISTS students_rfid_uid_key ON students(rfid_uid);
CREATE UNIQUE INDEX IF NOT EXISTS students_email_key ON students(email) WHERE email IS NOT NULL;
CREATE INDEX IF NOT EXISTS students_legacy_rfid_idx ON students(legacy_rfid) WHERE legacy_rfid IS NOT NULL;

CREATE TABLE IF NOT EXISTS items (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	price BIGINT NOT NULL DEFAULT 0 CHECK (price >= 0),
	quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
	topics TEXT NOT NULL DEFAULT '',
	author TEXT NOT NULL DEFAULT '',
	isbn TEXT NOT NULL DEFAULT '',
	publisher TEXT NOT NULL DEFAULT '',
	year INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS items_type_idx ON items(type);

CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL REFERENCES students(id),
	item_id TEXT REFERENCES items(id) ON DELETE SET NULL,
	module TEXT NOT NULL,
	action TEXT NOT NULL,
	amount BIGINT,
	status TEXT NOT NULL DEFAULT 'approved',
	notes TEXT NOT NULL DEFAULT '',
	due_date TIMESTAMPTZ,
	receipt_id TEXT NOT NULL DEFAULT '',
	wallet_debited BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS transactions_student_module_idx ON transactions(student_id, module, status);
CREATE INDEX IF NOT EXISTS transactions_status_idx ON transactions(status);
CREATE INDEX IF NOT EXISTS transactions_receipt_idx ON transactions(receipt_id) WHERE receipt_id <> '';

CREATE TABLE IF NOT EXISTS wallet_transactions (
	id TEXT PRIMARY KEY,
	student_id TEXT NOT NULL REFERENCES students(id),
	rfid_uid TEXT NOT NULL DEFAULT '',
	amount BIGINT NOT NULL CHECK (amount > 0),
	type TEXT NOT NULL,
	payment_id TEXT,
	receipt_id TEXT NOT NULL DEFAULT '',
	module TEXT NOT NULL DEFAULT '',
	item_name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS wallet_transactions_payment_id_key ON wallet_transactions(payment_id) WHERE payment_id IS NOT NULL;
CREATE INDEX IF NOT EXISTS wallet_transactions_student_idx ON wallet_transactions(student_id, created_at DESC);

CREATE TABLE IF NOT EXISTS admins (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
