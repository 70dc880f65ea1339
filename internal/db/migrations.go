package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'task_status') THEN
			CREATE TYPE task_status AS ENUM ('PENDING_MODERATION', 'ACTIVE', 'IN_PROGRESS', 'COMPLETED', 'CANCELLED', 'REJECTED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'order_status') THEN
			CREATE TYPE order_status AS ENUM ('PENDING', 'CARRIER_SELECTED', 'PAID', 'PACKAGE_RECEIVED', 'IN_TRANSIT', 'DELIVERED', 'COMPLETED', 'CANCELLED', 'DISPUTE');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'payment_status') THEN
			CREATE TYPE payment_status AS ENUM ('PENDING', 'HELD', 'CAPTURED', 'REFUNDED', 'CANCELLED');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'payment_provider') THEN
			CREATE TYPE payment_provider AS ENUM ('YOOKASSA', 'CLOUDPAYMENTS');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		sender_id UUID NOT NULL,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		size VARCHAR(1) NOT NULL,
		estimated_value BIGINT NOT NULL,
		from_airport VARCHAR(8) NOT NULL,
		from_point VARCHAR(255) NOT NULL DEFAULT '',
		to_airport VARCHAR(8) NOT NULL,
		to_point VARCHAR(255) NOT NULL DEFAULT '',
		date_from DATE NOT NULL,
		date_to DATE NOT NULL,
		reward BIGINT NOT NULL,
		status task_status NOT NULL DEFAULT 'PENDING_MODERATION',
		moderated_by UUID,
		moderated_at TIMESTAMPTZ,
		moderator_note TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		task_id UUID NOT NULL REFERENCES tasks(id),
		sender_id UUID NOT NULL,
		carrier_id UUID NOT NULL,
		carrier_message TEXT NOT NULL DEFAULT '',
		status order_status NOT NULL DEFAULT 'PENDING',
		reward BIGINT NOT NULL,
		platform_fee BIGINT NOT NULL,
		total_amount BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT orders_one_response_per_carrier UNIQUE (task_id, carrier_id)
	);`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		order_id UUID NOT NULL REFERENCES orders(id),
		provider payment_provider NOT NULL,
		provider_id VARCHAR(128) NOT NULL,
		amount_minor BIGINT NOT NULL,
		status payment_status NOT NULL DEFAULT 'PENDING',
		confirmation_url TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT payments_provider_id_unique UNIQUE (provider, provider_id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_orders_task_id ON orders(task_id);`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);`,
	`CREATE INDEX IF NOT EXISTS idx_payments_order_id ON payments(order_id);`,
}

func RunMigrations(database *gorm.DB) error {
	for i, statement := range migrationStatements {
		if err := database.Exec(statement).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
