package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied statement by statement; the driver runs without
// multiStatements.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    username      VARCHAR(50)  NOT NULL,
    password_hash VARCHAR(100) NOT NULL,
    display_name  VARCHAR(100) NOT NULL,
    role          VARCHAR(16)  NOT NULL,
    created_at    DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE KEY ux_users_username (username)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS items (
    id                 BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    name               VARCHAR(200) NOT NULL,
    category           VARCHAR(100) NOT NULL DEFAULT '',
    condition_note     VARCHAR(500) NOT NULL DEFAULT '',
    total_quantity     INT          NOT NULL,
    available_quantity INT          NOT NULL,
    created_at         DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at         DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    KEY idx_items_category (category),
    CONSTRAINT chk_items_total CHECK (total_quantity >= 0),
    CONSTRAINT chk_items_available CHECK (available_quantity >= 0 AND available_quantity <= total_quantity)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS reservations (
    id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
    requester_id  BIGINT UNSIGNED NOT NULL,
    item_id       BIGINT UNSIGNED NOT NULL,
    start_date    DATE            NOT NULL,
    end_date      DATE            NOT NULL,
    quantity      INT             NOT NULL,
    status        VARCHAR(16)     NOT NULL,
    decided_at    DATETIME(6)     NULL,
    decision_note VARCHAR(1024)   NULL,
    created_at    DATETIME(6)     NOT NULL,
    KEY idx_reservations_item_status_dates (item_id, status, start_date, end_date),
    KEY idx_reservations_requester (requester_id),
    KEY idx_reservations_status (status),
    CONSTRAINT fk_reservations_item FOREIGN KEY (item_id) REFERENCES items (id) ON DELETE CASCADE,
    CONSTRAINT fk_reservations_user FOREIGN KEY (requester_id) REFERENCES users (id),
    CONSTRAINT chk_reservations_qty CHECK (quantity >= 1),
    CONSTRAINT chk_reservations_range CHECK (start_date <= end_date)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables. It is safe to run on every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
