package inventory

import (
	"database/sql"

	"github.com/merliyatf/delfin/pkg/module"
)

func migrations() []module.Migration {
	return []module.Migration{
		{
			Version:     1,
			Description: "create storages table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS storages (
						id TEXT PRIMARY KEY,
						name TEXT NOT NULL,
						vendor TEXT NOT NULL,
						model TEXT NOT NULL,
						serial_number TEXT,
						firmware TEXT,
						ssh_host TEXT NOT NULL,
						ssh_port INTEGER NOT NULL DEFAULT 22,
						ssh_username TEXT,
						ssh_password TEXT,
						rest_host TEXT,
						rest_port INTEGER NOT NULL DEFAULT 0,
						rest_username TEXT,
						rest_password TEXT,
						created_at DATETIME NOT NULL,
						updated_at DATETIME NOT NULL
					)`,
					`CREATE INDEX IF NOT EXISTS idx_storages_serial ON storages(serial_number)`,
					`CREATE INDEX IF NOT EXISTS idx_storages_vendor_model ON storages(vendor, model)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
