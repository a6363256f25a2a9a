package alertsource

import (
	"database/sql"

	"github.com/merliyatf/delfin/pkg/module"
)

func migrations() []module.Migration {
	return []module.Migration{
		{
			Version:     1,
			Description: "create alert_sources table",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS alert_sources (
						storage_id TEXT PRIMARY KEY,
						version TEXT NOT NULL,
						host TEXT NOT NULL,
						port INTEGER NOT NULL DEFAULT 162,
						community_string TEXT NOT NULL DEFAULT '',
						username TEXT NOT NULL DEFAULT '',
						security_level TEXT NOT NULL DEFAULT '',
						engine_id TEXT NOT NULL DEFAULT '',
						auth_protocol TEXT NOT NULL DEFAULT '',
						auth_key TEXT NOT NULL DEFAULT '',
						privacy_protocol TEXT NOT NULL DEFAULT '',
						privacy_key TEXT NOT NULL DEFAULT '',
						created_at DATETIME NOT NULL,
						updated_at DATETIME NOT NULL
					)`,
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
