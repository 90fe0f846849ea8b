// Package database owns the SQLite file backing the device catalogue.
//
// The connection runs in WAL mode with a single pooled connection,
// which matches SQLite's one-writer model and keeps the busy-timeout
// pragma effective. Schema changes ship as embedded migrations: paired
// {version}_{name}.up.sql / .down.sql files applied oldest first, each
// in its own transaction, tracked in schema_migrations.
//
// Typical startup:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// The file holds device secret hashes, so Open chmods it to 0600.
// All repository queries use parameterised statements.
package database
