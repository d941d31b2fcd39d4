// Package database opens the bridge's SQLite store and applies its
// schema migrations.
//
// The store holds the join maps last linked for each device and the
// operator overrides edited at runtime. SQLite runs in WAL mode with a
// single writer connection.
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.Source()); err != nil {
//	    return err
//	}
//
// Migration files are additive: new columns are nullable or defaulted,
// and each .up.sql has a matching .down.sql.
package database
