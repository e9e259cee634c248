package migrations

import "embed"

// PostgresFS carries the simulation_runs schema, applied at startup.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS carries the run_statistics schema, applied at startup.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
