package postgres

// SQL statement templates for the reporting persistence layer.
// Table and column layout is the on-disk contract; see internal/migrations.

import "github.com/dashpin-lab/dashpin/internal/core/reporting"

const (
	// queryUpsertUser replaces the serialized snapshot on conflict,
	// so repeated saves for one owner are last-write-wins.
	queryUpsertUser = `
		INSERT INTO users (username, json)
		VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET json = EXCLUDED.json
	`

	queryInsertMinute = `
		INSERT INTO reporting_average_minute (username, dash_id, pin, pin_type, ts, value)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	queryInsertHourly = `
		INSERT INTO reporting_average_hourly (username, dash_id, pin, pin_type, ts, value)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	queryInsertDaily = `
		INSERT INTO reporting_average_daily (username, dash_id, pin, pin_type, ts, value)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	querySelectMinute = `SELECT ts, value FROM reporting_average_minute WHERE ts > $1 ORDER BY ts DESC LIMIT $2`
	querySelectHourly = `SELECT ts, value FROM reporting_average_hourly WHERE ts > $1 ORDER BY ts DESC LIMIT $2`
	querySelectDaily  = `SELECT ts, value FROM reporting_average_daily WHERE ts > $1 ORDER BY ts DESC LIMIT $2`

	queryDeleteMinute = `DELETE FROM reporting_average_minute WHERE ts < $1`
	queryDeleteHourly = `DELETE FROM reporting_average_hourly WHERE ts < $1`
	queryDeleteDaily  = `DELETE FROM reporting_average_daily WHERE ts < $1`
)

// graphQueries maps each granularity to its statement templates. Keeping the
// three granularities in one lookup keeps them symmetric; adding a fourth
// table means adding one row here and one migration.
type graphQueries struct {
	insert string
	sel    string
	del    string
}

var queriesByGraph = map[reporting.GraphType]graphQueries{
	reporting.GraphMinute: {insert: queryInsertMinute, sel: querySelectMinute, del: queryDeleteMinute},
	reporting.GraphHourly: {insert: queryInsertHourly, sel: querySelectHourly, del: queryDeleteHourly},
	reporting.GraphDaily:  {insert: queryInsertDaily, sel: querySelectDaily, del: queryDeleteDaily},
}
