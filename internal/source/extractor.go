package source

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/ignite/campaign-tracker/internal/config"
	"github.com/ignite/campaign-tracker/internal/pkg/logger"
)

// Connect opens and pings the source database for an environment.
func Connect(ctx context.Context, cfg config.SourceConfig) (*sql.DB, error) {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.Timeout = cfg.Timeout()
	mc.ReadTimeout = cfg.Timeout()
	mc.Params = map[string]string{"charset": "utf8mb4"}

	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, fmt.Errorf("configuring source connection: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(2)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to source %s/%s: %w", mc.Addr, cfg.Database, err)
	}
	return db, nil
}

// Extractor runs extraction queries.
type Extractor struct {
	db                  *sql.DB
	largeBatchThreshold int
}

// NewExtractor creates an extractor. A batch larger than largeBatchThreshold
// is logged as a warning; 0 disables the warning.
func NewExtractor(db *sql.DB, largeBatchThreshold int) *Extractor {
	return &Extractor{db: db, largeBatchThreshold: largeBatchThreshold}
}

// Extract runs the SELECT for p and returns rows oldest first.
func (e *Extractor) Extract(ctx context.Context, p Predicate) ([]RawRecord, error) {
	query := p.Query()
	logger.Debug("running extraction query", "query", query, "args", len(p.Args))

	rows, err := e.db.QueryContext(ctx, query, p.Args...)
	if err != nil {
		return nil, fmt.Errorf("extraction query failed: %w", err)
	}
	defer rows.Close()

	var out []RawRecord
	for rows.Next() {
		var r RawRecord
		if err := rows.Scan(r.scanTargets()...); err != nil {
			return nil, fmt.Errorf("scanning source row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading source rows: %w", err)
	}

	if e.largeBatchThreshold > 0 && len(out) > e.largeBatchThreshold {
		logger.Warn("unusually large extraction batch", "rows", len(out), "threshold", e.largeBatchThreshold)
	}
	return out, nil
}
