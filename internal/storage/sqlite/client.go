package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/askroute/backend/internal/models"
	"github.com/askroute/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err = db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS knowledge_entries (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		domain TEXT,
		source_url TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_domain ON knowledge_entries(domain);

	CREATE VIRTUAL TABLE IF NOT EXISTS knowledge_fts USING fts5(
		title, body, content='knowledge_entries', content_rowid='rowid'
	);

	CREATE TRIGGER IF NOT EXISTS knowledge_fts_insert AFTER INSERT ON knowledge_entries BEGIN
		INSERT INTO knowledge_fts(rowid, title, body) VALUES (new.rowid, new.title, new.body);
	END;
	CREATE TRIGGER IF NOT EXISTS knowledge_fts_delete AFTER DELETE ON knowledge_entries BEGIN
		INSERT INTO knowledge_fts(knowledge_fts, rowid, title, body) VALUES ('delete', old.rowid, old.title, old.body);
	END;
	CREATE TRIGGER IF NOT EXISTS knowledge_fts_update AFTER UPDATE ON knowledge_entries BEGIN
		INSERT INTO knowledge_fts(knowledge_fts, rowid, title, body) VALUES ('delete', old.rowid, old.title, old.body);
		INSERT INTO knowledge_fts(rowid, title, body) VALUES (new.rowid, new.title, new.body);
	END;

	CREATE TABLE IF NOT EXISTS route_history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		query_text TEXT NOT NULL,
		query_type TEXT,
		strategy TEXT,
		answer TEXT,
		confidence INTEGER,
		cache_hit INTEGER DEFAULT 0,
		conflict INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_route_user ON route_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_route_type ON route_history(query_type);
	CREATE INDEX IF NOT EXISTS idx_route_created ON route_history(created_at);

	CREATE TABLE IF NOT EXISTS route_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		route_id TEXT NOT NULL,
		source TEXT NOT NULL,
		confidence INTEGER,
		original_confidence INTEGER,
		latency_ms INTEGER,
		failed INTEGER DEFAULT 0,
		FOREIGN KEY (route_id) REFERENCES route_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_route_sources_route ON route_sources(route_id);
	CREATE INDEX IF NOT EXISTS idx_route_sources_source ON route_sources(source);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		route_id TEXT NOT NULL,
		helpful INTEGER NOT NULL,
		comment TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (route_id) REFERENCES route_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_route ON feedback(route_id);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

type KnowledgeEntry struct {
	ID        string
	Title     string
	Body      string
	Domain    string
	SourceURL string
	Rank      float64
}

func (c *Client) InsertKnowledgeEntry(entry *KnowledgeEntry) error {
	query := `
		INSERT INTO knowledge_entries (id, title, body, domain, source_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			domain = excluded.domain,
			updated_at = excluded.updated_at
	`

	now := time.Now().Unix()
	if _, err := c.db.Exec(query, entry.ID, entry.Title, entry.Body, entry.Domain, entry.SourceURL, now, now); err != nil {
		return fmt.Errorf("failed to insert knowledge entry: %w", err)
	}
	return nil
}

// SearchKnowledge runs an FTS match over the local knowledge table, best
// matches first. The raw query text is quoted per-term so user punctuation
// cannot break the match expression.
func (c *Client) SearchKnowledge(queryText string, limit int) ([]KnowledgeEntry, error) {
	match := ftsMatchExpr(queryText)
	if match == "" {
		return nil, nil
	}

	query := `
		SELECT k.id, k.title, k.body, k.domain, k.source_url, bm25(knowledge_fts) AS rank
		FROM knowledge_fts f
		JOIN knowledge_entries k ON k.rowid = f.rowid
		WHERE knowledge_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`

	rows, err := c.db.Query(query, match, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search knowledge: %w", err)
	}
	defer rows.Close()

	var entries []KnowledgeEntry
	for rows.Next() {
		var e KnowledgeEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.Body, &e.Domain, &e.SourceURL, &e.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func ftsMatchExpr(text string) string {
	terms := strings.Fields(text)
	quoted := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ReplaceAll(term, `"`, "")
		if term != "" {
			quoted = append(quoted, `"`+term+`"`)
		}
	}
	return strings.Join(quoted, " OR ")
}

func (c *Client) InsertRouteRecord(record *models.RouteRecord) error {
	query := `
		INSERT INTO route_history (id, user_id, query_text, query_type, strategy, answer,
			confidence, cache_hit, conflict, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.UserID,
		record.QueryText,
		string(record.QueryType),
		record.Strategy,
		record.Answer,
		record.Confidence,
		boolToInt(record.CacheHit),
		boolToInt(record.Conflict),
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert route record: %w", err)
	}
	return nil
}

func (c *Client) InsertRouteSource(rs *models.RouteSource) error {
	query := `
		INSERT INTO route_sources (route_id, source, confidence, original_confidence, latency_ms, failed)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(query, rs.RouteID, rs.Source, rs.Confidence, rs.OriginalConfidence, rs.LatencyMS, boolToInt(rs.Failed))
	if err != nil {
		return fmt.Errorf("failed to insert route source: %w", err)
	}
	return nil
}

func (c *Client) StoreFeedback(fb *models.Feedback) error {
	query := `INSERT INTO feedback (route_id, helpful, comment, created_at) VALUES (?, ?, ?, ?)`

	if _, err := c.db.Exec(query, fb.RouteID, boolToInt(fb.Helpful), fb.Comment, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}

	logger.Info("Feedback stored", zap.String("route_id", fb.RouteID), zap.Bool("helpful", fb.Helpful))
	return nil
}

func (c *Client) GetRouteHistory(userID string, limit int) ([]models.RouteRecord, error) {
	query := `
		SELECT id, query_text, query_type, strategy, answer, confidence, conflict, latency_ms, created_at
		FROM route_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get route history: %w", err)
	}
	defer rows.Close()

	var records []models.RouteRecord
	for rows.Next() {
		var r models.RouteRecord
		var queryType string
		var conflict int
		var createdAt int64

		if err := rows.Scan(&r.ID, &r.QueryText, &queryType, &r.Strategy, &r.Answer, &r.Confidence, &conflict, &r.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		r.QueryType = models.QueryType(queryType)
		r.Conflict = conflict == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}

// SourceAccuracy computes, per source, the fraction of feedback-bearing
// routes the source contributed to that users marked helpful.
func (c *Client) SourceAccuracy() (map[string]float64, error) {
	query := `
		SELECT rs.source, AVG(CAST(f.helpful AS REAL))
		FROM route_sources rs
		JOIN feedback f ON f.route_id = rs.route_id
		WHERE rs.failed = 0
		GROUP BY rs.source
	`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compute source accuracy: %w", err)
	}
	defer rows.Close()

	accuracy := make(map[string]float64)
	for rows.Next() {
		var source string
		var ratio float64
		if err := rows.Scan(&source, &ratio); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		accuracy[source] = ratio
	}
	return accuracy, rows.Err()
}

// SourcePerformance aggregates per-source confidence, success rate and
// latency for one query type.
func (c *Client) SourcePerformance(queryType models.QueryType) (map[string]models.SourcePerformance, error) {
	query := `
		SELECT rs.source,
			AVG(CAST(rs.confidence AS REAL)),
			AVG(CASE WHEN rs.failed = 0 THEN 1.0 ELSE 0.0 END),
			AVG(CAST(rs.latency_ms AS REAL)),
			COUNT(*)
		FROM route_sources rs
		JOIN route_history rh ON rh.id = rs.route_id
		WHERE rh.query_type = ?
		GROUP BY rs.source
	`

	rows, err := c.db.Query(query, string(queryType))
	if err != nil {
		return nil, fmt.Errorf("failed to compute source performance: %w", err)
	}
	defer rows.Close()

	perf := make(map[string]models.SourcePerformance)
	for rows.Next() {
		var p models.SourcePerformance
		if err := rows.Scan(&p.Source, &p.AvgConfidence, &p.SuccessRate, &p.AvgLatencyMS, &p.Samples); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		p.QueryType = queryType
		perf[p.Source] = p
	}
	return perf, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
