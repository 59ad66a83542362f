// Package baseline persists the curated regulation baseline: the known
// mandatory and recommended regulations per country and industry, their
// verification track record, and a confidence score derived from both. The
// research pipeline reads it for search keywords and the scheduled verifier
// writes probe outcomes back.
package baseline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when a regulation id does not exist or is inactive.
var ErrNotFound = errors.New("regulation not found")

// Keyword is one search keyword with its ordering priority (lower first).
type Keyword struct {
	Text     string `json:"keyword"`
	Priority int    `json:"priority"`
}

// Regulation is one baseline entry.
type Regulation struct {
	ID                   int64
	Name                 string
	NameEN               string
	CountryCode          string
	IndustryCode         string
	TopicCode            string
	LawNumber            string
	CompetentAuthority   string
	SearchKeywords       []Keyword
	ApplicableIndustries []string
	EffectiveDate        string
	LastAmendedDate      string
	IsMandatory          bool
	Priority             int
	Notes                string
	SourceURL            string
	ConfidenceScore      float64
	IsVerified           bool
	FoundCount           int
	NotFoundCount        int
	LastVerifiedAt       *time.Time
	LastFoundAt          *time.Time
	IsActive             bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Patch updates a subset of mutable regulation fields. Nil fields are left
// untouched.
type Patch struct {
	Name               *string
	NameEN             *string
	TopicCode          *string
	LawNumber          *string
	CompetentAuthority *string
	SearchKeywords     *[]Keyword
	EffectiveDate      *string
	LastAmendedDate    *string
	IsMandatory        *bool
	Priority           *int
	Notes              *string
	SourceURL          *string
}

// Filter narrows List results. Zero fields match everything active.
type Filter struct {
	CountryCode   string
	IndustryCode  string
	TopicCode     string
	MandatoryOnly bool
	// Verified selects entries by their verification flag when non-nil.
	Verified      *bool
	MinConfidence float64
	Limit         int
}

// Verification describes one probe outcome to record.
type Verification struct {
	Found bool
	// Type is scheduled, manual or search.
	Type        string
	SearchQuery string
	ResultCount int
	ResultURL   string
	Notes       string
	VerifiedBy  string
}

// VerificationLog is one recorded probe outcome, immutable after insert.
type VerificationLog struct {
	ID            int64
	BaselineID    int64
	VerifiedAt    time.Time
	Type          string
	Found         bool
	SearchQuery   string
	ResultCount   int
	ResultURL     string
	OldConfidence float64
	NewConfidence float64
	Notes         string
	VerifiedBy    string
}

// Stats summarizes the baseline corpus.
type Stats struct {
	Total         int
	Mandatory     int
	Verified      int
	NeverVerified int
	AvgConfidence float64
	ByCountry     map[string]int
	ByIndustry    map[string]int
}

// Store wraps the SQLite database. All mutations commit before returning.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the baseline database at path and applies
// the schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	dsn := path + "?_busy_timeout=5000&_journal_mode=WAL&_fk=1"
	if path == ":memory:" {
		dsn = path
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open baseline db: %w", err)
	}
	// SQLite allows one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now().UTC()
	}
	return time.Now().UTC()
}

// UpsertCountry inserts or updates a country reference row.
func (s *Store) UpsertCountry(ctx context.Context, code, name, nameEN string) error {
	return s.upsertRef(ctx, "countries", code, name, nameEN)
}

// UpsertIndustry inserts or updates an industry reference row.
func (s *Store) UpsertIndustry(ctx context.Context, code, name, nameEN string) error {
	return s.upsertRef(ctx, "industries", code, name, nameEN)
}

// UpsertTopic inserts or updates a topic reference row.
func (s *Store) UpsertTopic(ctx context.Context, code, name, nameEN string) error {
	return s.upsertRef(ctx, "topics", code, name, nameEN)
}

func (s *Store) upsertRef(ctx context.Context, table, code, name, nameEN string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || name == "" {
		return fmt.Errorf("%s upsert: code and name required", table)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (code, name, name_en, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET name = excluded.name, name_en = excluded.name_en, is_active = 1`,
		code, name, nameEN, s.clock())
	if err != nil {
		return fmt.Errorf("upsert %s %s: %w", table, code, err)
	}
	return nil
}

// Add inserts a regulation. When an active entry with the same
// (name, country, industry) already exists, its id is returned unchanged so
// repeated seeding stays idempotent.
func (s *Store) Add(ctx context.Context, r Regulation) (int64, error) {
	if r.Name == "" || r.CountryCode == "" || r.IndustryCode == "" {
		return 0, errors.New("name, country_code and industry_code are required")
	}
	keywords, err := marshalKeywords(r.SearchKeywords)
	if err != nil {
		return 0, err
	}
	industries, err := json.Marshal(nonNil(r.ApplicableIndustries))
	if err != nil {
		return 0, err
	}
	if r.Priority == 0 {
		r.Priority = 99
	}
	now := s.clock()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO regulation_baselines
		 (name, name_en, country_code, industry_code, topic_code, law_number,
		  competent_authority, search_keywords, applicable_industries,
		  effective_date, last_amended_date, is_mandatory, priority, notes,
		  source_url, confidence_score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Name, r.NameEN, r.CountryCode, r.IndustryCode, r.TopicCode,
		r.LawNumber, r.CompetentAuthority, keywords, string(industries),
		r.EffectiveDate, r.LastAmendedDate, r.IsMandatory, r.Priority,
		r.Notes, r.SourceURL, r.ConfidenceScore, now, now)
	if err != nil {
		return 0, fmt.Errorf("insert regulation %q: %w", r.Name, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		log.Debug().Int64("id", id).Str("name", r.Name).Str("country", r.CountryCode).Msg("regulation added")
		return id, nil
	}
	// Unique hit: hand back the existing entry and reactivate it if needed.
	var id int64
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM regulation_baselines WHERE name = ? AND country_code = ? AND industry_code = ?`,
		r.Name, r.CountryCode, r.IndustryCode).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("lookup existing regulation %q: %w", r.Name, err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE regulation_baselines SET is_active = 1, updated_at = ? WHERE id = ?`, now, id); err != nil {
		return 0, err
	}
	return id, nil
}

// Update applies a patch to an active regulation.
func (s *Store) Update(ctx context.Context, id int64, p Patch) error {
	sets := make([]string, 0, 12)
	args := make([]any, 0, 13)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.NameEN != nil {
		add("name_en", *p.NameEN)
	}
	if p.TopicCode != nil {
		add("topic_code", *p.TopicCode)
	}
	if p.LawNumber != nil {
		add("law_number", *p.LawNumber)
	}
	if p.CompetentAuthority != nil {
		add("competent_authority", *p.CompetentAuthority)
	}
	if p.SearchKeywords != nil {
		raw, err := marshalKeywords(*p.SearchKeywords)
		if err != nil {
			return err
		}
		add("search_keywords", raw)
	}
	if p.EffectiveDate != nil {
		add("effective_date", *p.EffectiveDate)
	}
	if p.LastAmendedDate != nil {
		add("last_amended_date", *p.LastAmendedDate)
	}
	if p.IsMandatory != nil {
		add("is_mandatory", *p.IsMandatory)
	}
	if p.Priority != nil {
		add("priority", *p.Priority)
	}
	if p.Notes != nil {
		add("notes", *p.Notes)
	}
	if p.SourceURL != nil {
		add("source_url", *p.SourceURL)
	}
	if len(sets) == 0 {
		return nil
	}
	add("updated_at", s.clock())
	args = append(args, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE regulation_baselines SET `+strings.Join(sets, ", ")+` WHERE id = ? AND is_active = 1`,
		args...)
	if err != nil {
		return fmt.Errorf("update regulation %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete deactivates a regulation. Rows are never physically removed so the
// verification log keeps its referent.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE regulation_baselines SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1`,
		s.clock(), id)
	if err != nil {
		return fmt.Errorf("delete regulation %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

const regulationColumns = `id, name, name_en, country_code, industry_code, topic_code,
	law_number, competent_authority, search_keywords, applicable_industries,
	effective_date, last_amended_date, is_mandatory, priority, notes, source_url,
	confidence_score, is_verified, found_count, not_found_count, last_verified_at,
	last_found_at, is_active, created_at, updated_at`

// Get returns an active regulation by id.
func (s *Store) Get(ctx context.Context, id int64) (Regulation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+regulationColumns+` FROM regulation_baselines WHERE id = ? AND is_active = 1`, id)
	r, err := scanRegulation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Regulation{}, ErrNotFound
	}
	return r, err
}

// List returns active regulations matching the filter, mandatory entries
// first, then by descending confidence.
func (s *Store) List(ctx context.Context, f Filter) ([]Regulation, error) {
	where := []string{"is_active = 1"}
	args := []any{}
	if f.CountryCode != "" {
		where = append(where, "country_code = ?")
		args = append(args, f.CountryCode)
	}
	if f.IndustryCode != "" {
		where = append(where, "industry_code = ?")
		args = append(args, f.IndustryCode)
	}
	if f.TopicCode != "" {
		where = append(where, "topic_code = ?")
		args = append(args, f.TopicCode)
	}
	if f.MandatoryOnly {
		where = append(where, "is_mandatory = 1")
	}
	if f.Verified != nil {
		where = append(where, "is_verified = ?")
		args = append(args, *f.Verified)
	}
	if f.MinConfidence > 0 {
		where = append(where, "confidence_score >= ?")
		args = append(args, f.MinConfidence)
	}
	q := `SELECT ` + regulationColumns + ` FROM regulation_baselines WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY is_mandatory DESC, confidence_score DESC, name ASC`
	if f.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", f.Limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list regulations: %w", err)
	}
	defer rows.Close()
	var out []Regulation
	for rows.Next() {
		r, err := scanRegulation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SearchKeywords returns the keywords of active regulations in scope, sorted
// mandatory first and then by keyword priority. This is what the researcher
// seeds its searches with.
func (s *Store) SearchKeywords(ctx context.Context, countryCode, industryCode string) ([]string, error) {
	regs, err := s.List(ctx, Filter{CountryCode: countryCode, IndustryCode: industryCode})
	if err != nil {
		return nil, err
	}
	type ranked struct {
		text      string
		mandatory bool
		priority  int
	}
	var all []ranked
	seen := make(map[string]struct{})
	for _, r := range regs {
		for _, k := range r.SearchKeywords {
			if k.Text == "" {
				continue
			}
			if _, dup := seen[k.Text]; dup {
				continue
			}
			seen[k.Text] = struct{}{}
			all = append(all, ranked{text: k.Text, mandatory: r.IsMandatory, priority: k.Priority})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].mandatory != all[j].mandatory {
			return all[i].mandatory
		}
		return all[i].priority < all[j].priority
	})
	out := make([]string, len(all))
	for i, k := range all {
		out[i] = k.text
	}
	return out, nil
}

// KeywordRef ties one keyword back to the mandatory regulation it belongs to.
type KeywordRef struct {
	Keyword        string `json:"keyword"`
	RegulationName string `json:"regulation_name"`
	RegulationID   int64  `json:"regulation_id"`
	Priority       int    `json:"priority"`
}

// MandatoryKeywords flattens the keywords of mandatory regulations in scope,
// sorted by ascending keyword priority.
func (s *Store) MandatoryKeywords(ctx context.Context, countryCode, industryCode string) ([]KeywordRef, error) {
	regs, err := s.List(ctx, Filter{CountryCode: countryCode, IndustryCode: industryCode, MandatoryOnly: true})
	if err != nil {
		return nil, err
	}
	var out []KeywordRef
	for _, r := range regs {
		for _, k := range r.SearchKeywords {
			if k.Text == "" {
				continue
			}
			out = append(out, KeywordRef{
				Keyword:        k.Text,
				RegulationName: r.Name,
				RegulationID:   r.ID,
				Priority:       k.Priority,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })
	return out, nil
}

// RecordVerification records one probe outcome atomically: counters, the
// last-seen timestamps, the recomputed confidence and the log row all land in
// a single transaction. It returns the new confidence score.
func (s *Store) RecordVerification(ctx context.Context, id int64, v Verification) (float64, error) {
	if v.Type == "" {
		v.Type = "search"
	}
	if v.VerifiedBy == "" {
		v.VerifiedBy = "system"
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin verification tx: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+regulationColumns+` FROM regulation_baselines WHERE id = ? AND is_active = 1`, id)
	r, err := scanRegulation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	oldScore := r.ConfidenceScore

	now := s.clock()
	r.LastVerifiedAt = &now
	if v.Found {
		r.IsVerified = true
		r.FoundCount++
		r.LastFoundAt = &now
	} else {
		r.NotFoundCount++
	}
	score := ComputeConfidence(r, now)

	_, err = tx.ExecContext(ctx,
		`UPDATE regulation_baselines
		 SET is_verified = ?, found_count = ?, not_found_count = ?, last_verified_at = ?,
		     last_found_at = ?, confidence_score = ?, updated_at = ?
		 WHERE id = ?`,
		r.IsVerified, r.FoundCount, r.NotFoundCount, now, nullableTime(r.LastFoundAt), score, now, id)
	if err != nil {
		return 0, fmt.Errorf("update verification counters: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO verification_logs
		 (baseline_id, verified_at, verification_type, found, search_query,
		  result_count, result_url, old_confidence, new_confidence, notes, verified_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, now, v.Type, v.Found, v.SearchQuery, v.ResultCount, v.ResultURL,
		oldScore, score, v.Notes, v.VerifiedBy)
	if err != nil {
		return 0, fmt.Errorf("insert verification log: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit verification: %w", err)
	}
	log.Debug().Int64("id", id).Bool("found", v.Found).Float64("confidence", score).Msg("verification recorded")
	return score, nil
}

// Stale returns active regulations never verified or last verified before
// now-threshold, mandatory entries first, capped at maxCount.
func (s *Store) Stale(ctx context.Context, threshold time.Duration, maxCount int) ([]Regulation, error) {
	if maxCount <= 0 {
		maxCount = 50
	}
	cutoff := s.clock().Add(-threshold)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+regulationColumns+` FROM regulation_baselines
		 WHERE is_active = 1 AND (last_verified_at IS NULL OR last_verified_at < ?)
		 ORDER BY is_mandatory DESC, priority ASC
		 LIMIT ?`, cutoff, maxCount)
	if err != nil {
		return nil, fmt.Errorf("select stale regulations: %w", err)
	}
	defer rows.Close()
	var out []Regulation
	for rows.Next() {
		r, err := scanRegulation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// VerificationHistory returns the most recent probe outcomes for one
// regulation, newest first.
func (s *Store) VerificationHistory(ctx context.Context, id int64, limit int) ([]VerificationLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, baseline_id, verified_at, verification_type, found, search_query,
		        result_count, result_url, old_confidence, new_confidence, notes, verified_by
		 FROM verification_logs WHERE baseline_id = ?
		 ORDER BY verified_at DESC, id DESC LIMIT ?`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("select verification history: %w", err)
	}
	defer rows.Close()
	var out []VerificationLog
	for rows.Next() {
		var v VerificationLog
		err := rows.Scan(&v.ID, &v.BaselineID, &v.VerifiedAt, &v.Type, &v.Found,
			&v.SearchQuery, &v.ResultCount, &v.ResultURL,
			&v.OldConfidence, &v.NewConfidence, &v.Notes, &v.VerifiedBy)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Statistics summarizes the active corpus.
func (s *Store) Statistics(ctx context.Context) (Stats, error) {
	st := Stats{ByCountry: make(map[string]int), ByIndustry: make(map[string]int)}
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(is_mandatory), 0),
		        COALESCE(SUM(CASE WHEN last_verified_at IS NOT NULL THEN 1 ELSE 0 END), 0),
		        COALESCE(AVG(confidence_score), 0)
		 FROM regulation_baselines WHERE is_active = 1`).
		Scan(&st.Total, &st.Mandatory, &st.Verified, &st.AvgConfidence)
	if err != nil {
		return st, fmt.Errorf("baseline statistics: %w", err)
	}
	st.NeverVerified = st.Total - st.Verified
	for col, dst := range map[string]map[string]int{
		"country_code":  st.ByCountry,
		"industry_code": st.ByIndustry,
	} {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+col+`, COUNT(*) FROM regulation_baselines
			 WHERE is_active = 1 GROUP BY `+col)
		if err != nil {
			return st, err
		}
		for rows.Next() {
			var code string
			var n int
			if err := rows.Scan(&code, &n); err != nil {
				rows.Close()
				return st, err
			}
			dst[code] = n
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return st, err
		}
		rows.Close()
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegulation(row rowScanner) (Regulation, error) {
	var r Regulation
	var keywords, industries string
	var lastVerified, lastFound sql.NullTime
	err := row.Scan(&r.ID, &r.Name, &r.NameEN, &r.CountryCode, &r.IndustryCode,
		&r.TopicCode, &r.LawNumber, &r.CompetentAuthority, &keywords, &industries,
		&r.EffectiveDate, &r.LastAmendedDate, &r.IsMandatory, &r.Priority,
		&r.Notes, &r.SourceURL, &r.ConfidenceScore, &r.IsVerified,
		&r.FoundCount, &r.NotFoundCount,
		&lastVerified, &lastFound, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return Regulation{}, err
	}
	if lastVerified.Valid {
		t := lastVerified.Time
		r.LastVerifiedAt = &t
	}
	if lastFound.Valid {
		t := lastFound.Time
		r.LastFoundAt = &t
	}
	if err := json.Unmarshal([]byte(keywords), &r.SearchKeywords); err != nil {
		return Regulation{}, fmt.Errorf("decode keywords for regulation %d: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(industries), &r.ApplicableIndustries); err != nil {
		return Regulation{}, fmt.Errorf("decode industries for regulation %d: %w", r.ID, err)
	}
	return r, nil
}

func marshalKeywords(ks []Keyword) (string, error) {
	if ks == nil {
		ks = []Keyword{}
	}
	raw, err := json.Marshal(ks)
	if err != nil {
		return "", fmt.Errorf("encode keywords: %w", err)
	}
	return string(raw), nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
