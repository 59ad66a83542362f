package baseline

// Schema is applied on every Open. All statements are idempotent so opening
// an existing database is safe.
const schema = `
CREATE TABLE IF NOT EXISTS countries (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    code        TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL,
    name_en     TEXT NOT NULL DEFAULT '',
    is_active   INTEGER NOT NULL DEFAULT 1,
    created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS industries (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    code        TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL,
    name_en     TEXT NOT NULL DEFAULT '',
    is_active   INTEGER NOT NULL DEFAULT 1,
    created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS topics (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    code        TEXT NOT NULL UNIQUE,
    name        TEXT NOT NULL,
    name_en     TEXT NOT NULL DEFAULT '',
    is_active   INTEGER NOT NULL DEFAULT 1,
    created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS regulation_baselines (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    name                  TEXT NOT NULL,
    name_en               TEXT NOT NULL DEFAULT '',
    country_code          TEXT NOT NULL,
    industry_code         TEXT NOT NULL,
    topic_code            TEXT NOT NULL DEFAULT '',
    law_number            TEXT NOT NULL DEFAULT '',
    competent_authority   TEXT NOT NULL DEFAULT '',
    search_keywords       TEXT NOT NULL DEFAULT '[]',
    applicable_industries TEXT NOT NULL DEFAULT '[]',
    effective_date        TEXT NOT NULL DEFAULT '',
    last_amended_date     TEXT NOT NULL DEFAULT '',
    is_mandatory          INTEGER NOT NULL DEFAULT 0,
    priority              INTEGER NOT NULL DEFAULT 99,
    notes                 TEXT NOT NULL DEFAULT '',
    source_url            TEXT NOT NULL DEFAULT '',
    confidence_score      REAL NOT NULL DEFAULT 0,
    is_verified           INTEGER NOT NULL DEFAULT 0,
    found_count           INTEGER NOT NULL DEFAULT 0,
    not_found_count       INTEGER NOT NULL DEFAULT 0,
    last_verified_at      TIMESTAMP,
    last_found_at         TIMESTAMP,
    is_active             INTEGER NOT NULL DEFAULT 1,
    created_at            TIMESTAMP NOT NULL,
    updated_at            TIMESTAMP NOT NULL,
    UNIQUE (name, country_code, industry_code)
);

CREATE TABLE IF NOT EXISTS verification_logs (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    baseline_id       INTEGER NOT NULL REFERENCES regulation_baselines(id),
    verified_at       TIMESTAMP NOT NULL,
    verification_type TEXT NOT NULL DEFAULT 'search',
    found             INTEGER NOT NULL,
    search_query      TEXT NOT NULL DEFAULT '',
    result_count      INTEGER NOT NULL DEFAULT 0,
    result_url        TEXT NOT NULL DEFAULT '',
    old_confidence    REAL NOT NULL DEFAULT 0,
    new_confidence    REAL NOT NULL DEFAULT 0,
    notes             TEXT NOT NULL DEFAULT '',
    verified_by       TEXT NOT NULL DEFAULT 'system'
);

CREATE INDEX IF NOT EXISTS idx_baselines_scope
    ON regulation_baselines (country_code, industry_code, topic_code);
CREATE INDEX IF NOT EXISTS idx_baselines_confidence
    ON regulation_baselines (confidence_score);
CREATE INDEX IF NOT EXISTS idx_baselines_mandatory
    ON regulation_baselines (is_mandatory);
CREATE INDEX IF NOT EXISTS idx_verification_logs_baseline
    ON verification_logs (baseline_id, verified_at);
`
