package store

// Schema version tracking, identical for both dialects
const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

// Schema v1 - movie list
const schemaV1SQLite = `
CREATE TABLE IF NOT EXISTS movies (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  title VARCHAR(250) NOT NULL UNIQUE,
  title_key VARCHAR(250) NOT NULL UNIQUE,
  year INTEGER NOT NULL,
  description VARCHAR(250) NOT NULL,
  rating REAL,
  ranking INTEGER,
  review VARCHAR(250),
  img_url VARCHAR(250) NOT NULL,
  created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const schemaV1Postgres = `
CREATE TABLE IF NOT EXISTS movies (
  id SERIAL PRIMARY KEY,
  title VARCHAR(250) NOT NULL UNIQUE,
  title_key VARCHAR(250) NOT NULL UNIQUE,
  year INTEGER NOT NULL,
  description VARCHAR(250) NOT NULL,
  rating DOUBLE PRECISION,
  ranking INTEGER,
  review VARCHAR(250),
  img_url VARCHAR(250) NOT NULL,
  created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
);
`

// Schema v2 - index backing the ranked listing
const schemaV2 = `
CREATE INDEX IF NOT EXISTS idx_movies_rating ON movies(rating, id);
`

// migrations holds the ordered schema steps per dialect; entry i is version i+1
var migrations = map[Driver][]string{
	DriverSQLite:   {schemaV1SQLite, schemaV2},
	DriverPostgres: {schemaV1Postgres, schemaV2},
}

const currentSchemaVersion = 2
