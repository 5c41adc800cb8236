package storage

const createClientStateSQL = `
CREATE TABLE IF NOT EXISTS client_state (
    key        TEXT PRIMARY KEY,
    value      BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const selectValueSQL = `SELECT value FROM client_state WHERE key = $1`

const selectValueForUpdateSQL = `SELECT value FROM client_state WHERE key = $1 FOR UPDATE`

const upsertValueSQL = `
INSERT INTO client_state (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
`

const deleteValueSQL = `DELETE FROM client_state WHERE key = $1`
