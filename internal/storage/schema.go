package storage

// NotifyChannel is the PostgreSQL channel the attendees trigger publishes on
const NotifyChannel = "attendees_changes"

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS attendees (
	id TEXT PRIMARY KEY,
	seq BIGSERIAL,
	file_name TEXT,
	row_data JSONB NOT NULL DEFAULT '{}'::jsonb,
	bracelet_number TEXT,
	companion_bracelet_number TEXT,
	is_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
	confirmed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	column_order TEXT
)`,
	`ALTER TABLE attendees ADD COLUMN IF NOT EXISTS column_order TEXT`,
	`CREATE INDEX IF NOT EXISTS attendees_created_at_idx ON attendees (created_at, seq)`,
	`CREATE OR REPLACE FUNCTION attendees_notify() RETURNS trigger AS $$
BEGIN
	IF TG_OP = 'DELETE' THEN
		PERFORM pg_notify('` + NotifyChannel + `', json_build_object('op', TG_OP, 'id', OLD.id)::text);
		RETURN OLD;
	END IF;
	PERFORM pg_notify('` + NotifyChannel + `', json_build_object('op', TG_OP, 'id', NEW.id)::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS attendees_notify ON attendees`,
	`CREATE TRIGGER attendees_notify AFTER INSERT OR UPDATE OR DELETE ON attendees
	FOR EACH ROW EXECUTE FUNCTION attendees_notify()`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS attendees (
	id TEXT PRIMARY KEY,
	file_name TEXT,
	row_data TEXT NOT NULL DEFAULT '{}',
	bracelet_number TEXT,
	companion_bracelet_number TEXT,
	is_confirmed BOOLEAN NOT NULL DEFAULT 0,
	confirmed_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	column_order TEXT
)`,
	`CREATE INDEX IF NOT EXISTS attendees_created_at_idx ON attendees (created_at)`,
}
