package postgres

const schema = `
CREATE TABLE IF NOT EXISTS images (
	id              VARCHAR(26) PRIMARY KEY,
	filename        TEXT        NOT NULL,
	content_type    TEXT        NOT NULL,
	format          VARCHAR(8)  NOT NULL,
	width           INTEGER     NOT NULL,
	height          INTEGER     NOT NULL,
	size_bytes      BIGINT      NOT NULL,
	original_key    TEXT        NOT NULL,
	processed_key   TEXT,
	corner_points   JSONB,
	processing_time DOUBLE PRECISION,
	processed_at    TIMESTAMPTZ,
	upload_time     TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS image_processings (
	id              VARCHAR(26) PRIMARY KEY,
	image_id        VARCHAR(26) NOT NULL REFERENCES images (id) ON DELETE CASCADE,
	corner_points   JSONB       NOT NULL,
	output_width    INTEGER     NOT NULL,
	output_height   INTEGER     NOT NULL,
	enhanced        BOOLEAN     NOT NULL DEFAULT FALSE,
	status          VARCHAR(16) NOT NULL,
	error_message   TEXT,
	processing_time DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_image_processings_image_id
	ON image_processings (image_id, created_at DESC);
`
