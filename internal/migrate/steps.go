package migrate

// Step is a single ordered schema change. Statements use portable SQL and
// run inside one transaction per step.
type Step struct {
	ID          int64
	Description string
	Statements  []string
}

// Catalog returns the backend's schema history in ascending order.
func Catalog() []Step {
	return []Step{
		{
			ID:          1,
			Description: "create users table",
			Statements: []string{
				`CREATE TABLE users (
					id TEXT PRIMARY KEY,
					username VARCHAR(50) NOT NULL UNIQUE,
					email VARCHAR(255) NOT NULL UNIQUE,
					hashed_password VARCHAR(255) NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					is_verified BOOLEAN NOT NULL DEFAULT FALSE,
					full_name VARCHAR(255),
					dj_name VARCHAR(100),
					bio TEXT,
					profile_image_url VARCHAR(500),
					last_login TIMESTAMP,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX ix_users_username ON users (username)`,
				`CREATE INDEX ix_users_email ON users (email)`,
			},
		},
		{
			ID:          2,
			Description: "create stations and tracks tables",
			Statements: []string{
				`CREATE TABLE stations (
					id TEXT PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					slug VARCHAR(100) NOT NULL UNIQUE,
					description TEXT,
					genre VARCHAR(50),
					logo_url VARCHAR(500),
					website_url VARCHAR(500),
					stream_url VARCHAR(500),
					bitrate INTEGER NOT NULL DEFAULT 320,
					is_live BOOLEAN NOT NULL DEFAULT FALSE,
					social_links TEXT,
					total_listeners INTEGER NOT NULL DEFAULT 0,
					peak_listeners INTEGER NOT NULL DEFAULT 0,
					total_plays INTEGER NOT NULL DEFAULT 0,
					owner_id TEXT NOT NULL REFERENCES users (id),
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX ix_stations_slug ON stations (slug)`,
				`CREATE TABLE tracks (
					id TEXT PRIMARY KEY,
					title VARCHAR(255) NOT NULL,
					artist VARCHAR(255) NOT NULL,
					album VARCHAR(255),
					genre VARCHAR(100),
					year INTEGER,
					duration REAL,
					bpm REAL,
					musical_key VARCHAR(10),
					energy REAL,
					danceability REAL,
					file_path VARCHAR(500),
					file_size INTEGER,
					file_format VARCHAR(10),
					play_count INTEGER NOT NULL DEFAULT 0,
					rating REAL,
					uploader_id TEXT NOT NULL REFERENCES users (id),
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
			},
		},
		{
			ID:          3,
			Description: "create playlists and playlist_tracks tables",
			Statements: []string{
				`CREATE TABLE playlists (
					id TEXT PRIMARY KEY,
					name VARCHAR(100) NOT NULL,
					description TEXT,
					user_id TEXT NOT NULL REFERENCES users (id),
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
				`CREATE TABLE playlist_tracks (
					id TEXT PRIMARY KEY,
					playlist_id TEXT NOT NULL REFERENCES playlists (id),
					track_id TEXT NOT NULL REFERENCES tracks (id),
					position INTEGER NOT NULL,
					created_at TIMESTAMP NOT NULL,
					updated_at TIMESTAMP NOT NULL
				)`,
			},
		},
		{
			ID:          4,
			Description: "add dedicated stream provisioning tables",
			Statements: []string{
				`CREATE TABLE shoutcast_servers (
					id INTEGER PRIMARY KEY,
					host VARCHAR(255) NOT NULL,
					admin_port INTEGER NOT NULL,
					admin_username VARCHAR(100) NOT NULL,
					admin_password VARCHAR(255) NOT NULL,
					is_active BOOLEAN DEFAULT TRUE,
					max_ports INTEGER DEFAULT 100,
					port_range_start INTEGER DEFAULT 8100,
					port_range_end INTEGER DEFAULT 8200,
					created_at TIMESTAMP,
					updated_at TIMESTAMP
				)`,
				`CREATE TABLE port_pool (
					id INTEGER PRIMARY KEY,
					port_number INTEGER NOT NULL,
					server_id INTEGER NOT NULL REFERENCES shoutcast_servers (id),
					is_allocated BOOLEAN DEFAULT FALSE,
					allocated_at TIMESTAMP,
					allocated_to_stream_id VARCHAR(50),
					created_at TIMESTAMP,
					updated_at TIMESTAMP
				)`,
				`CREATE UNIQUE INDEX ix_port_pool_port_number ON port_pool (port_number)`,
				`CREATE INDEX ix_port_pool_allocated_to_stream_id ON port_pool (allocated_to_stream_id)`,
				`CREATE TABLE dedicated_streams (
					id INTEGER PRIMARY KEY,
					stream_id VARCHAR(50) NOT NULL UNIQUE,
					user_id TEXT NOT NULL REFERENCES users (id),
					station_id TEXT REFERENCES stations (id),
					server_id INTEGER NOT NULL REFERENCES shoutcast_servers (id),
					port INTEGER NOT NULL,
					source_password VARCHAR(255) NOT NULL,
					admin_password VARCHAR(255) NOT NULL,
					stream_title VARCHAR(255) NOT NULL,
					stream_description TEXT,
					max_listeners INTEGER DEFAULT 100,
					bitrate INTEGER DEFAULT 128,
					sample_rate INTEGER DEFAULT 44100,
					genre VARCHAR(100) DEFAULT 'Electronic',
					status VARCHAR(20) DEFAULT 'provisioning',
					is_live BOOLEAN DEFAULT FALSE,
					current_listeners INTEGER DEFAULT 0,
					created_at TIMESTAMP,
					activated_at TIMESTAMP,
					last_connection TIMESTAMP,
					updated_at TIMESTAMP
				)`,
			},
		},
	}
}
