package sink

var postgresDDL = []string{
	`CREATE TABLE IF NOT EXISTS navigation_data (
		id SERIAL PRIMARY KEY,
		timestamp TIMESTAMPTZ DEFAULT NOW(),
		rate_of_turn REAL,
		heading REAL,
		AWA REAL,
		AWS REAL,
		true_track REAL,
		mag_track REAL,
		speed REAL,
		true_course REAL,
		mag_var REAL,
		mag_var_dir VARCHAR(2),
		true_heading REAL,
		heading_magnetic REAL,
		water_speed REAL,
		temperature REAL,
		depth REAL,
		trip_distance REAL,
		lat REAL,
		lat_dir VARCHAR(2),
		lon REAL,
		lon_dir VARCHAR(2),
		num_sats INTEGER,
		horizontal_dil REAL,
		altitude REAL,
		geo_sep REAL,
		TWA REAL,
		TWS REAL
	)`,
	`CREATE INDEX IF NOT EXISTS navigation_data_timestamp_idx ON navigation_data (timestamp)`,
	`CREATE TABLE IF NOT EXISTS hourly_navigation_summary (
		id SERIAL PRIMARY KEY,
		hour TIMESTAMPTZ DEFAULT NOW(),
		TWA REAL,
		TWS REAL,
		AWA REAL,
		AWS REAL,
		Heading REAL,
		Speed REAL,
		Altitude REAL,
		Lattitude REAL,
		LatDir VARCHAR(2),
		Longitude REAL,
		LonDir VARCHAR(2),
		Depth REAL,
		Temp REAL
	)`,
}

var sqliteDDL = []string{
	`CREATE TABLE IF NOT EXISTS navigation_data (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT NOT NULL,
		rate_of_turn REAL,
		heading REAL,
		AWA REAL,
		AWS REAL,
		true_track REAL,
		mag_track REAL,
		speed REAL,
		true_course REAL,
		mag_var REAL,
		mag_var_dir TEXT,
		true_heading REAL,
		heading_magnetic REAL,
		water_speed REAL,
		temperature REAL,
		depth REAL,
		trip_distance REAL,
		lat REAL,
		lat_dir TEXT,
		lon REAL,
		lon_dir TEXT,
		num_sats INTEGER,
		horizontal_dil REAL,
		altitude REAL,
		geo_sep REAL,
		TWA REAL,
		TWS REAL
	)`,
	`CREATE INDEX IF NOT EXISTS navigation_data_timestamp_idx ON navigation_data (timestamp)`,
	`CREATE TABLE IF NOT EXISTS hourly_navigation_summary (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hour TEXT NOT NULL,
		TWA REAL,
		TWS REAL,
		AWA REAL,
		AWS REAL,
		Heading REAL,
		Speed REAL,
		Altitude REAL,
		Lattitude REAL,
		LatDir TEXT,
		Longitude REAL,
		LonDir TEXT,
		Depth REAL,
		Temp REAL
	)`,
}
