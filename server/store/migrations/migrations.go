package migrations

// DialectTemplate is used as the templating control for differing SQL syntax between our supported databases
type DialectTemplate struct {
	Binary            string
	IntegerPrimaryKey string
}

// MigrationSet provides a set of migrations that can be applied to a database.
type MigrationSet []MigrationData

// MigrationData provides the data for a single migration, including Up and Down SQL.
// Templated values are supported and will be substituted for database-specific values
// before the migrations are applied.
type MigrationData struct {
	SequenceNumber int64
	Name           string
	UpSQL          string
	DownSQL        string
}

// BuildBeaverServerMigrations is the set of migrations to set up the database for the trigger engine.
var BuildBeaverServerMigrations = MigrationSet{
	{
		SequenceNumber: 1,
		Name:           "create_pipelines",
		UpSQL: `CREATE TABLE IF NOT EXISTS pipelines
				(
					pipeline_id text NOT NULL PRIMARY KEY,
					pipeline_created_at timestamp without time zone NOT NULL,
					pipeline_updated_at timestamp without time zone NOT NULL,
					pipeline_etag text NOT NULL,
					pipeline_scm_context text NOT NULL,
					pipeline_scm_uri text NOT NULL,
					pipeline_config_pipeline_id text REFERENCES pipelines (pipeline_id) ON UPDATE NO ACTION ON DELETE NO ACTION,
					pipeline_admin_username text NOT NULL
				);
				CREATE UNIQUE INDEX IF NOT EXISTS pipelines_scm_uri_unique_index ON pipelines(pipeline_scm_context, pipeline_scm_uri);
				CREATE UNIQUE INDEX IF NOT EXISTS pipelines_created_at_id_desc_unique_index ON pipelines(
					pipeline_created_at DESC,
					pipeline_id DESC);`,
		DownSQL: `DROP TABLE pipelines;`,
	},
	{
		SequenceNumber: 2,
		Name:           "create_jobs",
		UpSQL: `CREATE TABLE IF NOT EXISTS jobs
				(
					job_id text NOT NULL PRIMARY KEY,
					job_pipeline_id text NOT NULL REFERENCES pipelines (pipeline_id) ON UPDATE NO ACTION ON DELETE NO ACTION,
					job_created_at timestamp without time zone NOT NULL,
					job_updated_at timestamp without time zone NOT NULL,
					job_etag text NOT NULL,
					job_name text NOT NULL,
					job_state text NOT NULL
				);
				CREATE UNIQUE INDEX IF NOT EXISTS jobs_job_name_unique_index ON jobs(
					job_pipeline_id,
					job_name);
				CREATE INDEX IF NOT EXISTS jobs_job_pipeline_id_index ON jobs(job_pipeline_id);
				CREATE UNIQUE INDEX IF NOT EXISTS jobs_created_at_id_desc_unique_index ON jobs(
					job_created_at DESC,
					job_id DESC);`,
		DownSQL: `DROP TABLE jobs;`,
	},
	{
		SequenceNumber: 3,
		Name:           "create_events",
		UpSQL: `CREATE TABLE IF NOT EXISTS events
				(
					event_id text NOT NULL PRIMARY KEY,
					event_pipeline_id text NOT NULL REFERENCES pipelines (pipeline_id) ON UPDATE NO ACTION ON DELETE NO ACTION,
					event_created_at timestamp without time zone NOT NULL,
					event_etag text NOT NULL,
					event_workflow_graph text NOT NULL,
					event_sha text NOT NULL,
					event_config_pipeline_sha text,
					event_parent_event_id text REFERENCES events (event_id) ON UPDATE NO ACTION ON DELETE NO ACTION,
					event_group_event_id text NOT NULL,
					event_base_branch text NOT NULL,
					event_pr text,
					event_type text NOT NULL,
					event_cause_message text NOT NULL,
					event_username text NOT NULL
				);
				CREATE INDEX IF NOT EXISTS events_event_pipeline_id_index ON events(event_pipeline_id);
				CREATE INDEX IF NOT EXISTS events_event_parent_event_id_index ON events(event_parent_event_id);
				CREATE INDEX IF NOT EXISTS events_event_group_event_id_index ON events(event_group_event_id);
				CREATE UNIQUE INDEX IF NOT EXISTS events_created_at_id_desc_unique_index ON events(
					event_created_at DESC,
					event_id DESC);`,
		DownSQL: `DROP TABLE events;`,
	},
	{
		SequenceNumber: 4,
		Name:           "create_builds",
		UpSQL: `CREATE TABLE IF NOT EXISTS builds
				(
					build_id text NOT NULL PRIMARY KEY,
					build_event_id text NOT NULL REFERENCES events (event_id) ON UPDATE NO ACTION ON DELETE NO ACTION,
					build_job_id text NOT NULL REFERENCES jobs (job_id) ON UPDATE NO ACTION ON DELETE NO ACTION,
					build_created_at timestamp without time zone NOT NULL,
					build_updated_at timestamp without time zone NOT NULL,
					build_etag text NOT NULL,
					build_status text NOT NULL,
					build_sha text NOT NULL,
					build_parent_build_ids text,
					build_parent_builds text,
					build_username text NOT NULL,
					build_config_pipeline_sha text,
					build_scm_context text NOT NULL,
					build_pr text,
					build_base_branch text NOT NULL,
					build_timings text NOT NULL,
					build_error text
				);
				CREATE UNIQUE INDEX IF NOT EXISTS builds_event_id_job_id_unique_index ON builds(
					build_event_id,
					build_job_id);
				CREATE INDEX IF NOT EXISTS builds_build_job_id_index ON builds(build_job_id);
				CREATE INDEX IF NOT EXISTS builds_build_status_index ON builds(build_status);
				CREATE UNIQUE INDEX IF NOT EXISTS builds_created_at_id_desc_unique_index ON builds(
					build_created_at DESC,
					build_id DESC);`,
		DownSQL: `DROP TABLE builds;`,
	},
}
