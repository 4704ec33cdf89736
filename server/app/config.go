package app

import (
	"flag"
	"fmt"
	"strings"

	"github.com/buildbeaver/trigger-engine/common/logger"
	"github.com/buildbeaver/trigger-engine/common/models"
	"github.com/buildbeaver/trigger-engine/server/store"
)

// DefaultMaxJoinFanIn bounds the number of upstream sources a single AND-join next-job may name
// in its workflow graph (§4.C "srcForJoin"), guarding against a pathological or malformed graph
// fanning a join out indefinitely.
const DefaultMaxJoinFanIn = 32

// LogSafeFlags is a list of flags by name whose values are safe to log.
var LogSafeFlags = []string{
	"database_driver",
	"database_max_idle_connections",
	"database_max_open_connections",
	"log_levels",
	"max_join_fan_in",
}

// TriggerEngineConfig configures the trigger engine's database connection, logging, and the one
// structural limit the orchestrator enforces itself (MaxJoinFanIn); everything else (SCM
// credentials, HTTP routing, authentication) belongs to the host process, per §1's Non-goals.
type TriggerEngineConfig struct {
	DatabaseConfig store.DatabaseConfig
	LogLevels      logger.LogLevelConfig
	MaxJoinFanIn   int
	// PipelineAdminTokens seeds the StaticTokenSource backing Pipeline.admin.unsealToken() (§6),
	// keyed by the pipeline admin's username.
	PipelineAdminTokens map[models.ResourceName]string
}

func ConfigFromFlags() (*TriggerEngineConfig, error) {
	var (
		databaseDriverStr        string
		databaseConnectionString string
		logLevels                string
		pipelineAdminTokensStr   string
	)

	config := &TriggerEngineConfig{}

	// Database
	flag.StringVar(&databaseConnectionString, "database_connection_string",
		defaultSQLiteConnectionString, "The connection string for the database")
	flag.StringVar(&databaseDriverStr, "database_driver",
		string(store.Sqlite), "The Database Driver to use (i.e sqlite3|postgres)")
	flag.IntVar(&config.DatabaseConfig.MaxIdleConnections, "database_max_idle_connections",
		store.DefaultDatabaseMaxIdleConnections, "The maximum number of idle database connections to use")
	flag.IntVar(&config.DatabaseConfig.MaxOpenConnections, "database_max_open_connections",
		store.DefaultDatabaseMaxOpenConnections, "The maximum number of open database connections to use")

	// Trigger engine
	flag.IntVar(&config.MaxJoinFanIn, "max_join_fan_in",
		DefaultMaxJoinFanIn, "The maximum number of upstream jobs a single AND-join next-job may name.")
	flag.StringVar(&pipelineAdminTokensStr, "pipeline_admin_tokens",
		"", "A comma separated list of username=token pairs used to seed the pipeline admin token source.")

	// Misc
	flag.StringVar(&logLevels, "log_levels",
		"", fmt.Sprintf("A comma separated list of name=level pairs where name is the name of the logger and level is one of: %s", logger.ListLogLevels()))
	flag.Parse()

	// Database
	config.DatabaseConfig.Driver = store.DBDriver(databaseDriverStr)
	config.DatabaseConfig.ConnectionString = store.DatabaseConnectionString(databaseConnectionString)

	// Misc
	config.LogLevels = logger.LogLevelConfig(logLevels)

	config.PipelineAdminTokens = parsePipelineAdminTokens(pipelineAdminTokensStr)

	return config, nil
}

func parsePipelineAdminTokens(raw string) map[models.ResourceName]string {
	tokens := make(map[models.ResourceName]string)
	if raw == "" {
		return tokens
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		tokens[models.ResourceName(parts[0])] = parts[1]
	}
	return tokens
}
