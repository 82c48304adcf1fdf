package postgresengine

import (
	_ "embed"
)

// Schema creates the enum types, tables and indexes the Store expects, plus the activity_listing view
// the restengine reads for price filters and ordering. It is idempotent.
//
//go:embed schema.sql
var Schema string
