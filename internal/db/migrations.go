package db

import "embed"

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS
