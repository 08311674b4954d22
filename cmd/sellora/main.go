package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sellora/internal/clock"
	"github.com/smallbiznis/sellora/internal/migration"
	"github.com/smallbiznis/sellora/internal/observability"
	"github.com/smallbiznis/sellora/internal/server"
	"github.com/smallbiznis/sellora/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
