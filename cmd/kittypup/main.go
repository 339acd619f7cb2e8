package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/kittypup/kittypup/internal/clock"
	"github.com/kittypup/kittypup/internal/compliance"
	"github.com/kittypup/kittypup/internal/config"
	"github.com/kittypup/kittypup/internal/dispatch"
	"github.com/kittypup/kittypup/internal/entitlement"
	"github.com/kittypup/kittypup/internal/job"
	"github.com/kittypup/kittypup/internal/migration"
	"github.com/kittypup/kittypup/internal/observability"
	"github.com/kittypup/kittypup/internal/purchase"
	"github.com/kittypup/kittypup/internal/ratelimit"
	"github.com/kittypup/kittypup/internal/retention"
	"github.com/kittypup/kittypup/internal/server"
	"github.com/kittypup/kittypup/internal/storage/s3"
	"github.com/kittypup/kittypup/pkg/db"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,
		s3.Module,

		// Functional Domains
		entitlement.Module,
		job.Module,
		purchase.Module,
		compliance.Module,
		dispatch.Module,
		retention.Module,
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
