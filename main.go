// Package main is the entry point for the hlsgate service.
package main

import (
	"github.com/samber/lo"

	"github.com/hlsgate/hlsgate/cmd"
	"github.com/hlsgate/hlsgate/config"
	"github.com/hlsgate/hlsgate/log"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	cmd.Execute()
}
