// Package cmd implements the command-line interface for hlsgate.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cc "github.com/ivanpirog/coloredcobra"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hlsgate/hlsgate/cache"
	"github.com/hlsgate/hlsgate/constant"
	"github.com/hlsgate/hlsgate/extractor"
	"github.com/hlsgate/hlsgate/key"
	"github.com/hlsgate/hlsgate/log"
	"github.com/hlsgate/hlsgate/manifest"
	"github.com/hlsgate/hlsgate/network"
	"github.com/hlsgate/hlsgate/race"
	"github.com/hlsgate/hlsgate/server"
	"github.com/hlsgate/hlsgate/where"
)

func init() {
	rootCmd.Flags().StringP("host", "H", "", "Address to bind the HTTP server to")
	lo.Must0(viper.BindPFlag(key.ServerHost, rootCmd.Flags().Lookup("host")))

	rootCmd.Flags().IntP("port", "p", 0, "Port the HTTP server listens on")
	lo.Must0(viper.BindPFlag(key.ServerPort, rootCmd.Flags().Lookup("port")))

	rootCmd.Flags().StringSliceP("extractor", "e", nil, "Extractor backends that participate in the race")
	lo.Must0(viper.BindPFlag(key.ExtractorsEnabled, rootCmd.Flags().Lookup("extractor")))
}

// rootCmd runs the proxy server; hlsgate has no other mode of operation
// beyond the version subcommand.
var rootCmd = &cobra.Command{
	Use:   constant.Hlsgate,
	Short: "A racing HLS manifest proxy for upstream video streams",
	Long: "hlsgate races several independent extraction strategies for every requested video,\n" +
		"caches the first winner, and serves the result as standards-compliant HLS playlists\n" +
		"with every downstream fetch funneled through its own proxy endpoint.",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := buildServer()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return srv.Run(ctx)
	},
}

// buildServer assembles the process-wide object graph: one client pool, one
// cache gateway, one coordinator — constructed here once and passed down by
// handle, never reached through globals.
func buildServer() (*server.Server, error) {
	extractors, err := buildExtractors()
	if err != nil {
		return nil, err
	}

	store, err := buildStore()
	if err != nil {
		return nil, err
	}

	gateway := cache.NewGateway(store, viper.GetInt(key.CacheTTL))
	timeout := time.Duration(viper.GetInt(key.RaceTimeout)) * time.Millisecond
	coordinator := race.New(extractors, gateway, timeout)
	synthesizer := manifest.NewSynthesizer(network.Client)

	log.Infof("configured backends: %s", strings.Join(coordinator.Names(), ", "))
	if len(extractors) == 1 {
		log.Warn("single backend configured, running the degraded single-adapter pipeline")
	}

	return server.New(
		coordinator,
		synthesizer,
		gateway,
		extractors,
		network.Client,
		viper.GetString(key.ServerHost),
		viper.GetInt(key.ServerPort),
	), nil
}

// buildExtractors instantiates the configured backends in order.
func buildExtractors() ([]extractor.Extractor, error) {
	upstream := network.Client
	if viper.GetBool(key.ExtractorSpoofTLS) {
		upstream = network.SpoofedClient
	}

	names := viper.GetStringSlice(key.ExtractorsEnabled)
	if len(names) == 0 {
		return nil, fmt.Errorf("no extractor backends configured (%s)", key.ExtractorsEnabled)
	}

	var extractors []extractor.Extractor
	for _, name := range names {
		switch name {
		case "ytdlp":
			extractors = append(extractors, extractor.NewYtdlpService(viper.GetString(key.ExtractorYtdlpURL), network.Client))
		default:
			innertube, err := extractor.NewInnerTube(name, upstream)
			if err != nil {
				return nil, fmt.Errorf("configure backend %q: %w", name, err)
			}
			extractors = append(extractors, innertube)
		}
	}
	return extractors, nil
}

// buildStore selects the cache store backend from configuration.
func buildStore() (cache.Store, error) {
	switch backend := viper.GetString(key.CacheBackend); backend {
	case "redis":
		return cache.NewRedisStore(viper.GetString(key.CacheRedisHost), viper.GetInt(key.CacheRedisPort)), nil
	case "file":
		return cache.NewFileStore(where.Cache()), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q (valid: file, redis)", backend)
	}
}

// Execute initializes child command routing and processes the CLI entry point.
func Execute() {
	cc.Init(&cc.Config{
		RootCmd:       rootCmd,
		Headings:      cc.HiCyan + cc.Bold + cc.Underline,
		Commands:      cc.HiYellow + cc.Bold,
		Example:       cc.Italic,
		ExecName:      cc.Bold,
		Flags:         cc.Bold,
		FlagsDataType: cc.Italic + cc.HiBlue,
	})

	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
