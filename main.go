/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cloudwego/appealswarm/internal/config"
	"github.com/cloudwego/appealswarm/internal/log"
	"github.com/cloudwego/appealswarm/internal/server"
	"github.com/cloudwego/appealswarm/llm/mcp"
	"github.com/cloudwego/appealswarm/version"
	"github.com/google/uuid"
)

const Usage = `appealswarm <Action> [Flags]
Action:
   serve        run the three-column appeal dashboard over HTTP
   mcp          run as a MCP server (stdio) exposing the three stages as tools
   run          run all three stages once on local files and print the letter
   config       print the effective configuration as YAML
   schema       print the JSON schema of the configuration file
   version      print the version of appealswarm
Environment:
   OPENAI_API_KEY   provider credential, required in live mode
   APPEAL_*         overrides any config key, e.g. APPEAL_MODE=live, APPEAL_SERVER_ADDR=:9000
`

func main() {
	flags := flag.NewFlagSet("appealswarm", flag.ExitOnError)

	flagHelp := flags.Bool("h", false, "Show help message.")
	flagVerbose := flags.Bool("verbose", false, "Verbose mode.")
	flagConfig := flags.String("config", "", "Path of the YAML config file.")
	flagMode := flags.String("mode", "", "Override the configured mode: simulated or live.")

	var ropts runOptions
	flags.StringVar(&ropts.Image, "image", "", "image file to analyze (run only)")
	flags.StringVar(&ropts.Audio, "audio", "", "recorded note to transcribe (run only)")
	flags.StringVar(&ropts.Policy, "policy", "", "policy rule to cite (run only, default: standard medical necessity guidelines)")
	flags.StringVar(&ropts.Output, "o", "", "write the letter to this file instead of stdout (run only)")

	flags.Usage = func() {
		fmt.Fprint(os.Stderr, Usage)
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flags.PrintDefaults()
	}

	if len(os.Args) < 2 {
		flags.Usage()
		os.Exit(1)
	}
	action := strings.ToLower(os.Args[1])
	flags.Parse(os.Args[2:])
	if *flagHelp {
		flags.Usage()
		os.Exit(0)
	}

	if action == "version" {
		fmt.Fprintf(os.Stdout, "%s\n", version.Version)
		return
	}
	if action == "schema" {
		js, err := config.Schema()
		if err != nil {
			log.Error("Failed to generate schema: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprint(os.Stdout, js)
		return
	}

	cfg := loadConfig(*flagConfig, *flagMode, *flagVerbose)
	closeLog := setupLogging(cfg)
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch action {
	case "config":
		out, err := cfg.YAML()
		if err != nil {
			log.Error("Failed to render config: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "%s", out)

	case "serve":
		rt := mustEngine(ctx, cfg)
		defer rt.Close()

		reg := server.NewRegistry(rt.NewSession, cfg.Server.SessionTTL)
		defer reg.Close()
		go reg.Run(ctx)

		sopts := server.Options{
			Addr:           cfg.Server.Addr,
			MaxUploadBytes: cfg.Server.MaxUploadBytes,
			Mode:           string(cfg.Mode),
			Sessions:       reg,
		}
		if cfg.Metrics.Enabled {
			sopts.MetricsPath = cfg.Metrics.Path
		}
		srv, err := server.New(sopts)
		if err != nil {
			log.Error("Failed to create server: %v\n", err)
			os.Exit(1)
		}
		if err := srv.Start(ctx); err != nil {
			log.Error("Server stopped: %v\n", err)
			os.Exit(1)
		}

	case "mcp":
		rt := mustEngine(ctx, cfg)
		defer rt.Close()

		svr, err := mcp.NewServer(mcp.ServerOptions{
			ServerName:    "appealswarm",
			ServerVersion: version.Version,
			Session:       rt.NewSession(uuid.NewString()),
		})
		if err != nil {
			log.Error("Failed to create MCP server: %v\n", err)
			os.Exit(1)
		}
		if err := svr.ServeStdio(); err != nil {
			log.Error("Failed to run MCP server: %v\n", err)
			os.Exit(1)
		}

	case "run":
		if ropts.Image == "" || ropts.Audio == "" {
			log.Error("Flags -image and -audio are required\n")
			os.Exit(1)
		}
		rt := mustEngine(ctx, cfg)
		defer rt.Close()
		if err := runOnce(ctx, rt, ropts); err != nil {
			log.Error("Failed to draft the appeal: %v\n", err)
			os.Exit(1)
		}

	default:
		flags.Usage()
		os.Exit(1)
	}
}

func loadConfig(path, mode string, verbose bool) *config.Config {
	if mode != "" {
		os.Setenv(config.EnvPrefix+"_MODE", mode)
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Error("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg
}

func setupLogging(cfg *config.Config) func() {
	log.SetLogLevel(log.ParseLevel(cfg.Log.Level))
	if cfg.Log.File == "" {
		return func() {}
	}
	closer := log.TeeToFile(log.FileOptions{
		Path:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	return func() { closer.Close() }
}

func mustEngine(ctx context.Context, cfg *config.Config) *engine {
	rt, err := newEngine(ctx, cfg, os.Getenv)
	if err != nil {
		var missing *config.MissingCredentialError
		if errors.As(err, &missing) {
			log.Error("%v (set it, or run with -mode simulated)\n", err)
		} else {
			log.Error("Failed to set up the pipeline: %v\n", err)
		}
		os.Exit(1)
	}
	log.Info("appealswarm %s running in %s mode (executor: %s)", version.Version, cfg.Mode, rt.Executor.Name())
	return rt
}
