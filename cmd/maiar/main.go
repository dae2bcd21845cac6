// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the maiar command: it assembles models, memory,
// monitors and plugins from configuration and runs the agent.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/config"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/plugin/mcpplugin"
	"github.com/zeeman-effect/maiar-ai-sub000/pkg/runtime"
)

var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	ConfigPath string
	Profile    string
	Timeout    time.Duration
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help {
		printUsage()
		return
	}
	if len(args) == 0 {
		args = []string{"run"}
	}

	switch args[0] {
	case "run":
		ensureNoArgs(args[1:])
		if err := run(ctx, global); err != nil {
			fatal(err)
		}
	case "validate":
		if err := runValidate(ctx, global, args[1:]); err != nil {
			fatal(err)
		}
	case "tools":
		ensureNoArgs(args[1:])
		if err := runTools(ctx, global); err != nil {
			fatal(err)
		}
	case "version":
		fmt.Println(version)
	case "help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q", args[0]))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{Timeout: 30 * time.Second}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "-h", "--help":
			flags.Help = true
			return flags, nil, nil
		case "--json":
			flags.JSON = true
			continue
		case "--config", "--profile", "--env", "--set", "--timeout":
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", name)
			}
			i++
			value = args[i]
		}
		switch name {
		case "--timeout":
			d, err := time.ParseDuration(value)
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = d
			continue
		case "--config":
			flags.ConfigPath = value
		case "--profile", "--env":
			flags.Profile = value
		}
		flags.ConfigArgs = append(flags.ConfigArgs, name, value)
	}
	return flags, nil, nil
}

func loadConfig(flags globalFlags) (*config.Config, error) {
	cfg, err := config.LoadWithCLI(flags.ConfigArgs)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type checkResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // ok, error, skip
	Message string `json:"message,omitempty"`
}

// runValidate checks the configuration and, when given, a pipeline file.
func runValidate(ctx context.Context, flags globalFlags, args []string) error {
	var results []checkResult
	failed := false

	cfg, err := loadConfig(flags)
	if err != nil {
		results = append(results, checkResult{Name: "config", Status: "error", Message: err.Error()})
		failed = true
	} else {
		results = append(results, checkResult{Name: "config", Status: "ok"})
	}

	pipelines := append([]string{}, args...)
	if cfg != nil && cfg.Runtime.FallbackPipeline != "" {
		pipelines = append(pipelines, cfg.Runtime.FallbackPipeline)
	}
	for _, path := range pipelines {
		p, err := runtime.LoadPipeline(path)
		if err != nil {
			results = append(results, checkResult{Name: path, Status: "error", Message: err.Error()})
			failed = true
			continue
		}
		results = append(results, checkResult{Name: path, Status: "ok", Message: fmt.Sprintf("%d steps", len(p))})
	}

	if cfg != nil {
		for _, srv := range cfg.Plugins.MCP.Servers {
			res := checkResult{Name: "mcp:" + srv.Name, Status: "ok"}
			tools, err := listServerTools(ctx, srv, flags.Timeout)
			if err != nil {
				res.Status, res.Message = "error", err.Error()
				failed = true
			} else {
				res.Message = fmt.Sprintf("%d tools", len(tools))
			}
			results = append(results, res)
		}
	}

	if flags.JSON {
		printJSON(results)
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHECK\tSTATUS\tMESSAGE")
		for _, r := range results {
			fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Status, r.Message)
		}
		w.Flush()
	}
	if failed {
		return errors.New("validation failed")
	}
	return nil
}

// runTools lists the tools of every configured MCP server.
func runTools(ctx context.Context, flags globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if len(cfg.Plugins.MCP.Servers) == 0 {
		fmt.Println("no mcp servers configured")
		return nil
	}

	type toolRow struct {
		Server      string `json:"server"`
		Tool        string `json:"tool,omitempty"`
		Description string `json:"description,omitempty"`
		Error       string `json:"error,omitempty"`
	}
	var rows []toolRow
	for _, srv := range cfg.Plugins.MCP.Servers {
		tools, err := listServerTools(ctx, srv, flags.Timeout)
		if err != nil {
			rows = append(rows, toolRow{Server: srv.Name, Error: err.Error()})
			continue
		}
		for _, tool := range tools {
			rows = append(rows, toolRow{Server: srv.Name, Tool: tool.Name, Description: tool.Description})
		}
	}

	if flags.JSON {
		printJSON(rows)
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tTOOL\tDESCRIPTION")
	for _, r := range rows {
		if r.Error != "" {
			fmt.Fprintf(w, "%s\tERROR\t%s\n", r.Server, r.Error)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Server, r.Tool, r.Description)
	}
	return w.Flush()
}

func listServerTools(ctx context.Context, srv config.MCPServerConfig, timeout time.Duration) ([]mcpTool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client, err := mcpplugin.Connect(ctx, mcpServer(srv))
	if err != nil {
		return nil, err
	}
	defer client.Close()

	tools, err := client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]mcpTool, len(tools))
	for i, t := range tools {
		out[i] = mcpTool{Name: t.Name, Description: t.Description}
	}
	return out, nil
}

type mcpTool struct {
	Name        string
	Description string
}

func mcpServer(srv config.MCPServerConfig) mcpplugin.Server {
	return mcpplugin.Server{Name: srv.Name, Command: srv.Command, Args: srv.Args, URL: srv.URL}
}

func printJSON(value any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		fatal(err)
	}
}

func printUsage() {
	fmt.Println(`maiar runs a plugin-driven agent.

Usage:
  maiar [global flags] [command] [args]

Global flags:
  --config <path>       YAML configuration file
  --profile <name>      Merge <config>.<name>.yaml on top (alias --env)
  --set key=value       Override a configuration key (repeatable)
  --timeout <duration>  Timeout for validate and tools (default 30s)
  --json                Print JSON output

Commands:
  run                   Start the runtime (default)
  validate [pipeline]   Check the configuration and pipeline files
  tools                 List the tools of configured MCP servers
  version               Print the version

Environment:
  MAIAR_<SECTION>__<KEY> overrides configuration, e.g.
  MAIAR_MODELS__OPENAI__API_KEY=sk-...`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}
