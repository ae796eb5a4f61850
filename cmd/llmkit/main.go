// Package main provides the llmkit command line tool.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/webapp"
	"github.com/effective-security/xlog"
	"github.com/urfave/cli/v2"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit", "cli")

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err.Error())
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "llmkit",
		Usage: "Call LLM providers from the command line, or serve them over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the providers configuration",
				EnvVars: []string{"LLMKIT_CONFIG"},
				Value:   "llm.yaml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "error",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output format (text, json, yaml)",
				Value:   outputText,
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Print provider invocations to stderr",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "providers",
				Usage:  "List registered providers",
				Action: providersCommand,
			},
			{
				Name:      "generate",
				Aliases:   []string{"gen"},
				Usage:     "Generate a response for the prompt",
				ArgsUsage: "[prompt]",
				Action:    generateCommand,
				Flags:     generateFlags(),
			},
			{
				Name:      "stream",
				Usage:     "Stream a response for the prompt",
				ArgsUsage: "[prompt]",
				Action:    streamCommand,
				Flags:     generateFlags(),
			},
			{
				Name:   "chat",
				Usage:  "Chat with a model, one message per line",
				Action: chatCommand,
				Flags: append(generateFlags(),
					&cli.StringFlag{
						Name:  "chat-id",
						Usage: "Conversation ID, a new one is created if not set",
					},
					&cli.StringFlag{
						Name:    "redis",
						Usage:   "Redis URL of the chat store, in memory if not set",
						EnvVars: []string{"LLMKIT_REDIS_URL"},
					},
				),
			},
			{
				Name:      "extract",
				Usage:     "Summarize the text as a structured document",
				ArgsUsage: "[text]",
				Action:    extractCommand,
				Flags: append(generateFlags(),
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Structured output mode (json, json_schema, json_schema_strict, yaml, toml)",
						Value: "json_schema",
					},
				),
			},
			{
				Name:      "embed",
				Usage:     "Create embeddings for the texts",
				ArgsUsage: "text...",
				Action:    embedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "model",
						Aliases: []string{"m"},
						Usage:   "Embedding model, the embeddings route model if not set",
					},
					retriesFlag(),
				},
			},
			{
				Name:      "load",
				Usage:     "Load and split documents",
				ArgsUsage: "path...",
				Action:    loadCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "unstructured",
						Usage: "Parse files with the UNSTRUCTURED provider",
					},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Unstructured partition strategy (auto, fast, hi_res, ocr_only)",
						Value: "auto",
					},
					&cli.BoolFlag{
						Name:  "recursive",
						Usage: "Load text files of sub-folders",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Split documents into chunks of the size, zero disables splitting",
						Value: 1000,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Overlap of the chunks",
						Value: 100,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the web with the TAVILY provider",
				ArgsUsage: "query",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "depth",
						Usage: "Search depth (basic, advanced)",
						Value: "basic",
					},
					&cli.BoolFlag{
						Name:  "answer",
						Usage: "Include the aggregated answer",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the configured providers over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "listen",
						Usage:   "Address to listen on",
						EnvVars: []string{"LLMKIT_LISTEN"},
						Value:   webapp.DefaultAddr,
					},
					&cli.StringFlag{
						Name:    "redis",
						Usage:   "Redis URL of the chat store, in memory if not set",
						EnvVars: []string{"LLMKIT_REDIS_URL"},
					},
					&cli.Int64Flag{
						Name:  "max-body",
						Usage: "Maximum request body size in bytes",
						Value: webapp.DefaultMaxBodySize,
					},
				},
			},
		},
	}
}

func generateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "model",
			Aliases: []string{"m"},
			Usage:   "Model name, the route model if not set",
		},
		&cli.StringFlag{
			Name:  "route",
			Usage: "Configured route of the model",
		},
		&cli.StringFlag{
			Name:    "system",
			Aliases: []string{"s"},
			Usage:   "System prompt template",
		},
		&cli.StringFlag{
			Name:    "prompt",
			Aliases: []string{"p"},
			Usage:   "Prompt template, or a path to it prefixed with @",
		},
		&cli.StringSliceFlag{
			Name:  "var",
			Usage: "Template value as key=value, can be repeated",
		},
		&cli.StringFlag{
			Name:  "format",
			Usage: "Template format (go-template, jinja2, f-string)",
		},
		&cli.IntFlag{
			Name:  "max-tokens",
			Usage: "Maximum number of tokens to generate",
		},
		&cli.Float64Flag{
			Name:  "temperature",
			Usage: "Sampling temperature",
		},
		&cli.StringSliceFlag{
			Name:  "stop",
			Usage: "Stop sequence, can be repeated",
		},
		retriesFlag(),
	}
}

func retriesFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "retries",
		Usage: "Retry failed calls that are retryable, zero disables retries",
	}
}

func setupLogger(c *cli.Context) error {
	var level xlog.LogLevel
	switch levelStr := strings.ToLower(c.String("log-level")); levelStr {
	case "debug":
		level = xlog.DEBUG
	case "info":
		level = xlog.INFO
	case "warn", "warning":
		level = xlog.WARNING
	case "error":
		level = xlog.ERROR
	default:
		return errors.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	xlog.SetFormatter(xlog.NewStringFormatter(c.App.ErrWriter))
	xlog.SetGlobalLogLevel(level)

	switch c.String("output") {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return errors.Errorf("invalid output %q: must be one of text, json, yaml", c.String("output"))
	}
}
