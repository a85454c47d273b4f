// listcart turns a photo of a grocery list into a cart from the command line.
//
// Usage:
//
//	listcart scan --image list.jpg --base-url http://localhost:5000 [--add-defaults] [--json]
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "listcart",
		Usage:   "Turn a photographed grocery list into a shopping cart",
		Version: fmt.Sprintf("%s (commit: %s)", version, commit),

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "warn",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LISTCART_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "base-url",
				Usage:   "Base URL of the recognition and recommendation service",
				EnvVars: []string{"LISTCART_REMOTE_BASE_URL"},
			},
		},

		Commands: []*cli.Command{
			scanCommand(),
		},
	}
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Recognize a grocery list image and show product recommendations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "image",
				Aliases:  []string{"i"},
				Usage:    "Path to the grocery list image",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "add-defaults",
				Value: false,
				Usage: "Add the best match of every item to the cart",
			},
			&cli.BoolFlag{
				Name:  "json",
				Value: false,
				Usage: "Print the final state as JSON",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 2 * time.Minute,
				Usage: "Give up when processing takes longer than this",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Value: 8,
				Usage: "Maximum concurrent recommendation fetches",
			},
			&cli.Float64Flag{
				Name:  "min-similarity",
				Value: 0,
				Usage: "Hide recommendations scoring below this (0-100)",
			},
		},
		Action: runScan,
	}
}
