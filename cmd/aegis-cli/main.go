package main

import (
	"fmt"
	"os"

	"github.com/aegisvault/aegisvault/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cli, err := newCLIFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "keygen":
		err = cli.Keygen(os.Args[2:])
	case "recover":
		err = cli.Recover(os.Args[2:])
	case "declare":
		err = cli.Declare(os.Args[2:])
	case "respond":
		err = cli.Respond(os.Args[2:])
	case "authorize":
		err = cli.Authorize(os.Args[2:])
	case "verify":
		err = cli.Verify(os.Args[2:])
	case "root":
		err = cli.Root()
	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newCLIFromEnv builds the CLI from AEGIS_CLI_CONFIG when set, or from the
// default paths otherwise.
func newCLIFromEnv() (*CLI, error) {
	path := os.Getenv("AEGIS_CLI_CONFIG")
	if path == "" {
		return NewCLIWithDefaults(), nil
	}
	cfg, err := config.LoadCLIConfig(path)
	if err != nil {
		return nil, err
	}
	return NewCLI(*cfg), nil
}
