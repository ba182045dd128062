package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/KilimcininKorOglu/hermit/internal/config"
)

// configCmd handles the config command.
func configCmd(args []string) int {
	if len(args) == 0 {
		printConfigUsage(os.Stdout)
		return 0
	}

	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(os.Stdout)
		return 0
	}

	switch args[0] {
	case "validate":
		return configValidateCmd(args[1:])
	case "init":
		return configInitCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Run 'hermit config help' for usage.")
		return 1
	}
}

// configValidateCmd handles the config validate subcommand.
func configValidateCmd(args []string) int {
	fs := flag.NewFlagSet("config validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	configFile := fs.String("config", "", "Path to configuration file")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		fmt.Println("Validate configuration file")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  hermit config validate -config <file>")
		return 0
	}

	if *configFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -config is required")
		return 1
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	if errs := config.ValidateConfig(cfg); len(errs) > 0 {
		printConfigErrors(errs)
		return 1
	}

	fmt.Println("Configuration is valid")
	return 0
}

// configInitCmd handles the config init subcommand.
func configInitCmd(args []string) int {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		fmt.Println("Generate default configuration")
		fmt.Println()
		fmt.Println("Usage:")
		fmt.Println("  hermit config init > hermit.yaml")
		fmt.Println()
		fmt.Println("Outputs default configuration to stdout in YAML format.")
		return 0
	}

	data, err := config.Marshal(config.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to render configuration: %v\n", err)
		return 1
	}
	os.Stdout.Write(data)
	return 0
}

func printConfigErrors(errs []error) {
	fmt.Fprintln(os.Stderr, "Configuration errors:")
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "  - %s\n", e)
	}
}
