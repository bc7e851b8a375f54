package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aktasdeniz/maestro/pkg/config"
)

// ValidateCmd validates a configuration file.
type ValidateCmd struct {
	Config string `arg:"" name:"config" help:"Configuration file path." placeholder:"PATH"`

	Format      string `short:"f" help:"Output format: compact, json." default:"compact" enum:"compact,json"`
	PrintConfig bool   `short:"p" name:"print-config" help:"Print the expanded configuration (defaults applied, env vars resolved)."`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	loader, err := config.NewLoader(c.Config)
	if err != nil {
		return err
	}

	cfg, err := loader.Load()
	if err != nil {
		if c.Format == "json" {
			printValidationJSON(false, c.Config, err)
		} else {
			fmt.Fprintf(os.Stderr, "%s: %s\n", c.Config, err.Error())
		}
		return fmt.Errorf("config validation failed")
	}

	if c.PrintConfig {
		if c.Format == "json" {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(cfg)
		}
		fmt.Printf("# Expanded configuration from: %s\n\n", c.Config)
		encoder := yaml.NewEncoder(os.Stdout)
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(cfg)
	}

	if c.Format == "json" {
		printValidationJSON(true, c.Config, nil)
	} else {
		fmt.Printf("%s: valid\n", c.Config)
	}
	return nil
}

func printValidationJSON(valid bool, file string, cause error) {
	output := struct {
		Valid bool   `json:"valid"`
		File  string `json:"file"`
		Error string `json:"error,omitempty"`
	}{Valid: valid, File: file}
	if cause != nil {
		output.Error = cause.Error()
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
	}
}
