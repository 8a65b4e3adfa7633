// Copyright (C) 2025 Attrail (opensource@attrail.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// Config is the attrailctl.yaml schema.
type Config struct {
	Token    string `yaml:"token"`
	BaseURL  string `yaml:"base_url"`
	DataDir  string `yaml:"data_dir"`
	Platform string `yaml:"platform"`
}

var (
	config     Config
	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "attrailctl.yaml",
		"Path to the attrailctl config file")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		yamlFile, err := os.ReadFile(configPath)
		if err != nil {
			log.Fatalf("Error reading %s: %v. Please ensure it exists.", configPath, err)
		}
		if err := yaml.Unmarshal(yamlFile, &config); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		if config.Token == "" {
			log.Fatalf("Config %s is missing the token field.", configPath)
		}
		if config.DataDir == "" {
			config.DataDir = defaultDataDir()
		}
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".attrail"
	}
	return home + "/.attrail"
}
