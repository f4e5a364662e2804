// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/codescribe/internal/config"
	"github.com/kraklabs/codescribe/internal/errors"
	"github.com/kraklabs/codescribe/internal/output"
	"github.com/kraklabs/codescribe/internal/ui"
)

// runConfig executes 'config init' and 'config show'.
func runConfig(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing file (init)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: codescribe config <init|show> [options]

  init   Write the built-in defaults to codescribe.yaml (or --config)
  show   Print the effective configuration after files and environment

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		fs.Usage()
		os.Exit(errors.ExitInput)
	}

	switch fs.Arg(0) {
	case "init":
		path := globals.ConfigPath
		if path == "" {
			path = config.DefaultPath
		}
		if _, err := os.Stat(path); err == nil && !*force {
			errors.FatalError(errors.NewInputError("Configuration already exists", path,
				"Use --force to overwrite it"), globals.JSON)
		}
		if err := config.Save(config.Default(), path); err != nil {
			errors.FatalError(errors.NewPermissionError("Cannot write configuration", err.Error(),
				"Check the directory permissions", err), globals.JSON)
		}
		ui.Successf("Wrote %s", path)
	case "show":
		cfg := loadConfig(globals)
		redactKeys(cfg)
		if globals.JSON {
			_ = output.JSON(cfg)
			return
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			errors.FatalError(err, false)
		}
		fmt.Fprint(ui.Out, string(data))
	default:
		fs.Usage()
		os.Exit(errors.ExitInput)
	}
}

func redactKeys(cfg *config.Config) {
	for name, p := range cfg.Providers {
		if p.APIKey != "" {
			p.APIKey = "********"
			cfg.Providers[name] = p
		}
	}
}
