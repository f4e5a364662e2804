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

// Package bootstrap wires a CodeScribe instance from its configuration.
//
// The wiring is fixed:
//
//	config -> provider adapter -> limiter -> documenter -> processor
//	                                                   |-> service (sync path)
//	                                                   '-> job manager + store
//	                                           export store (optional)
//
// Both the HTTP server and the CLI go through New, so a batch run from
// the command line behaves exactly like one submitted over the API.
//
// # Usage
//
//	cfg, err := config.Load("", "")
//	if err != nil {
//	    return err
//	}
//	app, err := bootstrap.New(cfg, bootstrap.Options{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer app.Close(ctx)
//
//	id, err := app.Jobs.Submit(ctx, files, docgen.Options{})
//
// # Overrides
//
// Options.Provider, Options.Extra and Options.Counter replace the selected
// adapter, the adapters of the providers section and the token counter.
// Tests use them to run the full stack against scripted providers without
// network access.
package bootstrap
