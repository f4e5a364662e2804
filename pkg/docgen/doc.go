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

// Package docgen turns one extracted unit into documentation text.
//
// A [Documenter] builds a provider-agnostic prompt from the unit source and
// the job's [Options], calls the provider, cleans the answer for the
// requested [Format] and applies the retry policy:
//
//	rate_limited, timeout, unavailable  retried up to RetryConfig.MaxRetries,
//	                                    exponential backoff with full jitter,
//	                                    Retry-After honoured when larger
//	invalid_response                    retried once
//	auth_failure, network, bad_request  not retried
//
// Failures never escape as errors: [Documenter.Document] always returns a
// [DocumentedUnit] whose Status and FailureKind describe the outcome, so one
// unit cannot abort its siblings.
//
// # Quick Start
//
//	doc := docgen.NewDocumenter(provider, docgen.DefaultConfig(), docgen.DefaultTokenCounter(), logger)
//	du := doc.Document(ctx, unit, extract.LanguagePython, docgen.DefaultOptions())
//	if du.Failed() {
//	    log.Printf("%s failed: %s", du.Unit.Name, du.FailureKind)
//	}
package docgen
