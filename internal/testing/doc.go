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

// Package testing provides test helpers shared by CodeScribe package tests.
//
// # Quick Start
//
// Use a ScriptedProvider to drive the documenter without a real backend:
//
//	func TestMyFeature(t *testing.T) {
//	    provider := cstest.NamedProvider()
//	    // ... build a documenter / processor / manager around provider
//	    assert.Equal(t, 3, provider.Calls())
//	}
//
// # Providers
//   - NewScriptedProvider: answer each call with a custom function
//   - NamedProvider: documents each unit with "Documentation for <name>."
//   - FailingProvider: always fails with the given llm.Kind
//
// # Fixtures
//   - PythonTwoFunctions, PythonThreeFunctions, GoService: sample sources
//
// # Polling
//   - Eventually: poll a condition until it holds or the test times out
package testing
