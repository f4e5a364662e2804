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

// Package pipeline runs single files through extraction, unit documentation
// and assembly.
//
// A Processor owns the per-file flow. Prepare validates the input (size,
// binary content, language) and extracts units; Run fans the units out to
// the documenter under a per-file cap and assembles the artifact once every
// unit is terminal. The batch job manager and the synchronous Service both
// drive the same Processor.
//
//	proc := pipeline.NewProcessor(extract.DefaultRegistry(logger), doc, pipeline.ProcessorConfig{
//	    MaxConcurrentUnits: 4,
//	    MaxFileBytes:       5 << 20,
//	}, logger)
//	svc := pipeline.NewService(proc, docgen.DefaultOptions(), logger)
//	resp := svc.DocumentFile(ctx, "calc.py", content, docgen.Options{Verbosity: docgen.VerbosityHigh})
//
// File-level problems (unsupported language, binary content, oversized
// input) fail the file. A parse error does not: the file is documented as a
// single module unit and the degradation is recorded in FileResult.Error.
package pipeline
