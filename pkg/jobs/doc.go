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

// Package jobs runs batches of files as asynchronous documentation jobs.
//
// A job moves queued → running → completed or failed. Submit validates the
// batch synchronously (ErrEmptyBatch, ErrTooManyFiles, ErrPayloadTooLarge)
// and returns an id at once. Clients then poll Status, which reads an
// atomically published Snapshot, and fetch the artifacts with Result or
// Acknowledge once the job is terminal.
//
// Concurrency is bounded at three levels: files per job (Config), units per
// file (pipeline.ProcessorConfig) and provider calls per process
// (llm.Limiter). All state of a job is written by one owner goroutine fed
// through an event channel.
//
// Progress is the share of units in a terminal state, documented or failed.
// It never decreases and stays below 100 until every file is terminal.
//
// A job fails when a unit reports an authentication failure, when it has
// no valid file, when it is cancelled, or when FailFast is set and a file
// fails. Terminal jobs stay in the Store until acknowledged or until their
// retention expires and the cron reaper evicts them.
package jobs
