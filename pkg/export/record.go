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

package export

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/codescribe/pkg/docgen"
	"github.com/kraklabs/codescribe/pkg/extract"
	"github.com/kraklabs/codescribe/pkg/jobs"
	"github.com/kraklabs/codescribe/pkg/pipeline"
)

var (
	ErrNotFound          = errors.New("export not found")
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// Unit is the exported documentation of one unit.
type Unit struct {
	Kind          extract.Kind `json:"kind"`
	Name          string       `json:"name"`
	Signature     string       `json:"signature,omitempty"`
	StartLine     int          `json:"start_line"`
	EndLine       int          `json:"end_line"`
	Status        string       `json:"status"`
	Documentation string       `json:"documentation,omitempty"`
	Reason        string       `json:"reason,omitempty"`
}

// File is the exported documentation of one file.
type File struct {
	Filename string            `json:"filename"`
	Language extract.Language  `json:"language,omitempty"`
	Status   string            `json:"status"`
	Error    string            `json:"error,omitempty"`
	Units    []Unit            `json:"units"`
	Metadata pipeline.Metadata `json:"metadata"`
}

// Record is a downloadable bundle of a job's artifacts. It outlives the
// job it was made from.
type Record struct {
	ID        string         `json:"export_id"`
	JobID     string         `json:"job_id"`
	Format    docgen.Format  `json:"format"`
	Options   docgen.Options `json:"options"`
	CreatedAt time.Time      `json:"created_at"`
	Files     []File         `json:"files"`
}

// NewRecord bundles a terminal job result. format selects the document
// rendered on download and must be markdown or html.
func NewRecord(res *jobs.Result, format docgen.Format) (Record, error) {
	if format == "" {
		format = docgen.FormatMarkdown
	}
	if format != docgen.FormatMarkdown && format != docgen.FormatHTML {
		return Record{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	rec := Record{
		ID:        uuid.NewString(),
		JobID:     res.ID,
		Format:    format,
		Options:   res.Options,
		CreatedAt: time.Now().UTC(),
		Files:     make([]File, 0, len(res.Files)),
	}
	for _, fr := range res.Files {
		f := File{
			Filename: fr.Filename,
			Language: fr.Language,
			Status:   string(fr.Status),
			Error:    fr.Error,
			Units:    make([]Unit, 0, len(fr.Units)),
			Metadata: fr.Metadata,
		}
		for _, du := range fr.Units {
			u := Unit{
				Kind:      du.Unit.Kind,
				Name:      du.Unit.QualifiedName(),
				Signature: du.Unit.Signature,
				StartLine: du.Unit.StartLine,
				EndLine:   du.Unit.EndLine,
				Status:    string(du.Status),
			}
			if du.Status == docgen.UnitOK {
				u.Documentation = du.Documentation
			} else {
				u.Reason = du.Reason
				if u.Reason == "" {
					u.Reason = string(du.FailureKind)
				}
			}
			f.Units = append(f.Units, u)
		}
		rec.Files = append(rec.Files, f)
	}
	return rec, nil
}
