// Package report exports scan results as YAML, JSON or a plain-text summary.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dupfinder/internal/models"
)

// ErrUnknownFormat is returned by ParseFormat for unsupported names.
var ErrUnknownFormat = errors.New("unknown output format")

// Format selects an export encoding.
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
	Text Format = "text"
)

// ParseFormat resolves a format name. The empty string means YAML.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "", YAML, "yml":
		return YAML, nil
	case JSON, Text:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Document is the exported form of a scan result.
type Document struct {
	Summary          models.Summary `json:"summary" yaml:"summary"`
	Duplicates       []Duplicate    `json:"duplicates" yaml:"duplicates"`
	PotentialMatches []Potential    `json:"potential_matches" yaml:"potential_matches"`
	Metadata         Metadata       `json:"metadata" yaml:"metadata"`
}

// Duplicate is an exported DuplicateGroup.
type Duplicate struct {
	Digest       string          `json:"digest" yaml:"digest"`
	FileCount    int             `json:"file_count" yaml:"file_count"`
	TotalSize    int64           `json:"total_size" yaml:"total_size"`
	WastedSpace  int64           `json:"wasted_space" yaml:"wasted_space"`
	LikelySeries bool            `json:"likely_series,omitempty" yaml:"likely_series,omitempty"`
	Files        []DuplicateFile `json:"files" yaml:"files"`
}

// DuplicateFile is one member of a Duplicate.
type DuplicateFile struct {
	Path   string `json:"path" yaml:"path"`
	Size   int64  `json:"size" yaml:"size"`
	Digest string `json:"digest" yaml:"digest"`
}

// Potential is an exported PotentialMatchGroup.
type Potential struct {
	BaseName          string          `json:"base_name" yaml:"base_name"`
	Threshold         float64         `json:"threshold" yaml:"threshold"`
	AverageSimilarity float64         `json:"average_similarity" yaml:"average_similarity"`
	Files             []PotentialFile `json:"files" yaml:"files"`
}

// PotentialFile is one member of a Potential group.
type PotentialFile struct {
	Path            string  `json:"path" yaml:"path"`
	Size            int64   `json:"size" yaml:"size"`
	SimilarityScore float64 `json:"similarity_score" yaml:"similarity_score"`
}

// Metadata is the exported scan bookkeeping.
type Metadata struct {
	Roots        []string             `json:"roots" yaml:"roots"`
	StartedAt    time.Time            `json:"started_at" yaml:"started_at"`
	Duration     string               `json:"duration" yaml:"duration"`
	FilesFound   int                  `json:"files_found" yaml:"files_found"`
	FilesHashed  int                  `json:"files_hashed" yaml:"files_hashed"`
	CacheHits    int                  `json:"cache_hits" yaml:"cache_hits"`
	HashDuration string               `json:"hash_duration" yaml:"hash_duration"`
	Errors       []models.ErrorRecord `json:"errors,omitempty" yaml:"errors,omitempty"`
	Skipped      []models.SkipRecord  `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	SeriesGroups []Series             `json:"series_groups,omitempty" yaml:"series_groups,omitempty"`
}

// Series is an exported size-group that looked like a numbered series.
type Series struct {
	Size      int64    `json:"size" yaml:"size"`
	PairRatio float64  `json:"pair_ratio" yaml:"pair_ratio"`
	Paths     []string `json:"paths" yaml:"paths"`
}

// Build converts r into its exported form.
func Build(r *models.ScanResult) Document {
	doc := Document{
		Summary:          r.Summary(),
		Duplicates:       make([]Duplicate, 0, len(r.Duplicates)),
		PotentialMatches: make([]Potential, 0, len(r.PotentialMatches)),
	}

	for _, g := range r.Duplicates {
		d := Duplicate{
			Digest:       g.Digest,
			FileCount:    g.Count(),
			TotalSize:    g.TotalSize(),
			WastedSpace:  g.WastedSpace(),
			LikelySeries: g.LikelySeries,
			Files:        make([]DuplicateFile, len(g.Files)),
		}
		for i, f := range g.Files {
			d.Files[i] = DuplicateFile{Path: f.Path, Size: f.Size, Digest: g.Digest}
		}
		doc.Duplicates = append(doc.Duplicates, d)
	}

	for _, g := range r.PotentialMatches {
		p := Potential{
			BaseName:          g.BaseName,
			Threshold:         g.Threshold,
			AverageSimilarity: round(g.AverageSimilarity()),
		}
		for _, sf := range g.SortedBySimilarity() {
			p.Files = append(p.Files, PotentialFile{
				Path:            sf.File.Path,
				Size:            sf.File.Size,
				SimilarityScore: round(sf.Similarity),
			})
		}
		doc.PotentialMatches = append(doc.PotentialMatches, p)
	}

	if m := r.Metadata; m != nil {
		doc.Metadata = Metadata{
			Roots:        m.Roots,
			StartedAt:    m.StartedAt,
			Duration:     formatDuration(m.Duration()),
			FilesFound:   m.FilesFound,
			FilesHashed:  m.FilesHashed,
			CacheHits:    m.CacheHits,
			HashDuration: formatDuration(m.HashDuration),
			Errors:       m.Errors,
			Skipped:      m.Skipped,
		}
		for _, s := range m.SeriesGroups {
			doc.Metadata.SeriesGroups = append(doc.Metadata.SeriesGroups, Series{
				Size:      s.Size,
				PairRatio: round(s.PairRatio),
				Paths:     s.Paths,
			})
		}
	}
	return doc
}

// Write encodes r to w in the given format.
func Write(w io.Writer, r *models.ScanResult, format Format) error {
	switch format {
	case YAML:
		return WriteYAML(w, r)
	case JSON:
		return WriteJSON(w, r)
	case Text:
		return WriteSummary(w, r)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteYAML encodes r as a YAML document.
func WriteYAML(w io.Writer, r *models.ScanResult) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(Build(r)); err != nil {
		return err
	}
	return encoder.Close()
}

// WriteJSON encodes r as an indented JSON object.
func WriteJSON(w io.Writer, r *models.ScanResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(Build(r))
}

// round keeps scores readable in exports.
func round(v float64) float64 {
	return float64(int64(v*1e4+0.5)) / 1e4
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.Round(time.Millisecond).String()
}
