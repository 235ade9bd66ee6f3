package frequency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"ppde/internal/classify"
	"ppde/internal/errors"
	"ppde/internal/slogutil"
)

// SnapshotVersion is the on-disk snapshot schema version.
const SnapshotVersion = 1

// Source produces the table used for one analysis run.
type Source interface {
	Load(ctx context.Context) (*Table, error)
}

// Optional is implemented by sources that may legitimately not exist yet,
// such as a repository store before its first baseline build. Only an
// optional source's STORE_UNAVAILABLE degrades to cold start; a source the
// user named explicitly must load or fail.
type Optional interface {
	Optional() bool
}

// IsOptional reports whether src tolerates being unavailable.
func IsOptional(src Source) bool {
	o, ok := src.(Optional)
	return ok && o.Optional()
}

// EmptySource always yields the cold-start table.
type EmptySource struct{}

// Load implements Source.
func (EmptySource) Load(context.Context) (*Table, error) {
	return Empty(), nil
}

// Format is a snapshot serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat accepts json, yaml/yml and toml.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unknown snapshot format %q (expected json, yaml or toml)", s)
	}
}

// FormatFromPath infers the format from the file extension. A trailing .zst
// marks the file as zstd-compressed. Unknown extensions default to JSON.
func FormatFromPath(path string) (format Format, compressed bool) {
	name := strings.ToLower(filepath.Base(path))
	if strings.HasSuffix(name, ".zst") {
		compressed = true
		name = strings.TrimSuffix(name, ".zst")
	}
	if f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(name), ".")); err == nil {
		return f, compressed
	}
	return FormatJSON, compressed
}

type snapshotFile struct {
	Version int              `json:"version" yaml:"version" toml:"version"`
	Records []snapshotRecord `json:"records" yaml:"records" toml:"records"`
}

type snapshotRecord struct {
	Detector  string `json:"detector" yaml:"detector" toml:"detector"`
	Context   int    `json:"context" yaml:"context" toml:"context"`
	Signature string `json:"signature,omitempty" yaml:"signature,omitempty" toml:"signature,omitempty"`
	N         int    `json:"n" yaml:"n" toml:"n"`
	K         int    `json:"k" yaml:"k" toml:"k"`
}

// SnapshotSource loads a table from a snapshot file written by WriteSnapshot.
type SnapshotSource struct {
	Path   string
	Logger *slog.Logger
}

// Load implements Source. A missing or unreadable file is STORE_UNAVAILABLE;
// an invalid record is STORE_INVARIANT.
func (s SnapshotSource) Load(ctx context.Context) (*Table, error) {
	logger := slogutil.OrDiscard(s.Logger)

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.NewPpdeError(errors.StoreUnavailable, "cannot open snapshot "+s.Path, err, nil)
	}
	defer f.Close()

	format, compressed := FormatFromPath(s.Path)
	table, err := ReadSnapshot(f, format, compressed)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded frequency snapshot",
		"path", s.Path,
		"format", string(format),
		"records", table.Len(),
	)
	return table, nil
}

// ReadSnapshot decodes a snapshot stream into a validated table.
func ReadSnapshot(r io.Reader, format Format, compressed bool) (*Table, error) {
	if compressed {
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, errors.NewPpdeError(errors.StoreUnavailable, "cannot open zstd stream", err, nil)
		}
		defer dec.Close()
		r = dec
	}

	var snap snapshotFile
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&snap)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&snap)
		if err == io.EOF {
			err = nil
		}
	case FormatTOML:
		err = toml.NewDecoder(r).Decode(&snap)
	default:
		err = fmt.Errorf("unknown snapshot format %q", format)
	}
	if err != nil {
		return nil, errors.NewPpdeError(errors.StoreUnavailable, "cannot decode snapshot", err, nil)
	}
	if snap.Version > SnapshotVersion {
		return nil, errors.NewPpdeError(errors.StoreUnavailable,
			fmt.Sprintf("snapshot version %d is newer than supported version %d", snap.Version, SnapshotVersion), nil, nil)
	}

	records := make(map[Key]Record, len(snap.Records))
	for _, sr := range snap.Records {
		if sr.Context < 0 || sr.Context >= classify.NumContexts {
			return nil, errors.NewPpdeError(errors.StoreInvariant,
				fmt.Sprintf("record %s has context id %d outside [0,%d)", sr.Detector, sr.Context, classify.NumContexts), nil, nil)
		}
		key := Key{Detector: sr.Detector, Context: classify.Context(sr.Context)}
		if _, dup := records[key]; dup {
			return nil, errors.NewPpdeError(errors.StoreInvariant, "duplicate record "+key.String(), nil, nil)
		}
		records[key] = Record{N: sr.N, K: sr.K}
	}
	return NewTable(records)
}

// WriteSnapshot encodes table in the given format, optionally zstd-compressed.
// Records are written in Table.Records order so output is reproducible.
func WriteSnapshot(w io.Writer, table *Table, format Format, compress bool) (err error) {
	if compress {
		enc, encErr := zstd.NewWriter(w)
		if encErr != nil {
			return fmt.Errorf("failed to create zstd writer: %w", encErr)
		}
		defer func() {
			if cerr := enc.Close(); err == nil && cerr != nil {
				err = fmt.Errorf("failed to flush zstd writer: %w", cerr)
			}
		}()
		w = enc
	}

	snap := snapshotFile{Version: SnapshotVersion, Records: []snapshotRecord{}}
	for _, e := range table.Records() {
		snap.Records = append(snap.Records, snapshotRecord{
			Detector:  e.Detector,
			Context:   int(e.Context),
			Signature: e.Context.String(),
			N:         e.N,
			K:         e.K,
		})
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(snap)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(snap); err == nil {
			err = enc.Close()
		}
	case FormatTOML:
		err = toml.NewEncoder(w).Encode(snap)
	default:
		err = fmt.Errorf("unknown snapshot format %q", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return nil
}

// WriteSnapshotFile writes table to path, inferring format and compression
// from the extension unless format is non-empty.
func WriteSnapshotFile(path string, table *Table, format Format) error {
	inferred, compressed := FormatFromPath(path)
	if format == "" {
		format = inferred
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	if err := WriteSnapshot(f, table, format, compressed); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
