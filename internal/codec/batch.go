package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/roach88/galactic/internal/ir"
	"github.com/roach88/galactic/internal/telemetry"
)

// Format is a batch file serialization.
type Format string

// Supported batch formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown batch format %q (want json or yaml)", s)
	}
}

// FormatFromPath picks the format from a file extension. Anything other
// than .yaml or .yml is read as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ReadBatch decodes one batch. Every element must be an object; its
// content is not validated here.
func ReadBatch(r io.Reader, format Format) ([]ir.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	var elems ir.IRArray
	switch format {
	case FormatYAML:
		elems, err = decodeYAML(data)
	default:
		elems, err = decodeJSON(data)
	}
	if err != nil {
		return nil, err
	}

	recs := make([]ir.Record, 0, len(elems))
	for i, elem := range elems {
		obj, ok := elem.(ir.IRObject)
		if !ok {
			return nil, fmt.Errorf("batch element %d: expected object, got %T", i, elem)
		}
		rec, err := ir.RecordFromObject(obj)
		if err != nil {
			return nil, fmt.Errorf("batch element %d: %w", i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func decodeJSON(data []byte) (ir.IRArray, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var arr ir.IRArray
	if err := json.Unmarshal(data, &arr); err != nil {
		return nil, fmt.Errorf("decode json batch: %w", err)
	}
	return arr, nil
}

func decodeYAML(data []byte) (ir.IRArray, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode yaml batch: %w", err)
	}
	if raw == nil {
		return nil, nil
	}
	if _, ok := raw.([]any); !ok {
		return nil, fmt.Errorf("decode yaml batch: top level must be a sequence, got %T", raw)
	}
	v, err := ir.FromGo(normalizeYAML(raw))
	if err != nil {
		return nil, fmt.Errorf("decode yaml batch: %w", err)
	}
	return v.(ir.IRArray), nil
}

// normalizeYAML rewrites what yaml.v3 may produce for an untyped target
// into values ir.FromGo accepts.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, elem := range val {
			val[k] = normalizeYAML(elem)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[fmt.Sprint(k)] = normalizeYAML(elem)
		}
		return out
	case []any:
		for i, elem := range val {
			val[i] = normalizeYAML(elem)
		}
		return val
	case time.Time:
		return val.UTC().Format(ir.DatetimeLayout)
	default:
		return v
	}
}

// ReadBatchFile reads one batch file, choosing the format by extension.
func ReadBatchFile(path string) ([]ir.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch: %w", err)
	}
	defer f.Close()
	recs, err := ReadBatch(f, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// ReadBatchFiles parses paths concurrently and concatenates the records in
// argument order. The first failure cancels the remaining reads.
func ReadBatchFiles(ctx context.Context, paths []string) (recs []ir.Record, err error) {
	ctx, span := telemetry.Start(ctx, telemetry.SpanReadFiles, attribute.Int("files", len(paths)))
	defer func() { telemetry.End(span, err) }()

	parts := make([][]ir.Record, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			part, err := ReadBatchFile(path)
			if err != nil {
				return err
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, part := range parts {
		recs = append(recs, part...)
	}
	return recs, nil
}

// WriteBatch writes records as canonical JSON followed by a newline, or as
// a YAML sequence.
func WriteBatch(w io.Writer, recs []ir.Record, format Format) error {
	if format == FormatYAML {
		doc := make([]any, len(recs))
		for i, rec := range recs {
			doc[i] = ir.ToGo(rec.Flatten())
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("write yaml batch: %w", err)
		}
		return enc.Close()
	}

	if recs == nil {
		recs = []ir.Record{}
	}
	data, err := ir.MarshalCanonical(recs)
	if err != nil {
		return fmt.Errorf("write json batch: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write json batch: %w", err)
	}
	return nil
}
