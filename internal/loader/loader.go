package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/segadb/segadb/internal/database"
	"github.com/segadb/segadb/internal/table"
	"github.com/segadb/segadb/pkg"
)

type ColumnType string

const (
	TypeString ColumnType = "string"
	TypeInt    ColumnType = "int"
	TypeFloat  ColumnType = "float"
	TypeBool   ColumnType = "bool"
)

// Options configures a CSV load.
type Options struct {
	Path      string
	TableName string

	// Delimiter defaults to ','.
	Delimiter rune

	// Headers treats the first line as column names.
	Headers bool

	// ColumnNames overrides the column names when Headers is false.
	// When both are unset, names are generated as column0..columnN-1.
	ColumnNames []string

	// ColumnTypes converts field i of every row to the given type.
	// Nil leaves every field a string.
	ColumnTypes []ColumnType

	// Parallel splits the file into newline-aligned byte ranges parsed
	// by concurrent workers.
	Parallel bool

	// MaxChunkSize caps the size of a parallel chunk in bytes.
	// Zero means no cap.
	MaxChunkSize int64

	// MaxWorkers caps the worker count. Zero means the number of CPUs.
	MaxWorkers int
}

// ParseError reports a malformed row. ChunkStart and ChunkEnd locate the
// byte range being parsed and Line is the 1-based row within that range.
type ParseError struct {
	ChunkStart int64
	ChunkEnd   int64
	Line       int
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in chunk [%d,%d) at line %d: %v", e.ChunkStart, e.ChunkEnd, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Load parses the CSV at opts.Path and creates a new table holding its
// rows, ids assigned sequentially in file order. The load is
// all-or-nothing: any malformed row aborts it and no table is created.
func Load(ctx context.Context, db *database.Database, opts Options) (*table.Table, error) {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if opts.Headers && len(opts.ColumnNames) > 0 {
		pkg.WarnLog("both headers and explicit column names given; using headers")
	}
	if _, err := db.GetTable(opts.TableName); err == nil {
		return nil, errors.Errorf("table %s already exists", opts.TableName)
	}

	f, err := os.Open(opts.Path)
	if err != nil {
		return nil, errors.Wrap(err, "opening csv file")
	}
	defer f.Close()

	columns, dataStart, err := resolveColumns(f, opts)
	if err != nil {
		return nil, err
	}
	if opts.ColumnTypes != nil && len(opts.ColumnTypes) != len(columns) {
		return nil, errors.Errorf("column types count %d does not match column count %d", len(opts.ColumnTypes), len(columns))
	}

	var rows []map[string]any
	if opts.Parallel {
		rows, err = loadParallel(ctx, f, columns, dataStart, opts)
	} else {
		rows, err = loadSerial(ctx, f, columns, dataStart, opts)
	}
	if err != nil {
		return nil, err
	}

	tbl, err := db.CreateTable(opts.TableName, columns)
	if err != nil {
		return nil, err
	}
	if err := tbl.BulkInsert(rows); err != nil {
		db.DropTable(opts.TableName)
		return nil, err
	}
	return tbl, nil
}

// resolveColumns determines the column names and the byte offset where
// row data begins.
func resolveColumns(f *os.File, opts Options) ([]string, int64, error) {
	if !opts.Headers && len(opts.ColumnNames) > 0 {
		return opts.ColumnNames, 0, nil
	}

	r := csv.NewReader(f)
	r.Comma = opts.Delimiter
	first, err := r.Read()
	if err != nil {
		return nil, 0, errors.Wrap(err, "reading first csv line")
	}
	offset := r.InputOffset()
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, 0, errors.Wrap(err, "rewinding csv file")
	}

	if opts.Headers {
		columns := make([]string, len(first))
		for i, name := range first {
			columns[i] = strings.TrimSpace(name)
		}
		return columns, offset, nil
	}
	columns := make([]string, len(first))
	for i := range first {
		columns[i] = fmt.Sprintf("column%d", i)
	}
	return columns, 0, nil
}

func loadSerial(ctx context.Context, f *os.File, columns []string, dataStart int64, opts Options) ([]map[string]any, error) {
	size, err := fileSize(f)
	if err != nil {
		return nil, err
	}
	if _, err := f.Seek(dataStart, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "seeking to data start")
	}
	return parseRange(ctx, f, size-dataStart, columns, dataStart, size, opts)
}

func loadParallel(ctx context.Context, f *os.File, columns []string, dataStart int64, opts Options) ([]map[string]any, error) {
	size, err := fileSize(f)
	if err != nil {
		return nil, err
	}
	if dataStart >= size {
		return nil, nil
	}

	workers := opts.MaxWorkers
	if workers <= 0 || workers > runtime.NumCPU() {
		workers = runtime.NumCPU()
	}
	chunkSize := (size - dataStart) / int64(workers)
	if chunkSize < 1 {
		chunkSize = 1
	}
	if opts.MaxChunkSize > 0 && chunkSize > opts.MaxChunkSize {
		chunkSize = opts.MaxChunkSize
	}

	chunks, err := chunkRanges(f, dataStart, size, chunkSize)
	if err != nil {
		return nil, err
	}

	results := make([][]map[string]any, len(chunks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			cf, err := os.Open(opts.Path)
			if err != nil {
				return errors.Wrap(err, "opening csv file for chunk")
			}
			defer cf.Close()
			if _, err := cf.Seek(c.Start, io.SeekStart); err != nil {
				return errors.Wrap(err, "seeking to chunk start")
			}
			rows, err := parseRange(ctx, cf, c.End-c.Start, columns, c.Start, c.End, opts)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var rows []map[string]any
	for _, part := range results {
		rows = append(rows, part...)
	}
	return rows, nil
}

// parseRange reads exactly limit bytes from r and parses them as CSV
// rows. start and end only locate errors.
func parseRange(ctx context.Context, r io.Reader, limit int64, columns []string, start, end int64, opts Options) ([]map[string]any, error) {
	cr := csv.NewReader(io.LimitReader(r, limit))
	cr.Comma = opts.Delimiter
	cr.FieldsPerRecord = len(columns)

	var rows []map[string]any
	line := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		fields, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		line++
		if err != nil {
			return nil, &ParseError{ChunkStart: start, ChunkEnd: end, Line: line, Err: err}
		}

		row := make(map[string]any, len(columns))
		for i, field := range fields {
			value, err := convertField(field, opts.ColumnTypes, i)
			if err != nil {
				return nil, &ParseError{ChunkStart: start, ChunkEnd: end, Line: line, Err: err}
			}
			row[columns[i]] = value
		}
		rows = append(rows, row)
	}
}

func convertField(field string, types []ColumnType, i int) (any, error) {
	if types == nil {
		return field, nil
	}
	switch types[i] {
	case TypeInt:
		n, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, errors.Wrapf(err, "field %d as int", i)
		}
		return n, nil
	case TypeFloat:
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "field %d as float", i)
		}
		return v, nil
	case TypeBool:
		b, err := strconv.ParseBool(strings.TrimSpace(field))
		if err != nil {
			return nil, errors.Wrapf(err, "field %d as bool", i)
		}
		return b, nil
	case TypeString, "":
		return field, nil
	default:
		return nil, errors.Errorf("unknown column type %q", types[i])
	}
}

func fileSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, errors.Wrap(err, "stat csv file")
	}
	return info.Size(), nil
}
