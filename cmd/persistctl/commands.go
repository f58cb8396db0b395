package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kbukum/persist/entity"
	"github.com/kbukum/persist/errors"
	"github.com/kbukum/persist/observability"
	"github.com/kbukum/persist/pipeline"
	"github.com/kbukum/persist/storage"
	"github.com/kbukum/persist/validation"
	"github.com/kbukum/persist/version"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string, stdout io.Writer) error
	// standalone commands run without config or storage; a is nil.
	standalone bool
}

var commands = []command{
	{"import", "save records from JSON files", runImport, false},
	{"list", "print records as JSON lines", runList, false},
	{"get", "print one record by id", runGet, false},
	{"search", "full text search", runSearch, false},
	{"count", "count records", runCount, false},
	{"delete", "delete records by id", runDelete, false},
	{"health", "check the storage backend", runHealth, false},
	{"version", "print the build version", runVersion, true},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func newFlags(name string, stdout io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stdout)
	return fs
}

func runImport(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlags("import", stdout)
	batch := fs.IntP("batch", "b", 100, "records saved per storage call")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.InvalidArgument("import needs at least one file")
	}
	if err := validation.New().Min("batch", *batch, 1).Validate(); err != nil {
		return err
	}

	sources := make([]*pipeline.Pipeline[entity.PlainData], 0, fs.NArg())
	for _, path := range fs.Args() {
		records, err := readRecords(path)
		if err != nil {
			return err
		}
		sources = append(sources, pipeline.FromSlice(records))
	}
	entities := pipeline.Map(pipeline.Concat(sources...), func(_ context.Context, d entity.PlainData) (entity.Entity, error) {
		return a.gw.Create(d)
	})

	saved := 0
	err := pipeline.ForEach(ctx, pipeline.Batch(entities, *batch), func(ctx context.Context, chunk []entity.Entity) error {
		if err := a.gw.Save(ctx, chunk); err != nil {
			return err
		}
		for _, e := range chunk {
			fmt.Fprintln(stdout, e.(entity.Identifiable).ID())
		}
		saved += len(chunk)
		return nil
	})
	a.log.Info("import finished", map[string]interface{}{"saved": saved, "files": fs.NArg()})
	return err
}

// readRecords reads a JSON array of objects or a single object.
func readRecords(path string) ([]entity.PlainData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var one entity.PlainData
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, errors.InvalidArgument("invalid JSON in " + path).WithCause(err)
		}
		return []entity.PlainData{one}, nil
	}
	var many []entity.PlainData
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, errors.InvalidArgument("invalid JSON in " + path).WithCause(err)
	}
	return many, nil
}

func runList(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlags("list", stdout)
	query := queryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter, opts, err := query.build()
	if err != nil {
		return err
	}
	records, err := a.gw.Fetch(ctx, filter, opts...)
	if err != nil {
		return err
	}
	return printRecords(ctx, records, stdout)
}

func runGet(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.InvalidArgument("get takes exactly one id")
	}
	e, err := a.gw.Find(ctx, parseID(args[0]))
	if err != nil {
		return err
	}
	return json.NewEncoder(stdout).Encode(e.ToPlainData())
}

func runSearch(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlags("search", stdout)
	query := queryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.InvalidArgument("search needs at least one term")
	}
	filter, opts, err := query.build()
	if err != nil {
		return err
	}
	records, err := a.gw.Search(ctx, strings.Join(fs.Args(), " "), filter, opts...)
	if err != nil {
		return err
	}
	return printRecords(ctx, records, stdout)
}

func runCount(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	fs := newFlags("count", stdout)
	query := queryFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	filter, opts, err := query.build()
	if err != nil {
		return err
	}
	n, err := a.gw.Count(ctx, filter, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, n)
	return nil
}

func runDelete(ctx context.Context, a *app, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.InvalidArgument("delete needs at least one id")
	}
	ids := make([]any, len(args))
	records := make([]*entity.Record, len(args))
	for i, arg := range args {
		ids[i] = parseID(arg)
		records[i] = entity.NewRecord(entity.PlainData{entity.IDField: ids[i]})
	}

	filter := storage.FilterOnID(ids, storage.OpIn)
	before, err := a.gw.Count(ctx, filter)
	if err != nil {
		return err
	}
	if err := a.gw.Delete(ctx, records); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d deleted\n", before)
	return nil
}

func runHealth(ctx context.Context, a *app, _ []string, stdout io.Writer) error {
	h := observability.NewServiceHealth(a.cfg.Name, a.cfg.Version).Check(ctx, 5*time.Second, a.store)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(h); err != nil {
		return err
	}
	if h.Status != observability.HealthStatusUp {
		return errors.PreconditionFailed("storage is " + string(h.Status))
	}
	return nil
}

func runVersion(_ context.Context, _ *app, args []string, stdout io.Writer) error {
	fs := newFlags("version", stdout)
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	info := version.Get()
	if *asJSON {
		return json.NewEncoder(stdout).Encode(info)
	}
	_, err := fmt.Fprintf(stdout, "%s %s\n", serviceName, info)
	return err
}

type queryOptions struct {
	limit   *int
	offset  *int
	sort    *[]string
	filters *[]string
}

func queryFlags(fs *pflag.FlagSet) queryOptions {
	return queryOptions{
		limit:   fs.IntP("limit", "n", 0, "maximum number of records, 0 for all"),
		offset:  fs.Int("offset", 0, "records to skip"),
		sort:    fs.StringSlice("sort", nil, "sort fields, prefix with - for descending"),
		filters: fs.StringArrayP("filter", "f", nil, "filter as key=value, e.g. 'age(min)=30'"),
	}
}

func (q queryOptions) build() (storage.Filter, []storage.Option, error) {
	v := validation.New().Min("limit", *q.limit, 0).Min("offset", *q.offset, 0)
	filter := storage.Filter{}
	for _, kv := range *q.filters {
		key, raw, ok := strings.Cut(kv, "=")
		ok = ok && key != ""
		v.Custom(ok, "filter", fmt.Sprintf("%q must be key=value", kv))
		if ok {
			filter[key] = parseValue(raw)
		}
	}
	if err := v.Validate(); err != nil {
		return nil, nil, err
	}
	if _, err := filter.Conditions(); err != nil {
		return nil, nil, err
	}
	opts := []storage.Option{storage.WithLimit(*q.limit), storage.WithOffset(*q.offset)}
	if len(*q.sort) > 0 {
		opts = append(opts, storage.WithSort(*q.sort...))
	}
	return filter, opts, nil
}

// parseValue reads raw as JSON so numbers, booleans and lists keep their
// type; anything else is a plain string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// parseID returns an int64 for numeric ids and the string otherwise.
func parseID(raw string) any {
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n
	}
	return raw
}

func printRecords(ctx context.Context, records *pipeline.Pipeline[entity.PlainData], stdout io.Writer) error {
	enc := json.NewEncoder(stdout)
	return pipeline.ForEach(ctx, records, func(_ context.Context, d entity.PlainData) error {
		return enc.Encode(d)
	})
}
