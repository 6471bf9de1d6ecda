package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/samber/lo"
	"github.com/segmentio/encoding/json"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/anicoll/airquality-integration/internal/pkg/config"
	"github.com/anicoll/airquality-integration/internal/pkg/database"
	"github.com/anicoll/airquality-integration/internal/pkg/database/migration"
	"github.com/anicoll/airquality-integration/internal/pkg/fetcher"
	"github.com/anicoll/airquality-integration/internal/pkg/metrics"
	"github.com/anicoll/airquality-integration/internal/pkg/metrics/prompush"
	"github.com/anicoll/airquality-integration/internal/pkg/model"
	"github.com/anicoll/airquality-integration/internal/pkg/openaq"
	"github.com/anicoll/airquality-integration/internal/pkg/publisher"
	"github.com/anicoll/airquality-integration/internal/pkg/quality"
	"github.com/anicoll/airquality-integration/internal/pkg/registry"
	"github.com/anicoll/airquality-integration/internal/pkg/storage"
	"github.com/anicoll/airquality-integration/pkg/retry"
)

const windowDateLayout = "2006-01-02"

// env holds what every command needs once flags and environment are merged.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Recorder
}

func setup(c *cli.Context, job string) (*env, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	zap.ReplaceGlobals(logger)
	logger = logger.With(zap.String("run_id", uuid.NewString()), zap.String("command", job))

	rec := metrics.Nop()
	if cfg.PushgatewayURL != "" {
		backend, err := prompush.NewBackend("airquality_"+job, cfg.PushgatewayURL)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
		}
		rec = metrics.New(job, backend)
	}

	cleanup := func() {
		if err := rec.Flush(); err != nil {
			logger.Warn("failed to push metrics", zap.Error(err))
		}
		_ = logger.Sync() // flushes buffer, if any.
	}
	return &env{cfg: cfg, logger: logger, metrics: rec}, cleanup, nil
}

// loadConfig reads the environment and lets explicitly set flags win.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("registry") {
		cfg.RegistryPath = c.String("registry")
	}
	if c.IsSet("pushgateway-url") {
		cfg.PushgatewayURL = c.String("pushgateway-url")
	}
	if c.IsSet("database-url") {
		cfg.ArchiveCfg.DatabaseURL = c.String("database-url")
	}
	if c.IsSet("migrations-folder") {
		cfg.ArchiveCfg.MigrationsFolder = c.String("migrations-folder")
	}
	if c.IsSet("timeout") {
		cfg.ApiCfg.Timeout = c.Duration("timeout")
	}
	if c.IsSet("retries") {
		cfg.RetryCfg.Attempts = c.Int("retries")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.Level = lvl
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

func newClient(e *env) (APIClient, error) {
	client, err := openaq.New(openaq.Config{
		BaseURL: e.cfg.ApiCfg.BaseURL,
		APIKey:  e.cfg.ApiCfg.APIKey,
		Timeout: e.cfg.ApiCfg.Timeout,
		Retry: retry.Policy{
			Attempts:   e.cfg.RetryCfg.Attempts,
			Base:       e.cfg.RetryCfg.Base,
			Multiplier: e.cfg.RetryCfg.Multiplier,
			Max:        e.cfg.RetryCfg.Max,
		},
		PageLimit: e.cfg.FetchCfg.PageLimit,
		MaxPages:  e.cfg.FetchCfg.MaxPages,
	}, openaq.WithLogger(e.logger), openaq.WithMetrics(e.metrics))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	return client, nil
}

func loadRegistry(e *env) (*registry.Registry, error) {
	return registry.Load(e.cfg.RegistryPath)
}

// openArchive migrates and connects the Postgres mirror.
func openArchive(ctx context.Context, e *env) (*publisher.Publisher, func(), error) {
	if err := migration.Migrate(e.cfg.ArchiveCfg.DatabaseURL, e.cfg.ArchiveCfg.MigrationsFolder); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Connect(ctx, e.cfg.ArchiveCfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	pub := publisher.New(e.logger)
	if err := pub.RegisterPublisher("postgres", db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return pub, func() { _ = db.Close() }, nil
}

func FetchCommand(c *cli.Context) error {
	e, cleanup, err := setup(c, "fetch")
	if err != nil {
		return err
	}
	defer cleanup()

	reg, err := loadRegistry(e)
	if err != nil {
		return err
	}
	station, err := reg.Resolve(c.String("station"))
	if err != nil {
		return err
	}
	window, err := parseWindow(c.String("start"), c.String("end"), daysBack(c, e.cfg), time.Now())
	if err != nil {
		return err
	}
	if err := e.cfg.RequireAPIKey(); err != nil {
		return err
	}
	client, err := newClient(e)
	if err != nil {
		return err
	}

	opts := []fetcher.Option{fetcher.WithLogger(e.logger), fetcher.WithMetrics(e.metrics)}
	if e.cfg.ArchiveCfg.DatabaseURL != "" {
		pub, closeArchive, err := openArchive(c.Context, e)
		if err != nil {
			return &storage.PersistenceError{Path: "postgres", Op: "open archive", Err: err}
		}
		defer closeArchive()
		opts = append(opts, fetcher.WithArchive(pub))
	}

	output := c.String("output")
	if output == "" {
		output = filepath.Join("data", station.Key+".parquet")
	}
	_, err = runFetch(c.Context, fetcher.New(client, opts...), station, window, output, e.logger)
	return err
}

func daysBack(c *cli.Context, cfg *config.Config) int {
	if c.IsSet("days") {
		return c.Int("days")
	}
	return cfg.FetchCfg.DaysBack
}

func runFetch(ctx context.Context, f Fetcher, station model.StationConfig, window fetcher.Window, output string, logger *zap.Logger) (*model.BatchSummary, error) {
	logger.Info("fetching station",
		zap.String("station", station.Key),
		zap.Strings("parameters", station.Parameters()),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
		zap.String("output", output))

	_, summary, err := f.Fetch(ctx, station, window, output)
	if err != nil {
		logger.Error("fetch failed", zap.String("station", station.Key), zap.Error(err))
		return nil, err
	}
	logger.Info("fetch complete",
		zap.String("station", summary.Station),
		zap.String("path", summary.Path),
		zap.Int("rows", summary.Rows),
		zap.Int("requests", summary.Requests),
		zap.String("checksum", summary.Checksum))
	return summary, nil
}

// parseWindow builds the fetch window from optional explicit bounds and a day
// count. Bounds accept a date or an RFC 3339 timestamp; a date-only end runs to
// midnight after that day. A missing end means now; a missing start means days
// before the end.
func parseWindow(start, end string, days int, now time.Time) (fetcher.Window, error) {
	if start == "" && end == "" {
		return fetcher.LastDays(days, now)
	}

	w := fetcher.Window{End: now.UTC()}
	if end != "" {
		t, dateOnly, err := parseBound(end)
		if err != nil {
			return fetcher.Window{}, err
		}
		if dateOnly {
			// a bare end date covers that whole day.
			t = t.AddDate(0, 0, 1)
		}
		w.End = t
	}
	if start != "" {
		t, _, err := parseBound(start)
		if err != nil {
			return fetcher.Window{}, err
		}
		w.Start = t
	} else {
		if days < 1 {
			return fetcher.Window{}, fmt.Errorf("%w: days back must be at least 1, got %d", fetcher.ErrInvalidWindow, days)
		}
		w.Start = w.End.AddDate(0, 0, -days)
	}
	return w, w.Validate()
}

// parseBound reads an RFC 3339 timestamp or a date, reporting which it was.
func parseBound(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), false, nil
	}
	if t, err := time.Parse(windowDateLayout, v); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: cannot parse %q, want YYYY-MM-DD or RFC 3339", fetcher.ErrInvalidWindow, v)
}

func QualityCommand(c *cli.Context) error {
	e, cleanup, err := setup(c, "quality")
	if err != nil {
		return err
	}
	defer cleanup()

	opts := []quality.Option{quality.WithLogger(e.logger), quality.WithMetrics(e.metrics)}
	var expected *model.StationConfig
	if key := c.String("station"); key != "" {
		reg, err := loadRegistry(e)
		if err != nil {
			return err
		}
		st, err := reg.Resolve(key)
		if err != nil {
			return err
		}
		expected = &st
	} else if reg, err := loadRegistry(e); err == nil {
		opts = append(opts, quality.WithStations(reg.Lookup))
	} else {
		e.logger.Warn("station registry unavailable, skipping expected parameters", zap.Error(err))
	}

	checker := quality.New(opts...)
	_, err = runQuality(c.Context, checker, c.String("input"), expected, c.String("report"), c.App.Writer)
	return err
}

func runQuality(ctx context.Context, checker Checker, input string, expected *model.StationConfig, reportPath string, w io.Writer) (*model.QualityReport, error) {
	report, err := checker.Check(ctx, input, expected)
	if err != nil {
		return nil, err
	}
	if reportPath != "" {
		if err := quality.WriteJSON(report, reportPath); err != nil {
			return nil, err
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return nil, err
	}
	return report, nil
}

func DiscoverCommand(c *cli.Context) error {
	e, cleanup, err := setup(c, "discover")
	if err != nil {
		return err
	}
	defer cleanup()

	if err := e.cfg.RequireAPIKey(); err != nil {
		return err
	}
	client, err := newClient(e)
	if err != nil {
		return err
	}
	return runDiscover(c.Context, client, c.String("name"), c.Int64("location-id"), c.App.Writer, e.logger)
}

var errNoLocation = errors.New("no matching location")

func runDiscover(ctx context.Context, d Discoverer, name string, locationID int64, w io.Writer, logger *zap.Logger) error {
	if name == "" && locationID <= 0 {
		return fmt.Errorf("%w: --name or --location-id is required", config.ErrConfiguration)
	}
	if name != "" && locationID > 0 {
		return fmt.Errorf("%w: --name and --location-id are mutually exclusive", config.ErrConfiguration)
	}

	label := fmt.Sprintf("location %d", locationID)
	if locationID <= 0 {
		locations, err := d.Locations(ctx, name)
		if err != nil {
			return err
		}
		if len(locations) == 0 {
			return fmt.Errorf("%w: %q", errNoLocation, name)
		}
		if len(locations) > 1 {
			logger.Warn("several locations match, using the first",
				zap.String("name", name),
				zap.Strings("candidates", lo.Map(locations, func(l openaq.Location, _ int) string {
					return fmt.Sprintf("%d %s", l.ID, l.Name)
				})))
		}
		locationID = locations[0].ID
		label = locations[0].Name
	}

	sensors, err := d.LocationSensors(ctx, locationID)
	if err != nil {
		return err
	}
	logger.Info("sensors discovered", zap.Int64("location_id", locationID), zap.Int("sensors", len(sensors)))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "SENSOR\tPARAMETER\tUNITS\tLATEST\n")
	for _, s := range sensors {
		latest := "-"
		if s.Latest != nil && s.Latest.Value.Valid {
			latest = fmt.Sprintf("%g", s.Latest.Value.Float64)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Parameter.Name, s.Parameter.Units, latest)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	station := model.StationConfig{
		Label:      label,
		LocationID: locationID,
		Sensors: lo.Map(sensors, func(s openaq.SensorInfo, _ int) model.SensorConfig {
			return model.SensorConfig{Parameter: s.Parameter.Name, SensorID: s.ID, Unit: s.Parameter.Units}
		}),
	}
	doc := map[string]map[string]model.StationConfig{
		"stations": {slug.Make(label): station},
	}
	fmt.Fprintln(w)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func StationsCommand(c *cli.Context) error {
	e, cleanup, err := setup(c, "stations")
	if err != nil {
		return err
	}
	defer cleanup()

	reg, err := loadRegistry(e)
	if err != nil {
		return err
	}
	return listStations(reg, c.App.Writer)
}

func listStations(reg *registry.Registry, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "KEY\tLABEL\tLOCATION\tPARAMETERS\n")
	for _, key := range reg.Keys() {
		st, _ := reg.Lookup(key)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", key, st.Label, st.LocationID, strings.Join(st.Parameters(), ","))
	}
	return tw.Flush()
}

func PruneCommand(c *cli.Context) error {
	e, cleanup, err := setup(c, "prune")
	if err != nil {
		return err
	}
	defer cleanup()

	if e.cfg.ArchiveCfg.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL is not set", config.ErrConfiguration)
	}
	olderThan := c.Duration("older-than")
	if olderThan <= 0 {
		return fmt.Errorf("%w: --older-than must be positive", config.ErrConfiguration)
	}

	db, err := database.Connect(c.Context, e.cfg.ArchiveCfg.DatabaseURL)
	if err != nil {
		return &storage.PersistenceError{Path: "postgres", Op: "connect", Err: err}
	}
	defer db.Close()

	cutoff := time.Now().Add(-olderThan)
	removed, err := db.Cleanup(c.Context, cutoff)
	if err != nil {
		return &storage.PersistenceError{Path: "postgres", Op: "cleanup", Err: err}
	}
	e.logger.Info("archive pruned", zap.Time("cutoff", cutoff), zap.Int64("rows", removed))
	return nil
}
