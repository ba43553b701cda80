// Package nengosim is the public entry point: it loads model descriptions,
// runs them and persists the resulting probe recordings.
package nengosim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"nengosim/internal/logging"
	"nengosim/internal/metrics"
	"nengosim/internal/model"
	"nengosim/internal/modelspec"
	"nengosim/internal/network"
	"nengosim/internal/storage"
)

const (
	defaultDBPath    = "nengosim.db"
	defaultRunsLimit = 20
)

type Options struct {
	StoreKind string
	DBPath    string
	Logger    *slog.Logger
	Metrics   *metrics.Registry
	// Workers bounds parallel evaluation of accelerated nodes per step. Zero
	// means GOMAXPROCS; nodes without the accelerator flag always run serially.
	Workers int
}

type Client struct {
	store   storage.Store
	logger  *slog.Logger
	metrics *metrics.Registry
	workers int
}

// RunRequest names the model to run, either by path or in memory. Start and
// End override the model's run window when set.
type RunRequest struct {
	ModelPath string
	Model     *modelspec.Model
	Start     *float64
	End       *float64
}

type RunSummary struct {
	RunID    string
	Network  string
	Steps    int
	Duration time.Duration
	// Recordings maps probe keys to their recorded sample counts.
	Recordings map[string]int
	Fault      string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string
	CreatedAtUTC string
	Network      string
	StartTime    float64
	EndTime      float64
	Steps        int
	Probes       int
	Fault        string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:   store,
		logger:  logging.OrDiscard(opts.Logger),
		metrics: opts.Metrics,
		workers: opts.Workers,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Run builds and simulates the requested model, then stores a run record and
// one recording per probe. A run that faults or is cancelled is still stored,
// with its partial recordings, and the simulation error is returned alongside
// the summary.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	m, modelPath, err := c.resolveModel(req)
	if err != nil {
		return RunSummary{}, err
	}
	if req.Start != nil {
		m.Run.Start = *req.Start
	}
	if req.End != nil {
		m.Run.End = *req.End
	}
	if m.Run.End <= m.Run.Start {
		return RunSummary{}, fmt.Errorf("run window end %g must be after start %g", m.Run.End, m.Run.Start)
	}
	if err := c.store.Init(ctx); err != nil {
		return RunSummary{}, err
	}

	built, err := modelspec.Build(m, network.Options{
		Logger:  c.logger,
		Metrics: c.metrics,
		Workers: c.workers,
	})
	if err != nil {
		return RunSummary{}, err
	}
	net := built.Network

	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID, "network", net.Name())
	logger.Info("run started", "start", m.Run.Start, "end", m.Run.End, "step_size", net.StepSize())

	began := time.Now()
	runErr := net.Simulate(ctx, m.Run.Start, m.Run.End)
	elapsed := time.Since(began)

	keys := make([]string, 0, len(built.Probes))
	for key := range built.Probes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	summary := RunSummary{
		RunID:      runID,
		Network:    net.Name(),
		Steps:      stepCount(m.Run.Start, m.Run.End, net.StepSize()),
		Duration:   elapsed,
		Recordings: make(map[string]int, len(keys)),
	}
	record := model.RunRecord{
		VersionedRecord: storage.Versioned(),
		ID:              runID,
		Network:         net.Name(),
		ModelPath:       modelPath,
		CreatedAtUTC:    time.Now().UTC().Format(time.RFC3339Nano),
		StartTime:       m.Run.Start,
		EndTime:         m.Run.End,
		StepSize:        net.StepSize(),
		Steps:           summary.Steps,
		NodeCount:       len(net.Nodes()),
		Projections:     len(net.Projections()),
		ProbeKeys:       keys,
	}
	if runErr != nil {
		record.Fault = runErr.Error()
		summary.Fault = record.Fault
	}

	// Recordings are saved before the run record so a listed run always has them.
	for _, key := range keys {
		p := built.Probes[key]
		data := p.Data()
		recording := model.RecordingFromTimeSeries(runID, key, p.Address().String(), p.State(), data)
		recording.VersionedRecord = storage.Versioned()
		if err := c.store.SaveRecording(ctx, recording); err != nil {
			return summary, fmt.Errorf("save recording %s: %w", key, err)
		}
		summary.Recordings[key] = data.Len()
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return summary, fmt.Errorf("save run %s: %w", runID, err)
	}

	if runErr != nil {
		logger.Warn("run ended early", "error", runErr, "elapsed", elapsed)
		return summary, runErr
	}
	logger.Info("run completed", "steps", summary.Steps, "elapsed", elapsed)
	return summary, nil
}

func (c *Client) resolveModel(req RunRequest) (*modelspec.Model, string, error) {
	switch {
	case req.ModelPath != "" && req.Model != nil:
		return nil, "", errors.New("use either model path or model")
	case req.Model != nil:
		if err := modelspec.Validate(req.Model); err != nil {
			return nil, "", err
		}
		copied := *req.Model
		return &copied, "", nil
	case req.ModelPath != "":
		m, err := modelspec.Load(req.ModelPath)
		if err != nil {
			return nil, "", err
		}
		return m, req.ModelPath, nil
	default:
		return nil, "", errors.New("run requires a model path or model")
	}
}

func stepCount(start, end, step float64) int {
	if step <= 0 {
		return 0
	}
	return int(math.Ceil((end-start)/step - 1e-9))
}

// Validate loads and validates the model at path without running it.
func (c *Client) Validate(_ context.Context, path string) (*modelspec.Model, error) {
	return modelspec.Load(path)
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}

	runs, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}

	out := make([]RunItem, 0, len(runs))
	for _, r := range runs {
		out = append(out, RunItem{
			RunID:        r.ID,
			CreatedAtUTC: r.CreatedAtUTC,
			Network:      r.Network,
			StartTime:    r.StartTime,
			EndTime:      r.EndTime,
			Steps:        r.Steps,
			Probes:       len(r.ProbeKeys),
			Fault:        r.Fault,
		})
	}
	return out, nil
}

// Recordings lists the probe keys stored for a run.
func (c *Client) Recordings(ctx context.Context, runID string) ([]string, error) {
	if err := c.store.Init(ctx); err != nil {
		return nil, err
	}
	if _, ok, err := c.store.GetRun(ctx, runID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return c.store.ListRecordings(ctx, runID)
}

// Recording returns one stored probe recording as a TimeSeries.
func (c *Client) Recording(ctx context.Context, runID, key string) (model.TimeSeries, error) {
	if err := c.store.Init(ctx); err != nil {
		return model.TimeSeries{}, err
	}
	recording, ok, err := c.store.GetRecording(ctx, runID, key)
	if err != nil {
		return model.TimeSeries{}, err
	}
	if !ok {
		return model.TimeSeries{}, fmt.Errorf("recording not found: %s/%s", runID, key)
	}
	return recording.ToTimeSeries()
}

func (c *Client) DeleteRun(ctx context.Context, runID string) error {
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	return c.store.DeleteRun(ctx, runID)
}

// Reset drops every stored run and recording.
func (c *Client) Reset(ctx context.Context) error {
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	return c.store.Reset(ctx)
}
