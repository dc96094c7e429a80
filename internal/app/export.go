package app

import (
	"context"
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"drift-health-alerts/internal/storage"
)

// Export renders one business's MRI history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.BusinessID == "" {
		return errors.New("--business is required")
	}
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	runs, err := store.ListRunsBetween(ctx, opts.BusinessID, from, to)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		a.Logger.Info().Str("business_id", opts.BusinessID).Msg("no runs found for export window")
		return nil
	}

	downsampled := downsampleRuns(runs, opts.MaxPoints)
	a.Logger.Info().Int("total", len(runs)).Int("exported", len(downsampled)).Msg("exporting mri history")

	if opts.CSVPath != "" {
		if err := writeRunsCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeRunsPNG(opts.PNGPath, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleRuns(runs []storage.RunRecord, max int) []storage.RunRecord {
	if max <= 0 || len(runs) <= max {
		return runs
	}

	result := make([]storage.RunRecord, 0, max)
	step := float64(len(runs)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(runs) {
			idx = len(runs) - 1
		}
		result = append(result, runs[idx])
	}
	return result
}

func writeRunsCSV(path string, runs []storage.RunRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"cycle_ts", "engine", "status", "mri_score", "delta_pct"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, run := range runs {
		deltaPct := ""
		if run.DeltaPct != nil {
			deltaPct = strconv.FormatFloat(*run.DeltaPct, 'f', -1, 64)
		}
		record := []string{
			run.Cycle.Format(time.RFC3339),
			run.EngineName,
			run.Status,
			strconv.Itoa(run.MRIScore),
			deltaPct,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeRunsPNG(path string, runs []storage.RunRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(runs))
	mri := make([]float64, len(runs))
	delta := make([]float64, len(runs))

	for i, run := range runs {
		x[i] = run.Cycle
		mri[i] = float64(run.MRIScore)
		if run.DeltaPct != nil {
			delta[i] = *run.DeltaPct * 100
		}
	}

	scoreFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "MRI score",
			ValueFormatter: scoreFormatter,
		},
		YAxisSecondary: chart.YAxis{
			Name: "Revenue delta (%)",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "MRI",
				XValues: x,
				YValues: mri,
			},
			chart.TimeSeries{
				Name:    "Revenue delta %",
				XValues: x,
				YValues: delta,
				YAxis:   chart.YAxisSecondary,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
