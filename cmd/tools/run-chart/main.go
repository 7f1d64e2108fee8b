// Command run-chart renders a stored run's speed and distance curves to an
// HTML chart, and optionally a PNG for reports.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/gpsbench/dragtimer/internal/history"
	"github.com/gpsbench/dragtimer/internal/run"
)

var (
	dbFile  = flag.String("db", "runs.db", "History database path")
	runID   = flag.String("run", "", "Run ID to chart (default: most recent)")
	outHTML = flag.String("out", "run-chart.html", "Output HTML path")
	outPNG  = flag.String("png", "", "Optional output PNG path")
)

func main() {
	flag.Parse()

	db, err := history.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open history database: %v", err)
	}
	defer db.Close()

	rec, err := loadRun(db, *runID)
	if err != nil {
		log.Fatalf("failed to load run: %v", err)
	}
	trace, err := db.Trace(rec.ID)
	if err != nil {
		log.Fatalf("failed to load trace: %v", err)
	}
	if len(trace) == 0 {
		log.Fatalf("run %s has no trace points", rec.ID)
	}

	if err := renderHTML(rec, trace, *outHTML); err != nil {
		log.Fatalf("failed to render HTML chart: %v", err)
	}
	log.Printf("wrote %s", *outHTML)

	if *outPNG != "" {
		if err := renderPNG(rec, trace, *outPNG); err != nil {
			log.Fatalf("failed to render PNG chart: %v", err)
		}
		log.Printf("wrote %s", *outPNG)
	}
}

func loadRun(db *history.DB, id string) (*run.Record, error) {
	if id != "" {
		return db.Run(id)
	}
	records, err := db.Runs(1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no stored runs")
	}
	return &records[0], nil
}

func renderHTML(rec *run.Record, trace []history.TracePoint, path string) error {
	xAxis := make([]string, len(trace))
	speed := make([]opts.LineData, len(trace))
	distance := make([]opts.LineData, len(trace))
	for i, tp := range trace {
		xAxis[i] = fmt.Sprintf("%.2f", float64(tp.OffsetMs)/1000)
		speed[i] = opts.LineData{Value: tp.SpeedKmh}
		distance[i] = opts.LineData{Value: tp.DistanceM}
	}

	subtitle := fmt.Sprintf("mode=%s elapsed=%.2fs peak=%.1f km/h distance=%.1f m",
		rec.Mode, rec.ElapsedS, rec.PeakSpeedKmh, rec.DistanceM)

	speedChart := charts.NewLine()
	speedChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Run " + rec.ID, Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Speed", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "km/h"}),
	)
	speedChart.SetXAxis(xAxis).AddSeries("speed", speed)

	distChart := charts.NewLine()
	distChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Distance"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "m"}),
	)
	distChart.SetXAxis(xAxis).AddSeries("distance", distance)

	page := components.NewPage()
	page.AddCharts(speedChart, distChart)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}

func renderPNG(rec *run.Record, trace []history.TracePoint, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Run %s (%s)", rec.ID, rec.Mode)
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = "speed (km/h)"

	pts := make(plotter.XYs, len(trace))
	for i, tp := range trace {
		pts[i] = plotter.XY{X: float64(tp.OffsetMs) / 1000, Y: tp.SpeedKmh}
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)

	return p.Save(8*vg.Inch, 4*vg.Inch, path)
}
