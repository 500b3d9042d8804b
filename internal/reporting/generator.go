package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"options-position-lab/internal/replay"
)

// Generator produces day report files from stored data.
type Generator struct {
	svc *replay.Service
	now func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(svc *replay.Service) *Generator {
	return &Generator{
		svc: svc,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate renders the day's report bundle into outDir: a markdown summary,
// a positions CSV and a trades CSV. Returns the written paths.
func (g *Generator) Generate(ctx context.Context, day, outDir string) ([]string, error) {
	data, err := g.svc.LoadDay(ctx, day, nil)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}

	files := map[string]string{
		fmt.Sprintf("day-%s.md", day):        RenderDayMarkdown(data, g.now()),
		fmt.Sprintf("positions-%s.csv", day): RenderDayCSV(data),
		fmt.Sprintf("trades-%s.csv", day):    RenderTradesCSV(data),
	}

	written := make([]string, 0, len(files))
	for name, content := range files {
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		written = append(written, path)
	}

	sort.Strings(written)
	return written, nil
}
