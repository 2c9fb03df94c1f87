package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jingkaihe/skillgraph/pkg/improvements"
	"github.com/jingkaihe/skillgraph/pkg/query"
	"github.com/jingkaihe/skillgraph/pkg/registry"
	"github.com/jingkaihe/skillgraph/pkg/runarchive"
	"github.com/jingkaihe/skillgraph/pkg/service"
	graphtypes "github.com/jingkaihe/skillgraph/pkg/types/graph"
	"github.com/jingkaihe/skillgraph/pkg/types/sources"
)

// Library usage example: assemble a catalog in memory, record some
// execution history, build the graph and print what the scorer makes
// of it. The skillgraph CLI under cmd/skillgraph is the real entry
// point; this just shows the packages wired together.
func main() {
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "skillgraph-demo")
	if err != nil {
		logrus.WithError(err).Fatal("failed to create scratch directory")
	}
	defer os.RemoveAll(dir)

	reg := registry.NewStatic(
		sources.SkillDefinition{ID: "scrape", Name: "Scrape", Phase: graphtypes.PhaseResearch, Tags: []string{"ingest"}},
		sources.SkillDefinition{ID: "normalize", Name: "Normalize", Phase: graphtypes.PhaseImplement, Tags: []string{"ingest"}, Dependencies: []string{"scrape"}},
		sources.SkillDefinition{ID: "publish", Name: "Publish", Phase: graphtypes.PhaseOperate, Dependencies: []string{"normalize"}},
	)

	runs, err := runarchive.NewJSONStore(filepath.Join(dir, "runs"))
	if err != nil {
		logrus.WithError(err).Fatal("failed to open run archive")
	}
	events, err := improvements.NewLog(dir)
	if err != nil {
		logrus.WithError(err).Fatal("failed to open improvement log")
	}

	svc, err := service.New(reg, runs, events, service.WithSnapshotPath(filepath.Join(dir, "graph.json")))
	if err != nil {
		logrus.WithError(err).Fatal("failed to create graph service")
	}
	defer svc.Close()

	for _, skills := range [][]string{
		{"scrape", "normalize", "publish"},
		{"scrape", "normalize"},
	} {
		if err := svc.RecordRun(ctx, sources.NewRunRecord("", skills, time.Time{})); err != nil {
			logrus.WithError(err).Fatal("failed to record run")
		}
	}
	if err := svc.RecordImprovement(ctx, sources.NewImprovementEvent("normalize", "publish", "stricter schema checks")); err != nil {
		logrus.WithError(err).Fatal("failed to record improvement")
	}

	snap, err := svc.Build(ctx)
	if err != nil {
		logrus.WithError(err).Fatal("failed to build graph")
	}

	q := query.New(snap)
	stats, err := json.MarshalIndent(q.Stats(), "", "  ")
	if err != nil {
		logrus.WithError(err).Fatal("failed to render stats")
	}
	fmt.Println(string(stats))

	fmt.Println("\nHighest-leverage skills:")
	for i, n := range q.HighLeverageSkills(3) {
		fmt.Printf("%d. %s (%.4f)\n", i+1, n.ID, n.Leverage)
	}
}
