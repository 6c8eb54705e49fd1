package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/geo-schelling/internal/spatial"
)

// graphSummary describes the contiguity structure of an input.
type graphSummary struct {
	Regions        int     `json:"regions"`
	Edges          int     `json:"edges"`
	Components     int     `json:"components"`
	ComponentSizes []int   `json:"component_sizes"`
	Largest        int     `json:"largest"`
	Isolated       int     `json:"isolated"`
	MaxDegree      int     `json:"max_degree"`
	MeanDegree     float64 `json:"mean_degree"`
}

func summarize(g *spatial.Graph) graphSummary {
	_, sizes := spatial.Components(g)
	s := graphSummary{
		Regions:        g.Len(),
		Edges:          g.EdgeCount(),
		Components:     len(sizes),
		ComponentSizes: append([]int(nil), sizes...),
	}
	sort.Sort(sort.Reverse(sort.IntSlice(s.ComponentSizes)))
	if len(s.ComponentSizes) > 0 {
		s.Largest = s.ComponentSizes[0]
	}
	for _, id := range g.Nodes() {
		d := g.Degree(id)
		if d == 0 {
			s.Isolated++
		}
		s.MaxDegree = max(s.MaxDegree, d)
	}
	if s.Regions > 0 {
		s.MeanDegree = 2 * float64(s.Edges) / float64(s.Regions)
	}
	return s
}

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [input]",
		Short: "Report the contiguity graph of an input without simulating",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := applyRunFlags(cmd, cfg, args); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			records, err := loadRecords(cfg)
			if err != nil {
				return err
			}
			g, err := spatial.BuildGraph(records, spatial.WithTolerance(cfg.Input.Tolerance))
			if err != nil {
				return err
			}
			s := summarize(g)

			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(s)
			}
			fmt.Fprintf(out, "regions:     %s\n", humanize.Comma(int64(s.Regions)))
			fmt.Fprintf(out, "edges:       %s\n", humanize.Comma(int64(s.Edges)))
			fmt.Fprintf(out, "components:  %d (largest %s, isolated %d)\n",
				s.Components, humanize.Comma(int64(s.Largest)), s.Isolated)
			fmt.Fprintf(out, "degree:      mean %.2f, max %d\n", s.MeanDegree, s.MaxDegree)
			if s.Regions > 0 {
				fmt.Fprintf(out, "dropped:     %s regions outside the largest component\n",
					humanize.Comma(int64(s.Regions-s.Largest)))
			}
			return nil
		},
	}

	cmd.Flags().String("format", "", "Input format: geojson, shapefile, synthetic")
	cmd.Flags().String("id-field", "", "Attribute holding region ids")
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}
