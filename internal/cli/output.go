package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/TimurManjosov/togglegen/internal/client"
	"github.com/TimurManjosov/togglegen/internal/platform"
	"github.com/TimurManjosov/togglegen/internal/producer"
	"github.com/TimurManjosov/togglegen/internal/rollout"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", s)
	}
}

// FlagRow is the printed view of a flag in one environment.
type FlagRow struct {
	Key             string   `json:"key" yaml:"key"`
	Name            string   `json:"name" yaml:"name"`
	Kind            string   `json:"kind" yaml:"kind"`
	Tags            []string `json:"tags" yaml:"tags"`
	On              bool     `json:"on" yaml:"on"`
	MeasuredRollout bool     `json:"measuredRollout" yaml:"measuredRollout"`
}

// FlagRows projects flags onto env.
func FlagRows(flags []client.Flag, env string) []FlagRow {
	rows := make([]FlagRow, 0, len(flags))
	for i := range flags {
		f := &flags[i]
		rows = append(rows, FlagRow{
			Key:             f.Key,
			Name:            f.Name,
			Kind:            f.Kind,
			Tags:            f.Tags,
			On:              f.Environments[env].On,
			MeasuredRollout: rollout.IsMeasuredRollout(f, env),
		})
	}
	return rows
}

// PrintFlags outputs flags in the specified format
func PrintFlags(w io.Writer, flags []client.Flag, env string, format OutputFormat) error {
	rows := FlagRows(flags, env)
	switch format {
	case FormatJSON:
		return printJSON(w, map[string][]FlagRow{"flags": rows})
	case FormatYAML:
		return printYAML(w, rows)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Key", "Name", "Kind", "Tags", "On", "Measured Rollout")
		for _, r := range rows {
			name := r.Name
			if len(name) > 40 {
				name = name[:37] + "..."
			}
			table.Append(r.Key, name, r.Kind, strings.Join(r.Tags, ","), fmt.Sprint(r.On), fmt.Sprint(r.MeasuredRollout))
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintReports outputs producer reports, one row per producer arm.
func PrintReports(w io.Writer, reports []producer.Report, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, reports)
	case FormatYAML:
		return printYAML(w, reports)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Producer", "Outcome", "Arm", "Users", "Errors", "Flushes", "Events")
		for _, r := range reports {
			if len(r.Arms) == 0 {
				table.Append(r.Producer, string(r.Outcome), "-", "0", fmt.Sprint(r.Errors), fmt.Sprint(r.Flushes), "0")
				continue
			}
			for _, name := range sortedArms(r.Arms) {
				a := r.Arms[name]
				events := 0
				for _, n := range a.Events {
					events += n
				}
				table.Append(r.Producer, string(r.Outcome), name, fmt.Sprint(a.Interactions),
					fmt.Sprint(r.Errors), fmt.Sprint(r.Flushes), fmt.Sprint(events))
			}
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintMetrics outputs recorded event aggregates.
func PrintMetrics(w io.Writer, metrics []platform.MetricSummary, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(w, map[string][]platform.MetricSummary{"metrics": metrics})
	case FormatYAML:
		return printYAML(w, metrics)
	case FormatTable:
		table := tablewriter.NewWriter(w)
		table.Header("Metric", "Events", "Numeric", "Mean")
		for _, m := range metrics {
			mean := "-"
			if m.Numeric > 0 {
				mean = fmt.Sprintf("%.2f", m.Mean)
			}
			table.Append(m.Metric, fmt.Sprint(m.Count), fmt.Sprint(m.Numeric), mean)
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func sortedArms(t producer.Tally) []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func printJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}
