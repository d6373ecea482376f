package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/TimurManjosov/togglegen/internal/client"
	"github.com/TimurManjosov/togglegen/internal/platform"
	"github.com/TimurManjosov/togglegen/internal/producer"
	"gopkg.in/yaml.v3"
)

func testFlags() []client.Flag {
	v := 0
	return []client.Flag{
		{
			Key: "paymentsSystemsUpgrade", Name: "Payments Systems Upgrade", Kind: "boolean", Tags: []string{"togglestore"},
			Environments: map[string]client.Environment{
				"production": {On: true, Fallthrough: &client.Fallthrough{Rollout: &client.Rollout{}}},
			},
		},
		{
			Key: "storePromoBanner", Name: "Store Promo Banner", Kind: "multivariate",
			Environments: map[string]client.Environment{
				"production": {On: false, Fallthrough: &client.Fallthrough{Variation: &v}},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"table", "json", "yaml"} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q) error = %v", s, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("Expected error for xml")
	}
}

func TestPrintFlags_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintFlags(&buf, testFlags(), "production", FormatJSON); err != nil {
		t.Fatalf("PrintFlags() error = %v", err)
	}
	var out struct {
		Flags []FlagRow `json:"flags"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(out.Flags) != 2 {
		t.Fatalf("Expected 2 flags, got %d", len(out.Flags))
	}
	if !out.Flags[0].On || !out.Flags[0].MeasuredRollout {
		t.Errorf("Expected first flag on with measured rollout, got %+v", out.Flags[0])
	}
	if out.Flags[1].MeasuredRollout {
		t.Error("fixed fallthrough must not count as a measured rollout")
	}
}

func TestPrintFlags_YAML(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintFlags(&buf, testFlags(), "production", FormatYAML); err != nil {
		t.Fatalf("PrintFlags() error = %v", err)
	}
	var rows []FlagRow
	if err := yaml.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if rows[1].Key != "storePromoBanner" || rows[1].Kind != "multivariate" {
		t.Errorf("unexpected row %+v", rows[1])
	}
}

func TestPrintFlags_Table(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintFlags(&buf, testFlags(), "production", FormatTable); err != nil {
		t.Fatalf("PrintFlags() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"paymentsSystemsUpgrade", "storePromoBanner", "togglestore"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintReports(t *testing.T) {
	reports := []producer.Report{
		{Producer: "payments", Outcome: producer.OutcomeAborted},
		{Producer: "search-algorithm", Outcome: producer.OutcomeCompleted, Interactions: 3, Flushes: 1, Arms: producer.Tally{
			"featured-list": {Interactions: 2, Events: map[string]int{"search-started": 2, "cart-total": 1}},
			"control":       {Interactions: 1, Events: map[string]int{"search-started": 1}},
		}},
	}

	var buf bytes.Buffer
	if err := PrintReports(&buf, reports, FormatTable); err != nil {
		t.Fatalf("PrintReports() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"aborted", "featured-list", "control"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := PrintReports(&buf, reports, FormatJSON); err != nil {
		t.Fatalf("PrintReports() error = %v", err)
	}
	var decoded []producer.Report
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded[1].Arms["featured-list"].Events["cart-total"] != 1 {
		t.Errorf("arm events lost in json output: %+v", decoded[1])
	}
}

func TestPrintMetrics(t *testing.T) {
	metrics := []platform.MetricSummary{
		{Metric: "cart-total", Count: 4, Numeric: 4, Mean: 312.5},
		{Metric: "search-started", Count: 10},
	}
	var buf bytes.Buffer
	if err := PrintMetrics(&buf, metrics, FormatTable); err != nil {
		t.Fatalf("PrintMetrics() error = %v", err)
	}
	if !strings.Contains(buf.String(), "312.50") {
		t.Errorf("Expected mean in output:\n%s", buf.String())
	}
	if err := PrintMetrics(&buf, metrics, OutputFormat("xml")); err == nil {
		t.Error("Expected error for unsupported format")
	}
}
