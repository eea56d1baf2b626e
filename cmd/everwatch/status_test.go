package main

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/guregu/null/v5"

	"github.com/hazz-dev/everwatch/internal/endpoint"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func withHistory(name string, codes ...int) endpoint.Endpoint {
	ep := endpoint.New(name, "https://"+name+".example.com", endpoint.DefaultSettings())
	for i, c := range codes {
		desc := "timeout"
		rec := endpoint.StatusRecord{Timestamp: base.Add(time.Duration(i) * time.Minute), Critical: true}
		if c > 0 {
			desc = strconv.Itoa(c)
			rec.StatusCode = null.IntFrom(int64(c))
			rec.Latency = null.IntFrom(int64(40 * time.Millisecond))
			rec.Critical = endpoint.IsCritical(rec.StatusCode, ep.Settings.ExpectedStatus)
		}
		rec.Description = desc
		ep.History = append(ep.History, rec)
		ep.LastKnownStatus = desc
	}
	return ep
}

func TestExecuteStatus_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := executeStatus(&buf, nil, base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No endpoints") {
		t.Errorf("expected 'No endpoints' message, got:\n%s", buf.String())
	}
}

func TestExecuteStatus_WithEndpoints(t *testing.T) {
	eps := []endpoint.Endpoint{
		withHistory("api", 200, 200),
		withHistory("db", 200, 0),
		endpoint.New("new", "https://new.example.com", endpoint.DefaultSettings()),
	}

	var buf bytes.Buffer
	if err := executeStatus(&buf, eps, base.Add(2*time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"NAME", "api", "100.00%", "40ms", "db", "timeout", "50.00%", endpoint.PendingStatus, "never"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestExecuteStats_Table(t *testing.T) {
	eps := []endpoint.Endpoint{
		withHistory("api", 200, 200, 404),
		withHistory("db", 500),
	}

	var buf bytes.Buffer
	if err := executeStats(&buf, eps, base.Add(time.Hour), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := buf.String()
	for _, want := range []string{"2 (0 online, 2 offline)", "Overall uptime:", "0.00%", "Most frequent code:", "CODE", "404", "RECORDS"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestExecuteStats_JSON(t *testing.T) {
	eps := []endpoint.Endpoint{withHistory("api", 200, 200)}

	var buf bytes.Buffer
	if err := executeStats(&buf, eps, base.Add(time.Hour), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var got struct {
		OverallUptime    *float64 `json:"overall_uptime_percent"`
		MostFrequentCode *int     `json:"most_frequent_status_code"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decoding output: %v\n%s", err, buf.String())
	}
	if got.OverallUptime == nil || *got.OverallUptime != 100 {
		t.Errorf("expected overall uptime 100, got %v", got.OverallUptime)
	}
	if got.MostFrequentCode == nil || *got.MostFrequentCode != 200 {
		t.Errorf("expected most frequent code 200, got %v", got.MostFrequentCode)
	}
}

func TestExecuteStats_NoHistory(t *testing.T) {
	var buf bytes.Buffer
	if err := executeStats(&buf, nil, base, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "Latency:") {
		t.Errorf("expected latency line, got:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "CODE") {
		t.Errorf("expected no code table without history, got:\n%s", buf.String())
	}
}

func TestExecutePeriods(t *testing.T) {
	ep := withHistory("api", 200, 200, 500, 500, 200)

	var buf bytes.Buffer
	if err := executePeriods(&buf, ep, base.Add(10*time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header and 3 periods, got:\n%s", buf.String())
	}
	if !strings.HasPrefix(lines[1], "200") || !strings.Contains(lines[1], "ongoing") || !strings.Contains(lines[1], "6m0s") {
		t.Errorf("expected ongoing 200 period first, got %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "500") || !strings.Contains(lines[2], "2m0s") {
		t.Errorf("expected closed 500 period second, got %q", lines[2])
	}
}

func TestExecutePeriods_NoHistory(t *testing.T) {
	ep := endpoint.New("fresh", "https://fresh.example.com", endpoint.DefaultSettings())
	var buf bytes.Buffer
	if err := executePeriods(&buf, ep, base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "No history for fresh") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestExecutePeriods_Malformed(t *testing.T) {
	ep := withHistory("api", 200, 500)
	ep.History[0].Timestamp, ep.History[1].Timestamp = ep.History[1].Timestamp, ep.History[0].Timestamp
	var buf bytes.Buffer
	if err := executePeriods(&buf, ep, base); err == nil {
		t.Error("expected error for out-of-order history")
	}
}
