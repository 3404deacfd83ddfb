package probe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"wikibridge/pkg/extentity"
)

func TestRun(t *testing.T) {
	probes := []Probe{
		{
			Name:     "Success Probe",
			Check:    func(ctx context.Context) error { return nil },
			Critical: true,
		},
		{
			Name:  "Failure Probe (Non-Critical)",
			Check: func(ctx context.Context) error { return errors.New("minor issue") },
		},
		{
			Name: "Slow Probe",
			Check: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}

	results := Run(context.Background(), probes, 20*time.Millisecond)

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].Error != nil {
		t.Errorf("Expected success probe to pass, got error: %v", results[0].Error)
	}
	if results[1].Error == nil {
		t.Error("Expected failure probe to fail, got nil")
	}
	if !errors.Is(results[2].Error, context.DeadlineExceeded) {
		t.Errorf("Expected slow probe to time out, got %v", results[2].Error)
	}
}

func TestAnalyzeResults(t *testing.T) {
	tests := []struct {
		name    string
		results []Result
		wantErr bool
	}{
		{
			name:    "All Pass",
			results: []Result{{Probe: Probe{Name: "P1", Critical: true}}},
		},
		{
			name:    "Critical Failure",
			results: []Result{{Probe: Probe{Name: "P1", Critical: true}, Error: errors.New("fail")}},
			wantErr: true,
		},
		{
			name:    "Non-Critical Failure",
			results: []Result{{Probe: Probe{Name: "P1"}, Error: errors.New("fail")}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AnalyzeResults(tt.results, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("AnalyzeResults() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// pageClient records list queries and fails every Count.
type pageClient struct {
	err     error
	starts  []int
	lengths []int
}

func (c *pageClient) Load(context.Context, string) (extentity.Record, error) { return nil, nil }
func (c *pageClient) Query(_ context.Context, _ []extentity.Filter, _ []extentity.Sort, start, length int) ([]extentity.Record, error) {
	c.starts = append(c.starts, start)
	c.lengths = append(c.lengths, length)
	return nil, c.err
}
func (c *pageClient) Count(context.Context, []extentity.Filter) (int, error) {
	return 0, errors.New("count must not be called")
}
func (c *pageClient) Headers() map[string]string { return nil }

func TestClientProbe(t *testing.T) {
	up := &pageClient{}
	ok := ClientProbe("person", up, true)
	if err := ok.Check(context.Background()); err != nil {
		t.Errorf("Expected pass, got %v", err)
	}
	if len(up.starts) != 1 || up.starts[0] != 0 || up.lengths[0] != 1 {
		t.Errorf("Expected one first-page query of length 1, got starts=%v lengths=%v", up.starts, up.lengths)
	}

	down := ClientProbe("place", &pageClient{err: fmt.Errorf("%w: refused", extentity.ErrTransport)}, false)
	if err := down.Check(context.Background()); !errors.Is(err, extentity.ErrTransport) {
		t.Errorf("Expected transport error, got %v", err)
	}
	if down.Critical {
		t.Error("Expected non-critical probe")
	}
}
