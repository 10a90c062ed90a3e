package eval

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/use-agent/chatprobe/store"
)

// Report aggregates one eval batch.
type Report struct {
	ExperimentID   string        `json:"experiment_id,omitempty"`
	ExperimentName string        `json:"experiment_name"`
	Dataset        string        `json:"dataset"`
	TargetURL      string        `json:"target_url"`
	Total          int           `json:"total"`
	Successes      int           `json:"successes"`
	Failures       int           `json:"failures"`
	Graded         int           `json:"graded"`
	Passed         int           `json:"passed"`
	PassRate       float64       `json:"pass_rate"`
	MeanScore      float64       `json:"mean_score"`
	MeanSimilarity float64       `json:"mean_similarity"`
	Duration       time.Duration `json:"duration"`
	Runs           []store.Run   `json:"runs"`
}

// Summarize folds per-run results into a Report. PassRate is over graded
// runs; MeanSimilarity is over successful runs with a reference answer.
func Summarize(exp *store.Experiment, ds *Dataset, runs []store.Run, duration time.Duration) *Report {
	rep := &Report{
		ExperimentID:   exp.ID,
		ExperimentName: exp.Name,
		Dataset:        ds.Name,
		TargetURL:      exp.TargetURL,
		Total:          len(runs),
		Duration:       duration,
		Runs:           runs,
	}

	var scoreSum, simSum float64
	var simCount int
	for _, run := range runs {
		if run.Success {
			rep.Successes++
		} else {
			rep.Failures++
		}
		if run.Passed != nil {
			rep.Graded++
			if *run.Passed {
				rep.Passed++
			}
		}
		if run.Score != nil {
			scoreSum += *run.Score
		}
		if run.Similarity != nil {
			simSum += *run.Similarity
			simCount++
		}
	}

	if rep.Graded > 0 {
		rep.PassRate = round2(float64(rep.Passed) / float64(rep.Graded))
		rep.MeanScore = round2(scoreSum / float64(rep.Graded))
	}
	if simCount > 0 {
		rep.MeanSimilarity = round2(simSum / float64(simCount))
	}
	return rep
}

// String renders a compact terminal summary.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "experiment: %s\n", r.ExperimentName)
	fmt.Fprintf(&b, "target:     %s\n", r.TargetURL)
	fmt.Fprintf(&b, "runs:       %d (%d ok, %d failed)\n", r.Total, r.Successes, r.Failures)
	if r.Graded > 0 {
		fmt.Fprintf(&b, "graded:     %d/%d passed (%.0f%%), mean score %.2f\n",
			r.Passed, r.Graded, r.PassRate*100, r.MeanScore)
	}
	if r.MeanSimilarity > 0 {
		fmt.Fprintf(&b, "similarity: %.2f\n", r.MeanSimilarity)
	}
	fmt.Fprintf(&b, "duration:   %s\n", r.Duration.Round(time.Millisecond))
	return b.String()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
