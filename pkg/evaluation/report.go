package evaluation

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// TurnResult is one replayed question with its outcome.
type TurnResult struct {
	ConversationID string        `json:"conversation_id"`
	Question       string        `json:"question"`
	Answer         string        `json:"answer,omitempty"`
	GroundTruth    string        `json:"ground_truth,omitempty"`
	DataPoints     int           `json:"data_points"`
	Latency        time.Duration `json:"latency"`
	Err            string        `json:"error,omitempty"`
}

// Report aggregates one evaluation run.
type Report struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Results    []TurnResult `json:"results"`
}

func (r *Report) Completed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == "" {
			n++
		}
	}
	return n
}

func (r *Report) Failed() int {
	return len(r.Results) - r.Completed()
}

// Success reports whether every turn produced a final answer.
func (r *Report) Success() bool {
	return len(r.Results) > 0 && r.Failed() == 0
}

// AverageLatency is the mean turn latency across all results.
func (r *Report) AverageLatency() time.Duration {
	if len(r.Results) == 0 {
		return 0
	}
	var total time.Duration
	for _, res := range r.Results {
		total += res.Latency
	}
	return total / time.Duration(len(r.Results))
}

// Print writes a colorized run summary. Verbose mode includes every answer.
func (r *Report) Print(w io.Writer, verbose bool) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)

	bold.Fprintf(w, "\nEvaluation run: %d turn(s) in %s\n",
		len(r.Results), r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	for i, res := range r.Results {
		if res.Err != "" {
			red.Fprintf(w, "  [%d] FAIL %s (%s)\n", i, res.Question, res.Latency.Round(time.Millisecond))
			red.Fprintf(w, "      %s\n", res.Err)
			continue
		}
		green.Fprintf(w, "  [%d] OK   %s (%s, %d data point(s))\n",
			i, res.Question, res.Latency.Round(time.Millisecond), res.DataPoints)
		if verbose {
			fmt.Fprintf(w, "      answer: %s\n", res.Answer)
			if res.GroundTruth != "" {
				fmt.Fprintf(w, "      ground truth: %s\n", res.GroundTruth)
			}
		}
	}

	bold.Fprintf(w, "\nCompleted: ")
	green.Fprintf(w, "%d", r.Completed())
	bold.Fprintf(w, "  Failed: ")
	if r.Failed() > 0 {
		red.Fprintf(w, "%d", r.Failed())
	} else {
		green.Fprintf(w, "0")
	}
	yellow.Fprintf(w, "  Avg latency: %s\n", r.AverageLatency().Round(time.Millisecond))
}
