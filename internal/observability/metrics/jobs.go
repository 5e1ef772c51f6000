// Package metrics shapes the tag sets the workers emit, so the job
// runner, scheduler, and reaper report through one vocabulary.
package metrics

import (
	"maps"
	"time"

	obserrors "github.com/popmap/popmap-api/internal/observability/errors"
	"github.com/popmap/popmap-api/internal/observability/statsd"
)

// Result values for the "result" tag.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// JobMetric describes one lifecycle transition of a queued job.
type JobMetric struct {
	JobType    string
	Transition string
	Result     string
	Duration   time.Duration
	Err        error
}

// EmitJobLifecycle reports a job transition as a job.transition count
// and, when a duration is known, a job.duration timing. Failed
// transitions additionally carry the classified error as a tag.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"job_type":   in.JobType,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)
	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
}

// CloneTags copies a tag map so consecutive sink calls never share one.
// The Sink interface does not promise the map goes unretained.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	return maps.Clone(src)
}
