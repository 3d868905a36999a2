package cron

import (
	"context"
	"fmt"
	"slices"
)

// Job is one unit of scheduled work run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry runs jobs in the order they were added. Names label metrics and
// logs, so they must be unique.
type Registry struct {
	jobs []Job
}

// NewRegistry skips nil jobs so optional ones can be passed unconditionally.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{}
	for _, job := range jobs {
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("cron job %T has no name", job)
	}
	if slices.Contains(r.Names(), name) {
		return fmt.Errorf("cron job %q registered twice", name)
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *Registry) Jobs() []Job {
	return slices.Clone(r.jobs)
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.jobs))
	for i, job := range r.jobs {
		names[i] = job.Name()
	}
	return names
}
