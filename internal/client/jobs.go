package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paperledge/papi/internal/constants"
	"github.com/paperledge/papi/pkg/papi"
)

// JobsClient implements papi.JobsClient.
type JobsClient struct {
	client *Client

	// Injected for tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func newJobsClient(client *Client) *JobsClient {
	return &JobsClient{
		client: client,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// jobAttributes is the wire shape of a job resource's attributes.
type jobAttributes struct {
	Status papi.JobStatus `json:"status"`
	Errors []papi.Problem `json:"errors,omitempty"`
}

// Get implements papi.JobsClient.
func (c *JobsClient) Get(ctx context.Context, jobID string) (*papi.Job, error) {
	envelope, err := c.client.getEnvelope(ctx, "/v2/jobs/"+jobID, nil)
	if err != nil {
		return nil, err
	}

	return jobFromResource(&envelope.Data)
}

// Poll implements papi.JobsClient: it reads the job until it reaches a
// terminal state. A done job is returned; an errored job returns the job
// alongside a JobError; giving up returns a JobTimeoutError carrying the
// last observed status.
func (c *JobsClient) Poll(ctx context.Context, jobID string, opts *papi.PollOptions) (*papi.Job, error) {
	interval := constants.DefaultJobPollInterval
	timeout := constants.DefaultJobPollTimeout

	if opts != nil {
		if opts.Interval > 0 {
			interval = opts.Interval
		}

		if opts.Timeout > 0 {
			timeout = opts.Timeout
		}
	}

	deadline := c.now().Add(timeout)

	for {
		job, err := c.Get(ctx, jobID)
		if err != nil {
			return nil, err
		}

		switch job.Status {
		case papi.JobStatusDone:
			return job, nil
		case papi.JobStatusError:
			return job, &papi.JobError{JobID: job.ID, Errors: job.Errors}
		case papi.JobStatusPending, papi.JobStatusRunning:
			// Keep polling.
		}

		// Give up when the next read would land past the deadline.
		if c.now().Add(interval).After(deadline) {
			return job, &papi.JobTimeoutError{JobID: jobID, LastStatus: job.Status}
		}

		if err := c.sleep(ctx, interval); err != nil {
			return job, err
		}
	}
}

// WaitForCompletion implements papi.JobsClient: job-level failures are
// reported in the result rather than as errors, so callers separate "the
// render failed" from "the poll itself broke".
func (c *JobsClient) WaitForCompletion(ctx context.Context, jobID string, opts *papi.PollOptions) (*papi.JobResult, error) {
	job, err := c.Poll(ctx, jobID, opts)
	if err == nil {
		return &papi.JobResult{Success: true, Job: job}, nil
	}

	var jobErr *papi.JobError
	if errors.As(err, &jobErr) {
		return &papi.JobResult{Success: false, Job: job, Errors: jobErr.Errors}, nil
	}

	var timeoutErr *papi.JobTimeoutError
	if errors.As(err, &timeoutErr) {
		return &papi.JobResult{
			Success: false,
			Job:     job,
			Errors:  []papi.Problem{{Title: "job polling timed out", Detail: timeoutErr.Error()}},
		}, nil
	}

	return nil, err
}

// jobFromResource decodes a job resource object.
func jobFromResource(obj *papi.ResourceObject) (*papi.Job, error) {
	attrs, err := papi.DecodeResource[jobAttributes](*obj)
	if err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", obj.ID, err)
	}

	return &papi.Job{
		ID:     obj.ID,
		Status: attrs.Status,
		Errors: attrs.Errors,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
