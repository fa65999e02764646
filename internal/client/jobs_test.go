package client_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperledge/papi/pkg/papi"
)

// jobServer serves a job whose status advances through the scripted
// sequence, repeating the last entry once exhausted.
func jobServer(jobID string, statuses ...string) (http.Handler, *atomic.Int32) {
	var reads atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(reads.Add(1))
		if n > len(statuses) {
			n = len(statuses)
		}

		status := statuses[n-1]

		body := `{"data":{"id":"` + jobID + `","type":"job","attributes":{"status":"` + status + `"`
		if status == "error" {
			body += `,"errors":[{"title":"render failed","detail":"template missing"}]`
		}

		body += `}}}`

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})

	return handler, &reads
}

func fastPoll() *papi.PollOptions {
	return &papi.PollOptions{Interval: 5 * time.Millisecond, Timeout: time.Second}
}

func TestJobsGet(t *testing.T) {
	t.Parallel()

	handler, _ := jobServer("job-1", "running")
	c := newTestClient(t, handler)

	job, err := c.Jobs().Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, papi.JobStatusRunning, job.Status)
}

func TestJobsPollUntilDone(t *testing.T) {
	t.Parallel()

	handler, reads := jobServer("job-1", "pending", "running", "running", "done")
	c := newTestClient(t, handler)

	job, err := c.Jobs().Poll(context.Background(), "job-1", fastPoll())
	require.NoError(t, err)
	assert.Equal(t, papi.JobStatusDone, job.Status)
	assert.Equal(t, int32(4), reads.Load())
}

func TestJobsPollErrorState(t *testing.T) {
	t.Parallel()

	handler, _ := jobServer("job-1", "running", "error")
	c := newTestClient(t, handler)

	job, err := c.Jobs().Poll(context.Background(), "job-1", fastPoll())
	require.Error(t, err)

	var jobErr *papi.JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, "job-1", jobErr.JobID)
	require.Len(t, jobErr.Errors, 1)
	assert.Equal(t, "render failed", jobErr.Errors[0].Title)

	require.NotNil(t, job)
	assert.Equal(t, papi.JobStatusError, job.Status)
}

func TestJobsPollTimeout(t *testing.T) {
	t.Parallel()

	handler, _ := jobServer("job-1", "running")
	c := newTestClient(t, handler)

	opts := &papi.PollOptions{Interval: 10 * time.Millisecond, Timeout: 35 * time.Millisecond}

	start := time.Now()

	_, err := c.Jobs().Poll(context.Background(), "job-1", opts)
	require.Error(t, err)

	var timeoutErr *papi.JobTimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, "job-1", timeoutErr.JobID)
	assert.Equal(t, papi.JobStatusRunning, timeoutErr.LastStatus)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestJobsPollContextCancel(t *testing.T) {
	t.Parallel()

	handler, _ := jobServer("job-1", "running")
	c := newTestClient(t, handler)

	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Millisecond)
	defer cancel()

	_, err := c.Jobs().Poll(ctx, "job-1", &papi.PollOptions{Interval: 10 * time.Millisecond, Timeout: time.Minute})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJobsPollNotFound(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errors":[{"title":"not found"}]}`))
	}))

	_, err := c.Jobs().Poll(context.Background(), "job-missing", fastPoll())
	require.Error(t, err)
	assert.True(t, papi.IsNotFound(err))
}

func TestJobsWaitForCompletion(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()

		handler, _ := jobServer("job-1", "running", "done")
		c := newTestClient(t, handler)

		result, err := c.Jobs().WaitForCompletion(context.Background(), "job-1", fastPoll())
		require.NoError(t, err)
		assert.True(t, result.Success)
		require.NotNil(t, result.Job)
		assert.Equal(t, papi.JobStatusDone, result.Job.Status)
	})

	t.Run("job failure is a result, not an error", func(t *testing.T) {
		t.Parallel()

		handler, _ := jobServer("job-1", "error")
		c := newTestClient(t, handler)

		result, err := c.Jobs().WaitForCompletion(context.Background(), "job-1", fastPoll())
		require.NoError(t, err)
		assert.False(t, result.Success)
		require.Len(t, result.Errors, 1)
		assert.Equal(t, "render failed", result.Errors[0].Title)
	})

	t.Run("timeout is a result, not an error", func(t *testing.T) {
		t.Parallel()

		handler, _ := jobServer("job-1", "running")
		c := newTestClient(t, handler)

		result, err := c.Jobs().WaitForCompletion(context.Background(), "job-1", &papi.PollOptions{
			Interval: 10 * time.Millisecond,
			Timeout:  35 * time.Millisecond,
		})
		require.NoError(t, err)
		assert.False(t, result.Success)
		require.NotEmpty(t, result.Errors)
		assert.Equal(t, "job polling timed out", result.Errors[0].Title)
	})

	t.Run("transport failure propagates", func(t *testing.T) {
		t.Parallel()

		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		_, err := c.Jobs().WaitForCompletion(context.Background(), "job-missing", fastPoll())
		require.Error(t, err)
		assert.True(t, papi.IsNotFound(err))
	})
}
