package calls

import (
	"context"

	"talon/pkg/protocol"
)

// CronJob is one scheduled prompt managed by the gateway.
type CronJob struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Schedule string `json:"schedule" yaml:"schedule"`
	Session  string `json:"sessionKey,omitempty" yaml:"session,omitempty"`
	Prompt   string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
}

// CronRun is one execution record of a scheduled job.
type CronRun struct {
	ID        string `json:"id,omitempty"`
	JobID     string `json:"jobId,omitempty"`
	StartedAt int64  `json:"startedAt,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Cron wraps the cron.* methods.
type Cron struct {
	caller Caller
}

// NewCron creates the cron call module.
func NewCron(caller Caller) *Cron {
	return &Cron{caller: caller}
}

// List returns all scheduled jobs.
func (c *Cron) List(ctx context.Context) ([]CronJob, error) {
	payload, err := c.caller.Call(ctx, protocol.MethodCronList, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[CronJob](payload, "jobs", "items", "list")
}

// Add creates a new scheduled job and returns its assigned id.
func (c *Cron) Add(ctx context.Context, job CronJob) (string, error) {
	payload, err := c.caller.Call(ctx, protocol.MethodCronAdd, job)
	if err != nil {
		return "", err
	}
	var res struct {
		ID string `json:"id"`
	}
	if err := decodeObject(payload, &res); err != nil {
		return "", err
	}
	return res.ID, nil
}

// Update replaces a job's definition.
func (c *Cron) Update(ctx context.Context, job CronJob) error {
	_, err := c.caller.Call(ctx, protocol.MethodCronUpdate, job)
	return err
}

// Remove deletes a scheduled job.
func (c *Cron) Remove(ctx context.Context, id string) error {
	_, err := c.caller.Call(ctx, protocol.MethodCronRemove, map[string]string{"id": id})
	return err
}

// Run triggers a job immediately, outside its schedule.
func (c *Cron) Run(ctx context.Context, id string) error {
	_, err := c.caller.Call(ctx, protocol.MethodCronRun, map[string]string{"id": id})
	return err
}

// Runs returns the execution history of one job.
func (c *Cron) Runs(ctx context.Context, id string, limit int) ([]CronRun, error) {
	params := struct {
		ID    string `json:"id"`
		Limit int    `json:"limit,omitempty"`
	}{id, limit}
	payload, err := c.caller.Call(ctx, protocol.MethodCronRuns, params)
	if err != nil {
		return nil, err
	}
	return decodeList[CronRun](payload, "runs", "items", "list")
}
