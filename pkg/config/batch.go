package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"talon/pkg/calls"
)

// CronBatch is a YAML file declaring scheduled jobs to sync to the gateway
// in one shot (talon cron apply).
type CronBatch struct {
	Jobs []calls.CronJob `yaml:"jobs"`
}

// LoadCronBatch reads and validates a cron batch file.
func LoadCronBatch(path string) (CronBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CronBatch{}, fmt.Errorf("read batch file: %w", err)
	}
	var batch CronBatch
	if err := yaml.Unmarshal(data, &batch); err != nil {
		return CronBatch{}, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, job := range batch.Jobs {
		if job.Name == "" {
			return CronBatch{}, fmt.Errorf("%s: job %d has no name", path, i)
		}
		if job.Schedule == "" {
			return CronBatch{}, fmt.Errorf("%s: job %q has no schedule", path, job.Name)
		}
	}
	return batch, nil
}
