package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Job is a migration request file. JSON documents are accepted as well,
// so the event payloads used to drive hosted runs can be replayed locally.
type Job struct {
	SourceURL         string  `yaml:"source_url"`
	Format            string  `yaml:"format"`
	DestinationBucket string  `yaml:"destination_bucket"`
	DestinationPath   string  `yaml:"destination_path"`
	AuthHeader        string  `yaml:"packaging_group_auth_header"`
	RPSLimit          float64 `yaml:"rpsLimit"`
	NumThreads        int     `yaml:"numThreads"`
}

// LoadJob reads and decodes a job file.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	var job Job
	if err := yaml.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode job file %s: %w", path, err)
	}
	return &job, nil
}

// ApplyJob copies job values into c. Fields already set on c win, so
// command line flags override the file.
func (c *Config) ApplyJob(job *Job) {
	if job == nil {
		return
	}
	if c.URL == "" {
		c.URL = job.SourceURL
	}
	if c.Format == "" {
		c.Format = job.Format
	}
	if c.Output == "" && job.DestinationBucket != "" {
		c.Output = "s3://" + job.DestinationBucket
		if job.DestinationPath != "" {
			c.Output += "/" + job.DestinationPath
		}
	}
	if c.AuthHeader == "" {
		c.AuthHeader = job.AuthHeader
	}
	if job.RPSLimit > 0 && c.RPS == DefaultRPS {
		c.RPS = job.RPSLimit
	}
	if job.NumThreads > 0 && c.Threads == DefaultThreads {
		c.Threads = job.NumThreads
	}
}
