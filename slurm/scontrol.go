// Shelling out to the Slurm client programs.
//
// All queries go through a Client so that commands and the daemon can share
// one configuration point, and so tests can substitute canned output files
// for the live programs.

package slurm

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Field order for the dash queue query, tab separated.
const QueueFormat = "%i\t%t\t%j\t%M\t%L\t%R\t%N\t%Z"

// Field order for the per-user blame query, pipe separated.
const BlameFormat = "%u|%a|%b|%D|%l|%t"

// Client issues Slurm queries.  When JobsFile or NodesFile is nonempty, the
// corresponding query reads that file instead of running scontrol; this is
// the test and replay hook.
type Client struct {
	JobsFile  string
	NodesFile string
}

// ErrForecastUnavailable tags every fetch failure so that callers can show a
// single "forecast unavailable" condition regardless of which query failed.
var ErrForecastUnavailable = fmt.Errorf("forecast unavailable")

func (c *Client) run(name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s %s: %v: %s",
			ErrForecastUnavailable, name, strings.Join(args, " "), err,
			strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

func (c *Client) fromFile(filename string) (string, error) {
	bytes, err := os.ReadFile(filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrForecastUnavailable, err)
	}
	return string(bytes), nil
}

// RawJobs returns the one-line-per-job dump of every job the controller
// knows about.
func (c *Client) RawJobs() (string, error) {
	if c.JobsFile != "" {
		return c.fromFile(c.JobsFile)
	}
	return c.run("scontrol", "show", "jobs", "-o")
}

// RawNodes returns the one-line-per-node dump of the node table.
func (c *Client) RawNodes() (string, error) {
	if c.NodesFile != "" {
		return c.fromFile(c.NodesFile)
	}
	return c.run("scontrol", "show", "nodes", "-o")
}

// Hostnames expands a Slurm node expression such as `c[1-3,7]` into
// individual host names, one per returned element.
func (c *Client) Hostnames(nodeExpr string) ([]string, error) {
	output, err := c.run("scontrol", "show", "hostnames", nodeExpr)
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			hosts = append(hosts, line)
		}
	}
	return hosts, nil
}

// QueueRows returns squeue output for the dash view, one tab-separated row
// per job, header omitted.
func (c *Client) QueueRows() ([]string, error) {
	output, err := c.run("squeue", "-h", "-o", QueueFormat)
	if err != nil {
		return nil, err
	}
	return nonemptyLines(output), nil
}

// BlameRows returns squeue output for the per-user GPU aggregation, one
// pipe-separated row per job, header omitted.
func (c *Client) BlameRows() ([]string, error) {
	output, err := c.run("squeue", "-h", "-o", BlameFormat)
	if err != nil {
		return nil, err
	}
	return nonemptyLines(output), nil
}

func nonemptyLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
