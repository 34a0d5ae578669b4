// Package dash derives terminal-dashboard rows and per-user GPU usage
// aggregates from squeue output.
package dash

import (
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	StateRunning = "R"
	StatePending = "PD"
)

// QueueJob is one dashboard row derived from tab-separated squeue output.
type QueueJob struct {
	JobId        string
	StateCompact string
	Name         string
	TimeUsed     string
	TimeLeft     string
	Reason       string
	NodeList     string
	WorkDir      string
}

func (j *QueueJob) IsRunning() bool { return j.StateCompact == StateRunning }
func (j *QueueJob) IsPending() bool { return j.StateCompact == StatePending }

// DisplayRow renders the job as one fixed-width dashboard line.
func (j *QueueJob) DisplayRow() string {
	return fmt.Sprintf("%8s %-2s %-22s %9s %10s %-18s %-16s",
		j.JobId, j.StateCompact, truncate(j.Name, 22),
		j.TimeUsed, j.TimeLeft, truncate(j.Reason, 18), truncate(j.NodeList, 16))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// ParseQueueJob parses one tab-separated squeue row.  Rows with the wrong
// field count or a state other than R/PD yield false.
func ParseQueueJob(line string) (QueueJob, bool) {
	pieces := strings.SplitN(line, "\t", 8)
	if len(pieces) != 8 {
		return QueueJob{}, false
	}
	state := strings.TrimSpace(pieces[1])
	if state != StateRunning && state != StatePending {
		return QueueJob{}, false
	}
	return QueueJob{
		JobId:        strings.TrimSpace(pieces[0]),
		StateCompact: state,
		Name:         strings.TrimSpace(pieces[2]),
		TimeUsed:     strings.TrimSpace(pieces[3]),
		TimeLeft:     strings.TrimSpace(pieces[4]),
		Reason:       strings.TrimSpace(pieces[5]),
		NodeList:     strings.TrimSpace(pieces[6]),
		WorkDir:      strings.TrimSpace(pieces[7]),
	}, true
}

// ParseQueueJobs parses and orders dashboard rows: running jobs first,
// then pending, newest job ids first within each group.
func ParseQueueJobs(rows []string) []QueueJob {
	var jobs []QueueJob
	for _, row := range rows {
		if job, ok := ParseQueueJob(row); ok {
			jobs = append(jobs, job)
		}
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		ri, rj := stateRank(&jobs[i]), stateRank(&jobs[j])
		if ri != rj {
			return ri < rj
		}
		return jobIdNumber(&jobs[i]) > jobIdNumber(&jobs[j])
	})
	return jobs
}

func stateRank(j *QueueJob) int {
	if j.IsRunning() {
		return 0
	}
	return 1
}

func jobIdNumber(j *QueueJob) int {
	if n, err := strconv.Atoi(j.JobId); err == nil {
		return n
	}
	return 0
}

// BlameRecord aggregates GPU usage for one user.
type BlameRecord struct {
	Username          string
	Account           string
	RunningGpus       int
	PendingGpus       int
	AvgRequestMinutes float64
	FullName          string
	CoordinatorName   string
}

// NameResolver maps usernames and accounts to display names.  The system
// implementation shells out to getent and sacctmgr; tests inject a table.
type NameResolver interface {
	FullName(username string) string
	AccountCoordinators(accounts []string) map[string]string
}

// NullResolver resolves nothing, for contexts without directory access.
type NullResolver struct{}

func (NullResolver) FullName(string) string                         { return "" }
func (NullResolver) AccountCoordinators([]string) map[string]string { return nil }

var gresGpuPattern = regexp.MustCompile(`gpu:(?:[^:]+:)?(\d+)`)

// parseGresGpuCount reads the per-node GPU count from a squeue gres field
// such as "gpu:2", "gpu:a100:4", or a comma-separated list.
func parseGresGpuCount(gres string) int {
	for _, part := range strings.Split(gres, ",") {
		if !strings.Contains(part, "gpu") {
			continue
		}
		if m := gresGpuPattern.FindStringSubmatch(part); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				return n
			}
		}
		return 0
	}
	return 0
}

// ParseDurationMinutes reads squeue time-limit text (D-HH:MM:SS, HH:MM:SS,
// or MM:SS) as minutes.  Unparseable text counts as zero.
func ParseDurationMinutes(timeText string) float64 {
	days := 0
	clock := timeText
	if dayText, rest, found := strings.Cut(timeText, "-"); found {
		d, err := strconv.Atoi(dayText)
		if err != nil {
			return 0
		}
		days = d
		clock = rest
	}
	parts := strings.Split(clock, ":")
	numbers := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0
		}
		numbers[i] = n
	}
	seconds := 0
	switch len(numbers) {
	case 3:
		seconds = numbers[0]*3600 + numbers[1]*60 + numbers[2]
	case 2:
		seconds = numbers[0]*60 + numbers[1]
	default:
		return 0
	}
	return float64(days)*24*60 + float64(seconds)/60.0
}

type blameTally struct {
	account         string
	runningGpus     int
	pendingGpus     int
	requestMinutes  float64
	countedRequests int
}

// ParseBlameRecords aggregates pipe-separated squeue rows
// (user|account|gres|nodes|timelimit|state) into per-user GPU totals,
// sorted by running GPUs, then pending GPUs, then average requested
// minutes, all descending.
func ParseBlameRecords(rows []string, resolver NameResolver) []BlameRecord {
	tallies := make(map[string]*blameTally)
	var order []string
	for _, row := range rows {
		parts := strings.Split(row, "|")
		if len(parts) < 6 {
			continue
		}
		user := strings.TrimSpace(parts[0])
		state := strings.TrimSpace(parts[5])
		if user == "" {
			continue
		}
		gpusPerNode := parseGresGpuCount(parts[2])
		if gpusPerNode == 0 {
			continue
		}
		nodes, err := strconv.Atoi(strings.TrimSpace(parts[3]))
		if err != nil {
			nodes = 1
		}
		totalJobGpus := gpusPerNode * nodes
		minutes := ParseDurationMinutes(strings.TrimSpace(parts[4]))

		tally, found := tallies[user]
		if !found {
			tally = &blameTally{account: strings.TrimSpace(parts[1])}
			tallies[user] = tally
			order = append(order, user)
		}
		switch state {
		case StateRunning:
			tally.runningGpus += totalJobGpus
		case StatePending:
			tally.pendingGpus += totalJobGpus
		default:
			continue
		}
		tally.requestMinutes += minutes
		tally.countedRequests++
	}

	var accounts []string
	seen := make(map[string]bool)
	for _, user := range order {
		if account := tallies[user].account; account != "" && !seen[account] {
			seen[account] = true
			accounts = append(accounts, account)
		}
	}
	coordinators := resolver.AccountCoordinators(accounts)

	records := make([]BlameRecord, 0, len(order))
	for _, user := range order {
		tally := tallies[user]
		avg := 0.0
		if tally.countedRequests > 0 {
			avg = tally.requestMinutes / float64(tally.countedRequests)
		}
		records = append(records, BlameRecord{
			Username:          user,
			Account:           tally.account,
			RunningGpus:       tally.runningGpus,
			PendingGpus:       tally.pendingGpus,
			AvgRequestMinutes: avg,
			FullName:          resolver.FullName(user),
			CoordinatorName:   coordinators[tally.account],
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].RunningGpus != records[j].RunningGpus {
			return records[i].RunningGpus > records[j].RunningGpus
		}
		if records[i].PendingGpus != records[j].PendingGpus {
			return records[i].PendingGpus > records[j].PendingGpus
		}
		return records[i].AvgRequestMinutes > records[j].AvgRequestMinutes
	})
	return records
}

// SystemResolver resolves names through getent and sacctmgr.  Every lookup
// failure degrades to an empty name.
type SystemResolver struct{}

func (SystemResolver) FullName(username string) string {
	output, err := exec.Command("getent", "passwd", username).Output()
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.TrimSpace(string(output)), ":")
	if len(parts) < 5 {
		return ""
	}
	gecos, _, _ := strings.Cut(parts[4], ",")
	return gecos
}

func (r SystemResolver) AccountCoordinators(accounts []string) map[string]string {
	if len(accounts) == 0 {
		return nil
	}
	sorted := make([]string, len(accounts))
	copy(sorted, accounts)
	sort.Strings(sorted)
	output, err := exec.Command(
		"sacctmgr", "show", "account", strings.Join(sorted, ","),
		"withcoordinator", "format=Account,Coordinators", "-n", "-p").Output()
	if err != nil {
		return nil
	}
	mapping := make(map[string]string)
	for _, line := range strings.Split(string(output), "\n") {
		parts := strings.Split(line, "|")
		if len(parts) < 2 || parts[1] == "" {
			continue
		}
		first, _, _ := strings.Cut(parts[1], ",")
		if first = strings.TrimSpace(first); first != "" {
			mapping[parts[0]] = r.FullName(first)
		}
	}
	return mapping
}
