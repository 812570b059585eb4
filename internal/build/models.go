package build

import (
	"time"

	"github.com/cochaviz/vagrantizer/internal/box"
	"github.com/cochaviz/vagrantizer/internal/provision"
	"github.com/cochaviz/vagrantizer/internal/publish"
	"github.com/cochaviz/vagrantizer/internal/systems"
)

// BuildStatus captures the outcome of one target in a run.
type BuildStatus string

// Supported build statuses.
const (
	BuildStatusNotRun    BuildStatus = "not-run"
	BuildStatusSucceeded BuildStatus = "succeeded"
	BuildStatusFailed    BuildStatus = "failed"
	BuildStatusCancelled BuildStatus = "cancelled"
)

// BuildRequest is one invocation of the builder.
type BuildRequest struct {
	Plan        []systems.Target
	LeaveSystem bool // Keep successfully built containers around.
	Upload      bool // Hand finished boxes to the publisher.
	CleanStart  bool // Remove the planned targets' previous boxes first.
}

// BuildContext is passed across the stages of a single target.
type BuildContext struct {
	RunID   string
	Target  systems.Target
	Recipe  provision.Recipe
	Request *BuildRequest
}

// BuildOutput is what the driver hands back before publication.
type BuildOutput struct {
	Box box.Box
}

// BuildResult is the per-target record of a run.
type BuildResult struct {
	ID       string
	Target   systems.Target
	Status   BuildStatus
	Box      string // Path of the produced box.
	Release  *publish.Release
	Err      error
	Duration time.Duration
}

// Summary counts results by status.
func Summary(results []BuildResult) map[BuildStatus]int {
	counts := make(map[BuildStatus]int, 4)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
