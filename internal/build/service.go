package build

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cochaviz/vagrantizer/internal/artifacts"
	"github.com/cochaviz/vagrantizer/internal/command"
	"github.com/cochaviz/vagrantizer/internal/metrics"
	"github.com/cochaviz/vagrantizer/internal/provision"
	"github.com/cochaviz/vagrantizer/internal/systems"
)

// cleanupTimeout bounds the forced destroy that runs after a failure or an
// interrupt.
const cleanupTimeout = 2 * time.Minute

// BuildService runs a build plan one target at a time. A failing target is
// logged, its container destroyed, and the run moves on.
type BuildService struct {
	Logger              *slog.Logger
	EnvironmentPreparer BuildEnvironmentPreparer
	BuildDriver         BuildDriver
	Publisher           Publisher
	ArtifactStore       artifacts.ArtifactStore
	Metrics             *metrics.Recorder
	Recipes             func(target systems.Target) (provision.Recipe, error) // Defaults to provision.For.
	Now                 func() time.Time
}

// Run builds every target of request. The returned error only reports
// problems with the run itself (configuration, clean start, cancellation);
// per-target failures are in the results.
func (s *BuildService) Run(ctx context.Context, request *BuildRequest) ([]BuildResult, error) {
	if s.EnvironmentPreparer == nil {
		return nil, errors.New("environment preparer is not configured")
	}
	if s.BuildDriver == nil {
		return nil, errors.New("build driver is not configured")
	}
	if request.Upload && s.Publisher == nil {
		return nil, errors.New("upload requested but no publisher is configured")
	}

	runID := uuid.NewString()
	logger := s.logger().With("run", runID)

	results := make([]BuildResult, len(request.Plan))
	logger.Info("build plan", "targets", len(request.Plan))
	for i, target := range request.Plan {
		results[i] = BuildResult{ID: uuid.NewString(), Target: target, Status: BuildStatusNotRun}
		logger.Info(" - " + target.Family + ", " + target.Revision)
	}

	if request.CleanStart && s.ArtifactStore != nil {
		names := make([]string, len(request.Plan))
		for i, target := range request.Plan {
			names[i] = target.Name() + ".box"
		}
		logger.Info("removing previous boxes of the plan", "boxes", names)
		if err := s.ArtifactStore.Purge(names...); err != nil {
			return results, err
		}
	}

	for i := range results {
		if err := ctx.Err(); err != nil {
			logger.Warn("build interrupted", "remaining", len(results)-i)
			return results, err
		}
		s.runTarget(ctx, logger, runID, request, &results[i])
		s.Metrics.Observe(results[i].Target.Family, results[i].Target.Revision, string(results[i].Status), results[i].Duration, s.now())
	}
	return results, ctx.Err()
}

func (s *BuildService) runTarget(ctx context.Context, logger *slog.Logger, runID string, request *BuildRequest, result *BuildResult) {
	start := s.now()
	logger = logger.With("target", result.Target.Slug(), "build", result.ID)
	logger.Info("starting box build")

	err := s.build(ctx, logger, runID, request, result)
	result.Duration = s.now().Sub(start)
	result.Err = err

	switch {
	case err == nil:
		result.Status = BuildStatusSucceeded
		logger.Info("box build finished", "box", result.Box, "took", result.Duration.Round(time.Second))
	case ctx.Err() != nil:
		result.Status = BuildStatusCancelled
		logger.Warn("box build cancelled", "error", err)
	default:
		result.Status = BuildStatusFailed
		logger.Error("box build failed", "error", err)
	}
}

func (s *BuildService) build(ctx context.Context, logger *slog.Logger, runID string, request *BuildRequest, result *BuildResult) (err error) {
	recipes := s.Recipes
	if recipes == nil {
		recipes = provision.For
	}
	recipe, err := recipes(result.Target)
	if err != nil {
		discardCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if derr := s.EnvironmentPreparer.Discard(discardCtx, result.Target); derr != nil {
			logger.Warn("stale container cleanup failed", "error", derr)
		}
		return err
	}

	buildContext := BuildContext{
		RunID:   runID,
		Target:  result.Target,
		Recipe:  recipe,
		Request: request,
	}

	env, err := s.EnvironmentPreparer.Prepare(ctx, buildContext)
	defer func() {
		if env == nil {
			return
		}
		if err == nil && request.LeaveSystem {
			logger.Info("leaving container in place")
			return
		}
		s.cleanup(ctx, logger, env, err)
	}()
	if err != nil {
		return err
	}
	logger.Info("build environment prepared")

	output, err := s.BuildDriver.Build(ctx, buildContext, env)
	if err != nil {
		return err
	}
	result.Box = output.Box.Path
	logger.Info("build driver completed", "box", output.Box.Path)

	if request.Upload {
		release, err := s.Publisher.Publish(ctx, result.Target, output.Box.Path)
		if err != nil {
			return err
		}
		result.Release = &release
		logger.Info("box published", "box", release.Box, "version", release.Version)
	}
	return nil
}

// cleanup destroys the container. After a failure it is best effort: errors
// are logged and never replace the failure that caused it.
func (s *BuildService) cleanup(ctx context.Context, logger *slog.Logger, env BuildEnvironment, cause error) {
	var timeout *command.TimeoutError
	if errors.As(cause, &timeout) {
		logger.Warn("killing timed out command", "command", timeout.Command, "pid", timeout.PID)
		if err := timeout.Kill(); err != nil {
			logger.Warn("failed to kill timed out command", "error", err)
		}
	}

	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := env.Cleanup(cleanupCtx); err != nil {
		logger.Warn("container cleanup failed", "error", err)
		return
	}
	if cause != nil {
		logger.Info("container destroyed after failure")
	}
}

func (s *BuildService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *BuildService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}
