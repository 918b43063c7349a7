package services

import "context"

type runKey struct{}

// runInfo is the job identity carried through a pipeline run.
type runInfo struct {
	jobID string
	stage string
}

func infoFrom(ctx context.Context) runInfo {
	if ctx == nil {
		return runInfo{}
	}
	info, _ := ctx.Value(runKey{}).(runInfo)
	return info
}

// WithJobID annotates ctx with the dubbing job identifier. Empty ids are ignored.
func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	info := infoFrom(ctx)
	info.jobID = id
	return context.WithValue(ctx, runKey{}, info)
}

// WithStage annotates ctx with the pipeline stage name, keeping the job id.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	info := infoFrom(ctx)
	info.stage = stage
	return context.WithValue(ctx, runKey{}, info)
}

// JobIDFromContext extracts the dubbing job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	id := infoFrom(ctx).jobID
	return id, id != ""
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	stage := infoFrom(ctx).stage
	return stage, stage != ""
}
