package agent

import (
	"context"
	"fmt"

	"github.com/rahul/reforge/internal/plan"
	"github.com/rahul/reforge/internal/tools"
	"go.uber.org/zap"
)

// chain asks for a follow-up plan over the source artifacts produced by
// this run and executes it with a reduced capability set. unrecorded are
// steps known to have run whose results were lost to the reload.
func (s *Session) chain(ctx context.Context, request string, unrecorded []plan.Step) string {
	e := s.engine
	if !e.Chain.Enabled {
		return s.done(s.resultSummary())
	}
	artifacts := s.collectArtifacts(ctx, unrecorded)
	if len(artifacts) == 0 {
		return s.done(s.resultSummary())
	}

	s.transition(StateBuildingChainedPrompt)
	names := e.Chain.Tools
	if len(names) == 0 {
		names = tools.DefaultChainTools
	}
	sub := e.Registry.Subset(names...)
	prompt, err := e.Prompts.BuildChainPrompt(sub.Describe(), request, artifacts, plan.Failures(s.results))
	if err != nil {
		e.Logger.Warn("using default chain prompt", zap.Error(err))
	}

	resp, err := s.await(ctx, prompt)
	if err != nil {
		return s.fail(err, fmt.Sprintf("Failed: follow-up plan not generated: %v\n%s", err, s.resultSummary()))
	}
	p, err := plan.ParseResponse(resp.Message)
	if err != nil {
		return s.fail(err, fmt.Sprintf("Failed: could not parse the follow-up plan (%v).\n%s", err, s.resultSummary()))
	}
	if p.Empty() {
		s.tx.LogMessage("Follow-up plan has no steps.")
		return s.done(s.resultSummary())
	}

	e.Logger.LogPlan(s.ID, s.runID, len(p.Steps), 0, len(p.Steps))
	s.executePhase(ctx, StateExecutingChained, p.Steps, sub)
	return s.done(s.resultSummary())
}

func (s *Session) collectArtifacts(ctx context.Context, unrecorded []plan.Step) []Artifact {
	e := s.engine
	var paths []string
	seen := make(map[string]bool)
	add := func(step plan.Step) {
		c, ok := e.Registry.Get(step.Tool)
		if !ok || c.ArtifactArg == "" {
			return
		}
		path, err := tools.Args(step.Arguments).String(c.ArtifactArg)
		if err != nil || path == "" || seen[path] {
			return
		}
		seen[path] = true
		paths = append(paths, path)
	}

	for _, step := range unrecorded {
		add(step)
	}
	for _, r := range s.results {
		if !r.Failed() {
			add(r.Step)
		}
	}

	artifacts := make([]Artifact, 0, len(paths))
	for _, path := range paths {
		var content string
		var readErr error
		if err := e.Dispatcher.Do(ctx, func() { content, readErr = e.Host.ReadTextArtifact(path) }); err != nil {
			readErr = err
		}
		if readErr != nil {
			e.Logger.Warn("skipping artifact for follow-up plan", zap.String("path", path), zap.Error(readErr))
			continue
		}
		artifacts = append(artifacts, Artifact{Path: path, Content: content})
	}
	return artifacts
}
