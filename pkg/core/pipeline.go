// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"strings"
)

// PipelineStep names a plugin action. It is resolved against the plugin
// registry only when executed.
type PipelineStep struct {
	PluginID string `json:"pluginId" yaml:"pluginId"`
	Action   string `json:"action" yaml:"action"`
}

// String renders the step as pluginId:action.
func (s PipelineStep) String() string {
	return s.PluginID + ":" + s.Action
}

// Validate reports whether both identifiers are present.
func (s PipelineStep) Validate() error {
	if strings.TrimSpace(s.PluginID) == "" {
		return fmt.Errorf("step %q is missing pluginId", s.String())
	}
	if strings.TrimSpace(s.Action) == "" {
		return fmt.Errorf("step %q is missing action", s.String())
	}
	return nil
}

// Pipeline is an ordered list of steps.
type Pipeline []PipelineStep

// Validate checks every step.
func (p Pipeline) Validate() error {
	for i, step := range p {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("pipeline[%d]: %w", i, err)
		}
	}
	return nil
}

// Clone returns an independent copy.
func (p Pipeline) Clone() Pipeline {
	out := make(Pipeline, len(p))
	copy(out, p)
	return out
}

// SpliceAfter keeps steps [0..index] and replaces everything after index
// with steps. The executed prefix is never touched.
func (p Pipeline) SpliceAfter(index int, steps []PipelineStep) Pipeline {
	if index < -1 {
		index = -1
	}
	if index >= len(p) {
		index = len(p) - 1
	}
	out := make(Pipeline, 0, index+1+len(steps))
	out = append(out, p[:index+1]...)
	out = append(out, steps...)
	return out
}

// Contains reports whether step appears in p.
func (p Pipeline) Contains(step PipelineStep) bool {
	for _, s := range p {
		if s == step {
			return true
		}
	}
	return false
}

// PipelineModification is the model's verdict after a step completes.
type PipelineModification struct {
	ShouldModify  bool           `json:"shouldModify"`
	Explanation   string         `json:"explanation"`
	ModifiedSteps []PipelineStep `json:"modifiedSteps"`
}

// Validate requires replacement steps to be well-formed when a modification is requested.
func (m PipelineModification) Validate() error {
	if !m.ShouldModify {
		return nil
	}
	return Pipeline(m.ModifiedSteps).Validate()
}
