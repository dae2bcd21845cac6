// Copyright 2026 © The Maiar Authors
// SPDX-License-Identifier: Apache-2.0

package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zeeman-effect/maiar-ai-sub000/pkg/core"
)

// pipelineFile is the object form of a pipeline file. A bare list of steps
// is accepted as well.
type pipelineFile struct {
	Steps []core.PipelineStep `json:"steps" yaml:"steps"`
}

// LoadPipeline loads a pipeline from a YAML or JSON file.
func LoadPipeline(path string) (core.Pipeline, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("pipeline path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParsePipelineJSON(data)
	case ".yaml", ".yml":
		return ParsePipelineYAML(data)
	default:
		if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			if p, err := ParsePipelineJSON(data); err == nil {
				return p, nil
			}
		}
		return ParsePipelineYAML(data)
	}
}

// ParsePipelineJSON decodes and validates a JSON pipeline.
func ParsePipelineJSON(data []byte) (core.Pipeline, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, fmt.Errorf("empty JSON payload")
	}
	var steps []core.PipelineStep
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &steps); err != nil {
			return nil, fmt.Errorf("parse json pipeline: %w", err)
		}
	} else {
		var f pipelineFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse json pipeline: %w", err)
		}
		steps = f.Steps
	}
	return validated(steps)
}

// ParsePipelineYAML decodes and validates a YAML pipeline.
func ParsePipelineYAML(data []byte) (core.Pipeline, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("empty YAML payload")
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse yaml pipeline: %w", err)
	}
	var steps []core.PipelineStep
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		if err := node.Decode(&steps); err != nil {
			return nil, fmt.Errorf("parse yaml pipeline: %w", err)
		}
	} else {
		var f pipelineFile
		if err := node.Decode(&f); err != nil {
			return nil, fmt.Errorf("parse yaml pipeline: %w", err)
		}
		steps = f.Steps
	}
	return validated(steps)
}

func validated(steps []core.PipelineStep) (core.Pipeline, error) {
	p := core.Pipeline(steps)
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
