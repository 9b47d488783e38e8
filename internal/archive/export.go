// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/deepsearch-engine/pkg/types"
)

// exportDoc is the YAML document written for one archived session.
type exportDoc struct {
	Session *types.ResearchState `yaml:"session"`
	Answer  string               `yaml:"answer"`
}

// ExportYAML writes one archived session to path as YAML.
func (s *Store) ExportYAML(ctx context.Context, sessionID, path string) error {
	state, answer, err := s.Load(ctx, sessionID)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(exportDoc{Session: state, Answer: answer})
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
