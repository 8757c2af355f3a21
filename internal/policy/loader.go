package policy

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/entitlement-engine/go-core/pkg/types"
)

// Loader loads and parses policy documents and identity overrides from disk
type Loader struct {
	logger *zap.Logger
}

// NewLoader creates a new policy document loader
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger}
}

// LoadDocument loads a policy document from a YAML or JSON file. The ids of
// domains, versions, and roles keyed by map entries are normalized so the
// records carry their own ids even when the file omits them.
func (l *Loader) LoadDocument(filePath string) (*types.PolicyDocument, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	doc := &types.PolicyDocument{}

	// yaml.Unmarshal handles JSON as a subset
	if err := yaml.Unmarshal(content, doc); err != nil {
		return nil, fmt.Errorf("failed to parse policy document: %w", err)
	}

	normalize(doc)

	if err := Validate(doc); err != nil {
		return nil, err
	}

	l.logger.Info("Loaded policy document",
		zap.String("file", filePath),
		zap.Int("domains", len(doc.Domains)),
		zap.Int("versions", len(doc.Versions)),
		zap.Int("roles", len(doc.Roles)),
	)

	return doc, nil
}

// LoadOverride loads an identity override file. A missing file is not an
// error: impersonation is optional and absence means pass-through.
func (l *Loader) LoadOverride(filePath string) (*types.IdentityOverride, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read override file: %w", err)
	}

	override := &types.IdentityOverride{}
	if err := yaml.Unmarshal(content, override); err != nil {
		return nil, fmt.Errorf("failed to parse override file: %w", err)
	}

	l.logger.Warn("Identity override active",
		zap.String("file", filepath.Base(filePath)),
	)

	return override, nil
}

// normalize fills record ids from their map keys and initializes absent maps
func normalize(doc *types.PolicyDocument) {
	if doc.Roles == nil {
		doc.Roles = map[string]*types.Role{}
	}
	if doc.Access == nil {
		doc.Access = types.AccessMatrix{}
	}

	for id, d := range doc.Domains {
		if d != nil && d.ID == "" {
			d.ID = id
		}
	}
	for id, v := range doc.Versions {
		if v != nil && v.ID == "" {
			v.ID = id
		}
	}
	for id, r := range doc.Roles {
		if r != nil && r.ID == "" {
			r.ID = id
		}
	}
}
