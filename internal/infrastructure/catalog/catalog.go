package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/eteeap-applicant-client/internal/core/domain"
)

//go:embed documents.yaml
var defaultDocuments []byte

type file struct {
	Documents []domain.DocumentTypeInfo `yaml:"documents"`
}

// Default returns the built-in document catalog.
func Default() domain.DocumentCatalog {
	c, err := Parse(defaultDocuments)
	if err != nil {
		panic(fmt.Sprintf("embedded document catalog: %v", err))
	}
	return c
}

// Load reads a catalog override from path, or the built-in catalog when path is empty.
func Load(path string) (domain.DocumentCatalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.DocumentCatalog{}, fmt.Errorf("read document catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return domain.DocumentCatalog{}, fmt.Errorf("document catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and checks a catalog: unique non-empty types, labels, exactly one mandatory entry.
func Parse(data []byte) (domain.DocumentCatalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.DocumentCatalog{}, fmt.Errorf("parse yaml: %w", err)
	}
	if len(f.Documents) == 0 {
		return domain.DocumentCatalog{}, fmt.Errorf("no document types")
	}

	seen := make(map[domain.DocumentType]bool, len(f.Documents))
	mandatory := 0
	for i, entry := range f.Documents {
		entry.Type = domain.DocumentType(strings.TrimSpace(string(entry.Type)))
		entry.Label = strings.TrimSpace(entry.Label)
		if entry.Type == "" {
			return domain.DocumentCatalog{}, fmt.Errorf("entry %d: type is empty", i)
		}
		if entry.Label == "" {
			entry.Label = string(entry.Type)
		}
		if seen[entry.Type] {
			return domain.DocumentCatalog{}, fmt.Errorf("duplicate type %s", entry.Type)
		}
		seen[entry.Type] = true
		if entry.Mandatory {
			mandatory++
		}
		f.Documents[i] = entry
	}
	if mandatory != 1 {
		return domain.DocumentCatalog{}, fmt.Errorf("%d mandatory types, exactly one required", mandatory)
	}
	return domain.NewDocumentCatalog(f.Documents), nil
}
