package portalapi

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var backendContract []byte

// ContractChecker compares decoded response bodies against the documented
// backend contract. Drift is reported, never enforced.
type ContractChecker struct {
	doc     *openapi3.T
	logger  *slog.Logger
	onDrift func(operation string)
}

func NewContractChecker(logger *slog.Logger, onDrift func(operation string)) (*ContractChecker, error) {
	return newContractChecker(backendContract, logger, onDrift)
}

func newContractChecker(raw []byte, logger *slog.Logger, onDrift func(operation string)) (*ContractChecker, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("load backend contract: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate backend contract: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContractChecker{doc: doc, logger: logger, onDrift: onDrift}, nil
}

// Check validates body as the response of method on the path template.
// It returns the mismatch, if any, after reporting it.
func (c *ContractChecker) Check(operation, method, template string, status int, body []byte) error {
	if c == nil || len(body) == 0 {
		return nil
	}
	schema := c.responseSchema(method, template, status)
	if schema == nil {
		return nil
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return c.drift(operation, template, fmt.Errorf("decode body: %w", err))
	}
	if err := schema.VisitJSON(value, openapi3.MultiErrors()); err != nil {
		return c.drift(operation, template, err)
	}
	return nil
}

func (c *ContractChecker) responseSchema(method, template string, status int) *openapi3.Schema {
	item := c.doc.Paths.Find(template)
	if item == nil {
		return nil
	}
	op := item.GetOperation(method)
	if op == nil || op.Responses == nil {
		return nil
	}
	ref := op.Responses.Status(status)
	if ref == nil && status >= http.StatusOK && status < http.StatusMultipleChoices {
		ref = op.Responses.Status(http.StatusOK)
	}
	if ref == nil || ref.Value == nil {
		return nil
	}
	media := ref.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil {
		return nil
	}
	return media.Schema.Value
}

func (c *ContractChecker) drift(operation, template string, err error) error {
	c.logger.Warn("portal_contract_drift",
		"operation", operation,
		"path", template,
		"error", err,
	)
	if c.onDrift != nil {
		c.onDrift(operation)
	}
	return err
}
