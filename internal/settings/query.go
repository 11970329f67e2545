package settings

import (
	"captchaguard/internal/types"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/jmespath/go-jmespath"
)

// Query evaluates a JMESPath expression against the JSON form of a record, e.g.
// "flags.enable_login" or "[theme, language]". Callers pass redacted records to anything
// that leaves the process.
// It will return nil and no error if the expression does not match anything.
func Query(s types.Settings, expression string) (any, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	v, err := jmespath.Search(expression, doc)
	if err != nil {
		return nil, fmt.Errorf("jmespath: %w", err)
	}
	return v, nil
}
