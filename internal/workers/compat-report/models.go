// internal/workers/compat-report/models.go
package compatreport

import "soulverse/internal/models"

// Output is merged into the process instance variables on completion.
type Output struct {
	Topic     string                     `json:"compatTopic"`
	Report    models.CompatibilityReport `json:"compatReport"`
	Fallbacks []string                   `json:"compatFallbacks,omitempty"`
}
