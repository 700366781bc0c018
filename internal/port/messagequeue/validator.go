package messagequeue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate checks whether data is valid JSON conforming to the schema
// associated with the given subject. Unknown subjects pass validation.
func Validate(subject string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON on subject %s", subject)
	}

	switch {
	case IsDeadLetter(subject):
		// Dead letters carry the original payload verbatim.
	case strings.HasPrefix(subject, SubjectJobs+"."):
		var env JobEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("schema validation failed for %s: %w", subject, err)
		}
		if env.JobID == "" {
			return fmt.Errorf("schema validation failed for %s: job_id is required", subject)
		}
		if kind := strings.TrimPrefix(subject, SubjectJobs+"."); env.Kind != kind {
			return fmt.Errorf("schema validation failed for %s: kind %q does not match subject", subject, env.Kind)
		}
	}
	return nil
}
