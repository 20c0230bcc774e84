package template

import "strings"

// instructionFor picks the answer-format hint for a source label. The ranges
// follow the PMData task definitions; unrecognized sources get the generic
// tag instruction.
func instructionFor(source string) string {
	s := strings.ToLower(source)
	switch {
	case strings.Contains(s, "fatigue"):
		return " Your prediction should be a single integer from 0 to 5. Only provide the predicted value within the <answer> </answer> tags."
	case strings.Contains(s, "readiness"):
		return " Your prediction should be a single integer from 0 to 10. Only provide the predicted value within the <answer> </answer> tags."
	case strings.Contains(s, "sleep_quality"):
		return " Your prediction should be a single integer from 1 to 5. Only provide the predicted value within the <answer> </answer> tags."
	case strings.Contains(s, "stress"):
		return " Your prediction should be a single integer from 0 to 5. Only provide the predicted value within the <answer> </answer> tags."
	default:
		return " Only provide the predicted value within the <answer> </answer> tags."
	}
}
