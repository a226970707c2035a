// Package validate checks submitted source before a record is created:
// a Lua syntax check plus a denylist of require targets. Rejected code
// never reaches the runner.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/gopher-lua/parse"

	"github.com/mwhitley/crucible/internal/sandbox"
)

// Error is a submission rejection. Module is set when a blocked
// require caused it.
type Error struct {
	Module  string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Matches require "mod", require("mod") and require('mod.sub').
var requirePattern = regexp.MustCompile(`require\s*\(?\s*["']([\w.]+)["']`)

// Check validates source against the policy. It returns a *Error for
// user-facing rejections.
func Check(source string, policy sandbox.Policy) error {
	if _, err := parse.Parse(strings.NewReader(source), "submission"); err != nil {
		return &Error{Message: fmt.Sprintf("lua syntax error: %v", err)}
	}

	for _, match := range requirePattern.FindAllStringSubmatch(source, -1) {
		if blocked, ok := policy.BlockedBy(match[1]); ok {
			return &Error{
				Module:  blocked,
				Message: fmt.Sprintf("require of %q is not allowed for security reasons", blocked),
			}
		}
	}
	return nil
}
