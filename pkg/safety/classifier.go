// Package safety implements the Command Safety Filter (C3): a pure
// decision function over a proposed shell argv, with no process
// execution of its own.
package safety

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Lists configures the three allow/deny list pairs the classifier
// consults, sourced from the [commands] config section.
type Lists struct {
	AllowList  []string // literal prefixes
	DenyList   []string // literal substrings
	AllowGlob  []string
	DenyGlob   []string
	AllowRegex []string
	DenyRegex  []string
}

// Decision is the outcome of Classify.
type Decision struct {
	Allowed bool
	Reason  string
}

// unconditionalDenyCommands are never permitted regardless of configured
// allow lists.
var unconditionalDenyCommands = map[string]bool{
	"rm": true, "rmdir": true, "del": true, "format": true,
	"fdisk": true, "mkfs": true, "dd": true,
	"shutdown": true, "reboot": true, "halt": true, "poweroff": true,
}

// unconditionalDenyPatterns are substrings of the full command string
// that are always denied.
var unconditionalDenyPatterns = []string{
	"rm -rf /",
	"sudo rm",
	":(){ :|:& };:",
}

// Classifier evaluates argv/full-command pairs against a fixed Lists.
type Classifier struct {
	lists Lists
}

// New constructs a Classifier from the given lists.
func New(lists Lists) *Classifier {
	return &Classifier{lists: lists}
}

// Classify implements classify(argv, full_command_string) per §4.3: first
// the unconditional denies, then the three list pairs in decision order
// (deny_regex, deny_glob, deny_list, allow_regex, allow_glob, allow_list),
// defaulting to Deny when nothing matches.
func (c *Classifier) Classify(argv []string, full string) Decision {
	if len(argv) == 0 {
		return Decision{Allowed: false, Reason: "empty command"}
	}
	if unconditionalDenyCommands[argv[0]] {
		return Decision{Allowed: false, Reason: "command \"" + argv[0] + "\" is unconditionally denied"}
	}
	for _, pattern := range unconditionalDenyPatterns {
		if strings.Contains(full, pattern) {
			return Decision{Allowed: false, Reason: "command matches a dangerous pattern"}
		}
	}

	for _, pattern := range c.lists.DenyRegex {
		if matches(pattern, full) {
			return Decision{Allowed: false, Reason: "matched deny_regex: " + pattern}
		}
	}
	for _, pattern := range c.lists.DenyGlob {
		if globMatches(pattern, full) {
			return Decision{Allowed: false, Reason: "matched deny_glob: " + pattern}
		}
	}
	for _, substr := range c.lists.DenyList {
		if substr != "" && strings.Contains(full, substr) {
			return Decision{Allowed: false, Reason: "matched deny_list: " + substr}
		}
	}

	for _, pattern := range c.lists.AllowRegex {
		if matches(pattern, full) {
			return Decision{Allowed: true, Reason: "matched allow_regex: " + pattern}
		}
	}
	for _, pattern := range c.lists.AllowGlob {
		if globMatches(pattern, full) {
			return Decision{Allowed: true, Reason: "matched allow_glob: " + pattern}
		}
	}
	for _, prefix := range c.lists.AllowList {
		if prefix != "" && strings.HasPrefix(full, prefix) {
			return Decision{Allowed: true, Reason: "matched allow_list: " + prefix}
		}
	}

	return Decision{Allowed: false, Reason: "not in allow-list"}
}

func matches(pattern, s string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func globMatches(pattern, s string) bool {
	ok, err := filepath.Match(pattern, s)
	return err == nil && ok
}
