// internal/service/precheck_service.go
package service

import (
	"fmt"
	"strings"

	"github.com/mailblast/mailblast-backend/internal/model"
)

const (
	IssueWarning = "warning"
	IssueError   = "error"
)

// Issue is one deliverability finding. Warnings are advisory; a single
// error blocks the send.
type Issue struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// spamTriggerWords is the fixed lexicon checked against subject + body.
var spamTriggerWords = []string{
	"free",
	"winner",
	"click here",
	"act now",
	"limited time",
	"urgent",
}

const (
	maxSubjectLength   = 60
	throttleRecipients = 500
)

// CheckDeliverability runs the static pre-send analysis. All rules are
// evaluated independently, in order; nothing short-circuits. Stateless and
// advisory: callers decide whether to start sending based on the absence of
// error issues.
func CheckDeliverability(tpl *model.Template, recipientCount int, hasCredentials bool) []Issue {
	issues := []Issue{}
	content := strings.ToLower(tpl.Subject + " " + tpl.HTMLContent)

	for _, word := range spamTriggerWords {
		if strings.Contains(content, word) {
			issues = append(issues, Issue{
				Type:    IssueWarning,
				Message: fmt.Sprintf("content contains spam trigger word %q", word),
			})
		}
	}

	if !strings.Contains(strings.ToLower(tpl.HTMLContent), "unsubscribe") {
		issues = append(issues, Issue{
			Type:    IssueWarning,
			Message: "body has no unsubscribe link",
		})
	}

	if len(tpl.Subject) > maxSubjectLength {
		issues = append(issues, Issue{
			Type:    IssueWarning,
			Message: fmt.Sprintf("subject is longer than %d characters", maxSubjectLength),
		})
	}

	if recipientCount > throttleRecipients {
		issues = append(issues, Issue{
			Type:    IssueWarning,
			Message: fmt.Sprintf("more than %d recipients, throttled sending recommended", throttleRecipients),
		})
	}

	if !hasCredentials {
		issues = append(issues, Issue{
			Type:    IssueError,
			Message: "SMTP credentials are missing",
		})
	}

	return issues
}

// HasErrors reports whether any issue blocks the send.
func HasErrors(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Type == IssueError {
			return true
		}
	}
	return false
}
