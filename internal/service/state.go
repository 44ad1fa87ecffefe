// internal/service/state.go
package service

import "github.com/mailblast/mailblast-backend/internal/model"

// allowedTransitions is the campaign state machine:
// draft/scheduled -> sending -> (sending <-> paused) -> completed|failed.
// completed and failed are terminal. paused -> sending happens only through
// an operator resume; dispatch never unpauses a campaign on its own.
var allowedTransitions = map[string][]string{
	model.CampaignSending: {
		model.CampaignDraft,
		model.CampaignScheduled,
		model.CampaignSending,
		model.CampaignPaused, // operator resume only
	},
	model.CampaignScheduled: {model.CampaignDraft},
	model.CampaignPaused:    {model.CampaignSending},
	model.CampaignCompleted: {model.CampaignSending},
	model.CampaignFailed: {
		model.CampaignDraft,
		model.CampaignScheduled,
		model.CampaignSending,
	},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to string) bool {
	for _, allowed := range allowedTransitions[to] {
		if allowed == from {
			return true
		}
	}
	return false
}

// dispatchableFrom are the statuses the dispatcher itself may move into
// sending. Paused is deliberately absent.
var dispatchableFrom = []string{
	model.CampaignDraft,
	model.CampaignScheduled,
	model.CampaignSending,
}

// failableFrom are the statuses a setup error may move into failed.
var failableFrom = []string{
	model.CampaignDraft,
	model.CampaignScheduled,
	model.CampaignSending,
}
