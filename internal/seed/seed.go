// Package seed holds the starting scenario for a new game: the council
// roles, the issue queue, the kingdom's variables, and the opening state.
package seed

import "github.com/emberfall/regnum/internal/model"

func intPtr(v int) *int { return &v }

// Data is a complete starting scenario.
type Data struct {
	Roles     []model.Role
	Issues    []model.Issue
	Variables []model.Variable
	State     model.GameState
}

// Default returns the built-in kingdom scenario: four council roles,
// one active issue with two queued behind it, and four bounded
// variables. Queued issues carry the archived status until the engine
// activates them.
func Default() Data {
	currentIssue := "northern_border"
	return Data{
		Roles: []model.Role{
			{ID: "regent", Name: "Regent", Description: "Rules in the monarch's stead and has the final word on matters of state."},
			{ID: "treasury", Name: "Master of Coin", Description: "Controls the kingdom's finances, taxation, and trade policy."},
			{ID: "military", Name: "Lord Commander", Description: "Commands the kingdom's armies and its border garrisons."},
			{ID: "diplomat", Name: "Chief Diplomat", Description: "Handles relations with neighboring realms and foreign envoys."},
		},
		Issues: []model.Issue{
			{
				ID:          "northern_border",
				Title:       "Northern Border Dispute",
				Description: "Raiders from the northern highlands have been crossing the border, burning farms and driving off livestock. The border lords demand a response.",
				Category:    "military",
				Status:      model.IssueActive,
			},
			{
				ID:          "trade_crisis",
				Title:       "Trade Route Crisis",
				Description: "Merchant guilds report that the eastern trade routes have become too dangerous to travel. Caravans demand armed escorts or compensation.",
				Category:    "economic",
				Status:      model.IssueArchived,
			},
			{
				ID:          "plague_outbreak",
				Title:       "Plague in the Port City",
				Description: "A sickness spreads through the docks of the port city. Quarantine would strangle trade; inaction risks the capital.",
				Category:    "social",
				Status:      model.IssueArchived,
			},
		},
		Variables: []model.Variable{
			{ID: "treasury_level", Name: "Treasury", Description: "The kingdom's financial reserves.", Current: 50, Min: intPtr(0), Max: intPtr(100)},
			{ID: "militarism_level", Name: "Militarism", Description: "Military readiness and the army's standing.", Current: 30, Min: intPtr(0), Max: intPtr(100)},
			{ID: "diplomacy_level", Name: "Diplomacy", Description: "Standing with neighboring realms.", Current: 60, Min: intPtr(0), Max: intPtr(100)},
			{ID: "public_morale", Name: "Public Morale", Description: "The mood of the common folk.", Current: 55, Min: intPtr(0), Max: intPtr(100)},
		},
		State: model.GameState{
			CurrentIssueID: &currentIssue,
			Round:          1,
			Status:         model.GameActive,
		},
	}
}
