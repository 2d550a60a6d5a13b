package billing

import "github.com/dvelchev/codeforge/internal/models"

// Plan defines the limits attached to a subscription plan.
type Plan struct {
	ID                models.SubscriptionPlan
	DisplayName       string
	MonthlyPriceCents int64
	MaxProjects       int // -1 means unlimited
	MaxFilesPerProj   int
	MaxProjectSizeKB  int
	TokensLimit       int64
}

// Plans holds all available plans keyed by plan ID.
var Plans = map[models.SubscriptionPlan]*Plan{
	models.PlanFree: {
		ID:                models.PlanFree,
		DisplayName:       "Free",
		MonthlyPriceCents: 0,
		MaxProjects:       1,
		MaxFilesPerProj:   20,
		MaxProjectSizeKB:  10 * 1024,
		TokensLimit:       10000,
	},
	models.PlanPro: {
		ID:                models.PlanPro,
		DisplayName:       "Pro",
		MonthlyPriceCents: 2000,
		MaxProjects:       -1,
		MaxFilesPerProj:   500,
		MaxProjectSizeKB:  1024 * 1024,
		TokensLimit:       1000000,
	},
}

// PlanOrder defines the display ordering of plans.
var PlanOrder = []models.SubscriptionPlan{models.PlanFree, models.PlanPro}

// GetPlan returns a plan by its ID, falling back to free for unknown
// values.
func GetPlan(id models.SubscriptionPlan) *Plan {
	if p, ok := Plans[id]; ok {
		return p
	}
	return Plans[models.PlanFree]
}

func (p *Plan) AllowsProjects(current int) bool {
	return p.MaxProjects < 0 || current < p.MaxProjects
}

func (p *Plan) AllowsFiles(current int) bool {
	return p.MaxFilesPerProj < 0 || current < p.MaxFilesPerProj
}

func (p *Plan) AllowsSizeKB(totalKB int) bool {
	return p.MaxProjectSizeKB < 0 || totalKB <= p.MaxProjectSizeKB
}
