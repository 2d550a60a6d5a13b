package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dvelchev/codeforge/internal/models"
)

func TestGetPlanFallsBackToFree(t *testing.T) {
	assert.Equal(t, Plans[models.PlanFree], GetPlan("enterprise"))
	assert.Equal(t, Plans[models.PlanPro], GetPlan(models.PlanPro))
}

func TestPlanLimits(t *testing.T) {
	free := GetPlan(models.PlanFree)
	assert.True(t, free.AllowsProjects(0))
	assert.False(t, free.AllowsProjects(1))
	assert.True(t, free.AllowsFiles(19))
	assert.False(t, free.AllowsFiles(20))
	assert.True(t, free.AllowsSizeKB(10*1024))
	assert.False(t, free.AllowsSizeKB(10*1024+1))

	pro := GetPlan(models.PlanPro)
	assert.True(t, pro.AllowsProjects(10000), "pro projects are unlimited")
	assert.False(t, pro.AllowsFiles(500))
	assert.True(t, pro.AllowsSizeKB(1024*1024))
}
