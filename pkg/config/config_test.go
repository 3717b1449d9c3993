package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "classbook", cfg.Database.Name)
	assert.Equal(t, 10*time.Minute, cfg.Statistics.WeightsTTL)
	assert.Equal(t, "en", cfg.Statistics.SortLocale)
	assert.Equal(t, ScorePolicyMissingAsZero, cfg.Statistics.ScorePolicy)
	assert.Equal(t, 3, cfg.Reports.WorkerRetries)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("GRADES_SCORE_POLICY", " Renormalize ")
	v.Set("WEIGHTS_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	v.Set("SORT_LOCALE", "id")

	cfg := fromViper(v)
	assert.Equal(t, ScorePolicyRenormalize, cfg.Statistics.ScorePolicy)
	assert.Equal(t, 10*time.Minute, cfg.Statistics.WeightsTTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "id", cfg.Statistics.SortLocale)
}

func TestValidate(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)
	assert.NoError(t, cfg.Validate())

	cfg.Env = EnvProduction
	cfg.Reports.Enabled = true
	err := cfg.Validate()
	assert.ErrorContains(t, err, "JWT_SECRET still has the development value")
	assert.ErrorContains(t, err, "REPORTS_SIGNED_URL_SECRET still has the development value")

	cfg.JWT.Secret = "prod-secret"
	cfg.Reports.SignedURLSecret = "prod-reports-secret"
	assert.NoError(t, cfg.Validate())

	cfg.APIPrefix = "api"
	cfg.Port = 0
	err = cfg.Validate()
	assert.ErrorContains(t, err, "PORT 0 out of range")
	assert.ErrorContains(t, err, "API_PREFIX must start with /")
}

func TestNormalizeScorePolicy(t *testing.T) {
	assert.Equal(t, ScorePolicyRenormalize, NormalizeScorePolicy("RENORMALIZE"))
	assert.Equal(t, ScorePolicyMissingAsZero, NormalizeScorePolicy(""))
	assert.Equal(t, ScorePolicyMissingAsZero, NormalizeScorePolicy("best_of"))
}
