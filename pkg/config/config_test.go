package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnv_DefaultWhenUnset(t *testing.T) {
	assert.Equal(t, "fallback", Env("DIFYKIT_TEST_UNSET_KEY", "fallback"))
	assert.Nil(t, Env("DIFYKIT_TEST_UNSET_KEY"))
}

func TestEnv_ReadsProcessEnvironment(t *testing.T) {
	t.Setenv("DIFYKIT_TEST_BASE_URL", "https://self.hosted/v1")

	assert.Equal(t, "https://self.hosted/v1", Env("DIFYKIT_TEST_BASE_URL", "https://api.dify.ai/v1"))
}

func TestAddAndLoadConfig(t *testing.T) {
	t.Setenv("DIFYKIT_TEST_TIMEOUT", "15")
	Add("difykit_test", func() map[string]interface{} {
		return map[string]interface{}{
			"timeout":   Env("DIFYKIT_TEST_TIMEOUT", 90),
			"transport": Env("DIFYKIT_TEST_TRANSPORT", "auto"),
			"nested": map[string]interface{}{
				"enabled": Env("DIFYKIT_TEST_ENABLED", true),
			},
		}
	})
	t.Cleanup(func() { delete(ConfigFuncs, "difykit_test") })

	loadConfig()

	assert.Equal(t, 15, GetInt("difykit_test.timeout"))
	assert.Equal(t, "auto", GetString("difykit_test.transport"))
	assert.True(t, GetBool("difykit_test.nested.enabled"))
	assert.Equal(t, "default", Get("difykit_test.missing", "default"))
}

func TestSetOverrides(t *testing.T) {
	Set("difykit_test_set.port", "8080")

	assert.Equal(t, "8080", Get("difykit_test_set.port"))
	assert.Equal(t, int64(8080), GetInt64("difykit_test_set.port"))
	assert.Equal(t, uint(8080), GetUint("difykit_test_set.port"))
	assert.Equal(t, float64(8080), GetFloat64("difykit_test_set.port"))
}

func TestEmpty(t *testing.T) {
	tests := []struct {
		val  interface{}
		want bool
	}{
		{nil, true},
		{"", true},
		{"x", false},
		{0, true},
		{3, false},
		{false, true},
		{map[string]string{}, true},
		{[]int{1}, false},
		{0.0, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, empty(tt.val), "%#v", tt.val)
	}
}
