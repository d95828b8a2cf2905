package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONMap_ValueAndScan(t *testing.T) {
	v, err := JSONMap{"text": "你好", "n": 1}.Value()
	require.NoError(t, err)

	var m JSONMap
	require.NoError(t, m.Scan([]byte(v.(string))))
	assert.Equal(t, JSONMap{"text": "你好", "n": float64(1)}, m)

	require.NoError(t, m.Scan(`{"a":true}`))
	assert.Equal(t, JSONMap{"a": true}, m)

	require.NoError(t, m.Scan(nil))
	assert.Equal(t, JSONMap{}, m)

	assert.Error(t, m.Scan(42))
	assert.Error(t, m.Scan("not-json"))
}

func TestJSONMap_NilValue(t *testing.T) {
	v, err := JSONMap(nil).Value()

	require.NoError(t, err)
	assert.Equal(t, "{}", v)
}

func TestJob_Validate(t *testing.T) {
	j := &Job{JobID: "j1", User: "u1", Status: StatusSucceeded}
	assert.NoError(t, j.Validate())
	assert.True(t, j.IsSucceeded())
	assert.False(t, j.IsFailed())

	assert.EqualError(t, (&Job{User: "u1", Status: StatusPending}).Validate(), "job_id is required")
	assert.EqualError(t, (&Job{JobID: "j1", Status: StatusPending}).Validate(), "user is required")
	assert.Error(t, (&Job{JobID: "j1", User: "u1", Status: "done"}).Validate())
}

func TestStatus_Finished(t *testing.T) {
	assert.False(t, StatusPending.Finished())
	assert.False(t, StatusRunning.Finished())
	assert.True(t, StatusSucceeded.Finished())
	assert.True(t, StatusFailed.Finished())
}
