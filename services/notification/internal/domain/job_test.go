package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
)

func validJob() *Job {
	return &Job{
		DeviceToken: "tok-1",
		Platform:    PlatformIOS,
		Title:       "New follower",
		Body:        "someone followed you",
		MaxRetries:  DefaultMaxRetries,
	}
}

func TestJobValidate(t *testing.T) {
	assert.NoError(t, validJob().Validate())

	cases := []struct {
		name   string
		mutate func(*Job)
	}{
		{"missing token", func(j *Job) { j.DeviceToken = "" }},
		{"bad platform", func(j *Job) { j.Platform = "windows_phone" }},
		{"missing title", func(j *Job) { j.Title = "" }},
		{"title too long", func(j *Job) { j.Title = strings.Repeat("x", 257) }},
		{"body too long", func(j *Job) { j.Body = strings.Repeat("x", 2049) }},
		{"negative badge", func(j *Job) { j.Badge = -1 }},
		{"negative max retries", func(j *Job) { j.MaxRetries = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			j := validJob()
			tc.mutate(j)
			err := j.Validate()
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
		})
	}
}

func TestRetriesLeft(t *testing.T) {
	j := validJob()
	assert.True(t, j.RetriesLeft())

	j.RetryCount = DefaultMaxRetries
	assert.False(t, j.RetriesLeft())
}

func TestValidChannelsAndPlatforms(t *testing.T) {
	assert.True(t, IsValidChannel(ChannelPush))
	assert.True(t, IsValidChannel(ChannelEmail))
	assert.True(t, IsValidChannel(ChannelInApp))
	assert.False(t, IsValidChannel("sms"))

	assert.True(t, IsValidPlatform(PlatformIOS))
	assert.True(t, IsValidPlatform(PlatformAndroid))
	assert.False(t, IsValidPlatform("web"))
}
