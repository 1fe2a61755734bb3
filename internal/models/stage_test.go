package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_Next(t *testing.T) {
	next, ok := StageDiscover.Next()
	require.True(t, ok)
	assert.Equal(t, StageScrape, next)

	next, ok = StageCategorize.Next()
	require.True(t, ok)
	assert.Equal(t, StageGraph, next)

	_, ok = StageGraph.Next()
	assert.False(t, ok, "graph is terminal")
}

func TestParseStage(t *testing.T) {
	stage, err := ParseStage("summarize")
	require.NoError(t, err)
	assert.Equal(t, StageSummarize, stage)

	_, err = ParseStage("transcode")
	assert.Error(t, err)
}

func TestStage_JSONStrict(t *testing.T) {
	var s Stage
	require.NoError(t, json.Unmarshal([]byte(`"scrape"`), &s))
	assert.Equal(t, StageScrape, s)

	err := json.Unmarshal([]byte(`"publish"`), &s)
	assert.ErrorContains(t, err, "unknown stage")
}

func TestStage_MapKeys(t *testing.T) {
	paths := map[Stage]string{StageDiscover: "a.json", StageScrape: "b.json"}
	data, err := json.Marshal(paths)
	require.NoError(t, err)

	var decoded map[Stage]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, paths, decoded)

	err = json.Unmarshal([]byte(`{"transcode": "x.json"}`), &decoded)
	assert.Error(t, err, "unknown stage keys are rejected")
}

func TestEnums_RejectUnknown(t *testing.T) {
	var ct ContentType
	require.NoError(t, json.Unmarshal([]byte(`"speech"`), &ct))
	assert.Error(t, json.Unmarshal([]byte(`"podcast"`), &ct))

	var et EntityType
	require.NoError(t, json.Unmarshal([]byte(`"organization"`), &et))
	assert.Error(t, json.Unmarshal([]byte(`"animal"`), &et))

	var topic Topic
	require.NoError(t, json.Unmarshal([]byte(`"foreign_affairs"`), &topic))
	assert.Error(t, json.Unmarshal([]byte(`"sports"`), &topic))

	var sent Sentiment
	require.NoError(t, json.Unmarshal([]byte(`"unclear"`), &sent))
	assert.Error(t, json.Unmarshal([]byte(`"angry"`), &sent))

	var st StageStatus
	require.NoError(t, json.Unmarshal([]byte(`"IN_PROGRESS"`), &st))
	assert.Error(t, json.Unmarshal([]byte(`"in_progress"`), &st), "status values are uppercase")

	var ind Industry
	require.NoError(t, json.Unmarshal([]byte(`"academia"`), &ind))
	assert.Error(t, json.Unmarshal([]byte(`"agriculture"`), &ind))
}
