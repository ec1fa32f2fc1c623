package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
}

func TestPublishEncodesValues(t *testing.T) {
	w := &stubWriter{}
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Producer{w: w, now: func() time.Time { return ts }}
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, "a", []byte("k"), []byte("raw")))
	require.NoError(t, p.Publish(ctx, "a", nil, "text"))
	require.NoError(t, p.PublishMessage(ctx, "b", map[string]int{"n": 1}))

	require.Len(t, w.msgs, 3)
	assert.Equal(t, []byte("raw"), w.msgs[0].Value)
	assert.Equal(t, []byte("k"), w.msgs[0].Key)
	assert.Equal(t, []byte("text"), w.msgs[1].Value)
	assert.Equal(t, "b", w.msgs[2].Topic)
	assert.Equal(t, ts, w.msgs[2].Time)

	var got map[string]int
	require.NoError(t, json.Unmarshal(w.msgs[2].Value, &got))
	assert.Equal(t, 1, got["n"])
}

func TestPublishRejectsUnencodable(t *testing.T) {
	p := &Producer{w: &stubWriter{}, now: time.Now}
	assert.Error(t, p.Publish(context.Background(), "a", nil, make(chan int)))
}
