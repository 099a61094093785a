package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChannel struct {
	published []amqp.Publishing
	keys      []string
	err       error
}

func (m *mockChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if m.err != nil {
		return m.err
	}
	m.keys = append(m.keys, key)
	m.published = append(m.published, msg)
	return nil
}

func TestAMQPPublisherFiltersTypes(t *testing.T) {
	ch := &mockChannel{}
	p := NewAMQPPublisher(ch, "story.chapter_published")
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, Event{Type: TypeStoryViewed, StoryID: "s_1"}))
	require.NoError(t, p.Publish(ctx, Event{Type: TypeChapterPublished, StoryID: "s_1", ChapterID: "c_1"}))

	require.Len(t, ch.published, 1)
	assert.Equal(t, "story.chapter_published", ch.keys[0])
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)

	var got Event
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &got))
	assert.Equal(t, "c_1", got.ChapterID)
}

type recordingPublisher struct {
	events []Event
}

func (r *recordingPublisher) Publish(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return nil
}

func TestMultiJoinsErrors(t *testing.T) {
	rec := &recordingPublisher{}
	failing := NewAMQPPublisher(&mockChannel{err: errors.New("closed")}, "q", TypeStoryDeleted)

	err := Multi{rec, nil, failing}.Publish(context.Background(), Event{Type: TypeStoryDeleted})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")
	require.Len(t, rec.events, 1)
	assert.Equal(t, TypeStoryDeleted, rec.events[0].Type)
	assert.False(t, rec.events[0].Timestamp.IsZero())
}
