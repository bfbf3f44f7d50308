package action

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribe_DuplicateNameFails(t *testing.T) {
	d := NewDispatcher(testLogger())

	require.NoError(t, d.Subscribe("kitchen", func(item ResultItem) error { return nil }))

	err := d.Subscribe("kitchen", func(item ResultItem) error { return nil })
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateSubscription)
}

func TestSubscribe_AfterUnsubscribe(t *testing.T) {
	d := NewDispatcher(testLogger())

	require.NoError(t, d.Subscribe("kitchen", func(item ResultItem) error { return nil }))
	d.Unsubscribe("kitchen")
	assert.NoError(t, d.Subscribe("kitchen", func(item ResultItem) error { return nil }))
}

func TestUnsubscribe_UnknownNameIsNoOp(t *testing.T) {
	d := NewDispatcher(testLogger())
	d.Unsubscribe("never-subscribed")
}

func TestPublish_NoSubscriberDropsItem(t *testing.T) {
	d := NewDispatcher(testLogger())
	d.publish("kitchen", SpeakItem{Message: "hello"})
}

func TestPublish_CallbackErrorIsSwallowed(t *testing.T) {
	d := NewDispatcher(testLogger())
	require.NoError(t, d.Subscribe("kitchen", func(item ResultItem) error {
		return errors.New("transport gone")
	}))

	d.publish("kitchen", SpeakItem{Message: "hello"})
}
