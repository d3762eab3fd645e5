package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathlog/api"
)

func TestStore_ShowReplacesCurrent(t *testing.T) {
	store := NewStore(nil)

	store.Show("sid", "first", KindError)
	store.Show("sid", "second", KindSuccess)

	slot := store.Current("sid")
	assert.True(t, slot.Visible)
	assert.Equal(t, "second", slot.Message)
	assert.Equal(t, KindSuccess, slot.Kind)
}

func TestStore_HideKeepsMessage(t *testing.T) {
	store := NewStore(nil)

	store.Show("sid", "saved", KindSuccess)
	store.Hide("sid")

	slot := store.Current("sid")
	assert.False(t, slot.Visible)
	// The text stays so the dismiss animation is not rendered empty.
	assert.Equal(t, "saved", slot.Message)
}

func TestStore_HideWithoutShow(t *testing.T) {
	store := NewStore(nil)
	store.Hide("sid")
	assert.Equal(t, Slot{}, store.Current("sid"))
}

func TestStore_SlotsAreSessionScoped(t *testing.T) {
	store := NewStore(nil)

	store.Show("a", "for a", KindError)

	assert.Equal(t, "for a", store.Current("a").Message)
	assert.Empty(t, store.Current("b").Message)
}

func TestStore_IgnoresEmptySession(t *testing.T) {
	store := NewStore(nil)
	store.Show("", "dropped", KindError)
	assert.Equal(t, Slot{}, store.Current(""))
}

func TestStore_NotifierUsesContextSession(t *testing.T) {
	store := NewStore(nil)
	ctx := api.WithSessionID(context.Background(), "sid")

	store.Error(ctx, "error_network")
	slot := store.Current("sid")
	assert.True(t, slot.Visible)
	assert.Equal(t, "error_network", slot.Message)
	assert.Equal(t, KindError, slot.Kind)

	store.Success(ctx, "toast_job_created")
	assert.Equal(t, KindSuccess, store.Current("sid").Kind)
}

func TestStore_PublishesToHub(t *testing.T) {
	hub := NewHub()
	store := NewStore(hub)

	_, events := hub.Subscribe("sid")

	store.Show("sid", "saved", KindSuccess)

	select {
	case event := <-events:
		assert.Equal(t, "saved", event.Message)
		assert.Equal(t, KindSuccess, event.Kind)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestHub_DeliveryIsSessionScoped(t *testing.T) {
	hub := NewHub()

	idA, eventsA := hub.Subscribe("a")
	_, eventsB := hub.Subscribe("b")
	require.Equal(t, 2, hub.Subscribers())

	hub.Publish("a", Slot{Visible: true, Message: "only a", Kind: KindError})

	select {
	case event := <-eventsA:
		assert.Equal(t, "only a", event.Message)
	case <-time.After(time.Second):
		t.Fatal("no event for session a")
	}

	select {
	case event := <-eventsB:
		t.Fatalf("session b got %q", event.Message)
	case <-time.After(20 * time.Millisecond):
	}

	hub.Unsubscribe(idA)
	assert.Equal(t, 1, hub.Subscribers())
}
