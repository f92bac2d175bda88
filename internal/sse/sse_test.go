package sse_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"rootfind/internal/sse"
)

func drain(ch <-chan string) []string {
	var out []string
	for msg := range ch {
		out = append(out, msg)
	}
	return out
}

func TestHub_PublishSubscribe(t *testing.T) {
	h := sse.NewHub(0)
	ch1, cancel1 := h.Subscribe("run")
	ch2, cancel2 := h.Subscribe("run")
	defer cancel1()
	defer cancel2()

	h.Publish("run", "hello")
	h.Publish("other", "ignored")

	assert.Equal(t, "hello", <-ch1)
	assert.Equal(t, "hello", <-ch2)
	assert.Empty(t, ch1)
}

func TestHub_Unsubscribe(t *testing.T) {
	h := sse.NewHub(0)
	ch, cancel := h.Subscribe("run")
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "channel must be closed after unsubscribe")

	cancel()
	h.Publish("run", "after")
}

func TestHub_Close(t *testing.T) {
	h := sse.NewHub(0)
	ch, cancel := h.Subscribe("run")

	h.Publish("run", "last")
	h.Close("run")

	assert.Equal(t, []string{"last"}, drain(ch))
	cancel()

	h.Publish("run", "after close")
	h.Close("run")
}

func TestHub_ReplayForLateSubscriber(t *testing.T) {
	h := sse.NewHub(0)
	h.Publish("run", "start")
	h.Publish("run", "iter")

	live, cancel := h.Subscribe("run")
	defer cancel()
	h.Publish("run", "done")
	h.Close("run")

	assert.Equal(t, []string{"start", "iter", "done"}, drain(live))

	late, _ := h.Subscribe("run")
	assert.Equal(t, []string{"start", "iter", "done"}, drain(late),
		"a finished run is replayed from the beginning")
}

func TestHub_DropsWhenFull(t *testing.T) {
	h := sse.NewHub(0)
	ch, cancel := h.Subscribe("run")
	defer cancel()

	for i := 0; i < 1000; i++ {
		h.Publish("run", "x")
	}
	assert.Equal(t, cap(ch), len(ch))

	late, lateCancel := h.Subscribe("run")
	defer lateCancel()
	assert.Equal(t, 1000, len(late), "history is kept in full")
}

func TestHub_Retention(t *testing.T) {
	h := sse.NewHub(time.Millisecond)
	h.Publish("old", "x")
	h.Close("old")
	time.Sleep(5 * time.Millisecond)

	h.Publish("new", "y")
	h.Close("new")
	assert.Equal(t, 1, h.Len(), "expired topics are dropped on the next Close")

	ch, cancel := h.Subscribe("old")
	defer cancel()
	assert.Empty(t, ch, "expired history is gone")
}
