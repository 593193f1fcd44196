package feed

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder appends "<name>:<tag>:<sequence>" to a shared log.
type recorder struct {
	name string
	log  *[]string
	got  []Notification
	err  error
	hook func()
}

func (r *recorder) Update(_ context.Context, n Notification) error {
	r.got = append(r.got, n)
	if r.log != nil {
		*r.log = append(*r.log, fmt.Sprintf("%s:%s:%d", r.name, n.Tag, n.Sequence))
	}
	if r.hook != nil {
		r.hook()
	}
	return r.err
}

func TestBusDeliversInAttachmentOrder(t *testing.T) {
	var log []string
	a := &recorder{name: "a", log: &log}
	b := &recorder{name: "b", log: &log}

	bus := NewBus().Attach(a).Attach(b)
	require.NoError(t, bus.Notify(context.Background(), Notification{Tag: TagProduct}))
	require.NoError(t, bus.Notify(context.Background(), Notification{Tag: TagProduct, Sequence: 1}))

	assert.Equal(t, []string{"a:Product:0", "b:Product:0", "a:Product:1", "b:Product:1"}, log)
}

func TestBusDuplicateAttachDeliversTwice(t *testing.T) {
	a := &recorder{name: "a"}
	bus := NewBus().Attach(a).Attach(a)
	require.NoError(t, bus.Notify(context.Background(), Notification{Tag: TagHeader}))

	assert.Len(t, a.got, 2)
	assert.Equal(t, 2, bus.Len())
}

func TestBusDetach(t *testing.T) {
	a := &recorder{name: "a"}
	b := &recorder{name: "b"}
	bus := NewBus().Attach(a).Attach(b).Attach(a)

	bus.Detach(a)
	assert.Equal(t, 1, bus.Len())
	require.NoError(t, bus.Notify(context.Background(), Notification{Tag: TagProduct}))
	assert.Empty(t, a.got)
	assert.Len(t, b.got, 1)

	// detaching an unknown consumer is a no-op
	bus.Detach(&recorder{name: "stranger"})
	assert.Equal(t, 1, bus.Len())
}

func TestBusSnapshotsRegistryDuringNotify(t *testing.T) {
	bus := NewBus()
	late := &recorder{name: "late"}
	b := &recorder{name: "b"}
	a := &recorder{name: "a"}
	a.hook = func() {
		bus.Detach(b)
		bus.Attach(late)
	}
	bus.Attach(a).Attach(b)

	require.NoError(t, bus.Notify(context.Background(), Notification{Tag: TagProduct}))
	assert.Len(t, b.got, 1, "b was in the snapshot")
	assert.Empty(t, late.got, "late was attached after the snapshot")

	a.hook = nil
	require.NoError(t, bus.Notify(context.Background(), Notification{Tag: TagProduct, Sequence: 1}))
	assert.Len(t, b.got, 1)
	assert.Len(t, late.got, 1)
}

func TestBusCallsEveryConsumerAndJoinsErrors(t *testing.T) {
	errA := fmt.Errorf("a failed")
	errC := fmt.Errorf("c failed")
	a := &recorder{name: "a", err: errA}
	b := &recorder{name: "b"}
	c := &recorder{name: "c", err: errC}

	err := NewBus().Attach(a).Attach(b).Attach(c).
		Notify(context.Background(), Notification{Tag: TagProduct})
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errC)
	assert.Len(t, b.got, 1)
	assert.Len(t, c.got, 1)
}
