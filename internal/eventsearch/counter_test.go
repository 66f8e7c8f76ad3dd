package eventsearch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tsgate/internal/storemodel"
)

func TestParentEventCounter_AdmitsUpToLimit(t *testing.T) {
	c := NewParentEventCounter()
	parent := storemodel.EventId("p1")

	require.True(t, c.Admit(parent, "c1", 2))
	require.True(t, c.Admit(parent, "c2", 2))
	require.False(t, c.Admit(parent, "c3", 2))
}

func TestParentEventCounter_SuppressesCappedEventsChildren(t *testing.T) {
	c := NewParentEventCounter()
	parent := storemodel.EventId("p1")

	require.True(t, c.Admit(parent, "c1", 1))
	require.False(t, c.Admit(parent, "c2", 1))

	// c2 was denied as a child of the capped parent; its own descendants
	// must also be denied.
	require.False(t, c.Admit("c2", "grandchild", 10))
}

func TestParentEventCounter_RootEventsAlwaysAdmitted(t *testing.T) {
	c := NewParentEventCounter()
	require.True(t, c.Admit("", "root", 0))
}
