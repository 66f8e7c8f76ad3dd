package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	"tsgate/internal/storemodel"
)

func TestBuild_RejectsUnknownKind(t *testing.T) {
	_, err := Build(map[string]storemodel.FilterParam{
		"notAKind": {Values: []string{"x"}},
	})
	require.Error(t, err)
}

func TestPipeline_MessageTypeFilter(t *testing.T) {
	p, err := Build(map[string]storemodel.FilterParam{
		string(KindMessageType): {Conjunct: false, Values: []string{"heartbeat", "order"}},
	})
	require.NoError(t, err)
	require.False(t, p.NeedsBody())

	el := MessageElement{Message: storemodel.Message{DecodedType: "order"}}
	require.True(t, p.Apply(el))

	el2 := MessageElement{Message: storemodel.Message{DecodedType: "ping"}}
	require.False(t, p.Apply(el2))
}

func TestPipeline_NegativeFilter(t *testing.T) {
	p, err := Build(map[string]storemodel.FilterParam{
		string(KindMessageType): {Negative: true, Values: []string{"heartbeat"}},
	})
	require.NoError(t, err)

	el := MessageElement{Message: storemodel.Message{DecodedType: "heartbeat"}}
	require.False(t, p.Apply(el))

	el2 := MessageElement{Message: storemodel.Message{DecodedType: "order"}}
	require.True(t, p.Apply(el2))
}

func TestPipeline_ConjunctRequiresAllSubstrings(t *testing.T) {
	p, err := Build(map[string]storemodel.FilterParam{
		string(KindEventText): {Conjunct: true, Values: []string{"login", "failure"}},
	})
	require.NoError(t, err)
	require.True(t, p.NeedsBody())

	el := EventElement{Event: storemodel.SingleEvent{Content: &storemodel.EventContent{Name: "login failure event"}}}
	require.True(t, p.Apply(el))

	el2 := EventElement{Event: storemodel.SingleEvent{Content: &storemodel.EventContent{Name: "login success event"}}}
	require.False(t, p.Apply(el2))
}

func TestPipeline_VacuousWhenElementLacksDimension(t *testing.T) {
	p, err := Build(map[string]storemodel.FilterParam{
		string(KindMessageType): {Values: []string{"order"}},
	})
	require.NoError(t, err)

	el := EventElement{Event: storemodel.SingleEvent{Id: "e1"}}
	require.True(t, p.Apply(el))
}

func TestPipeline_AttachedEventIdsRequiresSuperset(t *testing.T) {
	p, err := Build(map[string]storemodel.FilterParam{
		string(KindAttachedEventIds): {Conjunct: true, Values: []string{"e1", "e2"}},
	})
	require.NoError(t, err)

	el := MessageElement{AttachedEvtIds: []string{"e1", "e2", "e3"}}
	require.True(t, p.Apply(el))

	el2 := MessageElement{AttachedEvtIds: []string{"e1"}}
	require.False(t, p.Apply(el2))
}
