package txn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type aluReq struct {
	*Item
	A, B int
}

type stubIDs struct{ next int }

func (s *stubIDs) NextID() string {
	s.next++
	return string(rune('0' + s.next))
}

func TestItem_NewAssignsIdentity(t *testing.T) {
	ids := &stubIDs{}

	first := NewItem(ids, "req")
	second := NewItem(ids, "req")

	assert.Equal(t, "1", first.ID())
	assert.Equal(t, "2", second.ID())
	assert.Equal(t, "req", first.Name())
	assert.Empty(t, first.ProducerID())
}

func TestItem_NameIsNFCNormalized(t *testing.T) {
	decomposed := NewItemWithID("1", "cafe\u0301")
	composed := NewItemWithID("2", "caf\u00e9")

	assert.Equal(t, composed.Name(), decomposed.Name())
}

func TestItem_LinkResponse(t *testing.T) {
	req := NewItemWithID("42", "req")
	req.SetProducerID("seq-A")

	rsp := NewItemWithID("43", "rsp")
	_, linked := rsp.Link()
	require.False(t, linked)
	assert.Equal(t, "43", rsp.CorrelationID(), "unlinked item correlates by its own id")

	require.True(t, rsp.LinkResponse(req))

	link, linked := rsp.Link()
	require.True(t, linked)
	assert.Equal(t, Link{ProducerID: "seq-A", ItemID: "42"}, link)
	assert.Equal(t, "42", rsp.CorrelationID())
	assert.Equal(t, "seq-A/42", link.String())
}

func TestItem_LinkResponseRejectsMissingItem(t *testing.T) {
	var nilReq *aluReq
	req := NewItemWithID("42", "req")
	rsp := NewItemWithID("43", "rsp")
	require.True(t, rsp.LinkResponse(req))

	for name, bad := range map[string]Transaction{
		"nil interface":         nil,
		"typed nil pointer":     nilReq,
		"missing embedded item": &aluReq{},
	} {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, rsp.LinkResponse(bad))
			})
			link, linked := rsp.Link()
			require.True(t, linked)
			assert.Equal(t, "42", link.ItemID, "existing link is kept")
		})
	}
}

func TestItemOf(t *testing.T) {
	var nilReq *aluReq

	tests := []struct {
		name string
		in   Transaction
		ok   bool
	}{
		{name: "nil interface", in: nil, ok: false},
		{name: "typed nil pointer", in: nilReq, ok: false},
		{name: "missing embedded item", in: &aluReq{}, ok: false},
		{name: "zero item", in: &Item{}, ok: false},
		{name: "bare item", in: NewItemWithID("1", "x"), ok: true},
		{name: "embedded item", in: &aluReq{Item: NewItemWithID("2", "alu"), A: 1, B: 5}, ok: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, ok := ItemOf(tt.in)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.NotNil(t, it)
			}
		})
	}
}

func TestUUIDv7Source_Unique(t *testing.T) {
	src := UUIDv7Source{}
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := src.NextID()
		assert.Len(t, id, 36)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
