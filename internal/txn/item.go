package txn

import (
	"fmt"
	"reflect"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// Transaction is the capability every value exchanged through a sequencer
// must have: access to its embedded sequence item.
//
// User transactions embed *Item:
//
//	type AluReq struct {
//	    *txn.Item
//	    A, B int
//	}
//
//	req := &AluReq{Item: txn.NewItem(ids, "alu-req")}
type Transaction interface {
	SeqItem() *Item
}

// Link correlates a response with the request it answers.
type Link struct {
	ProducerID string
	ItemID     string
}

// String renders the link as "producer/item".
func (l Link) String() string {
	return fmt.Sprintf("%s/%s", l.ProducerID, l.ItemID)
}

// Item is the sequence item embedded in every transaction.
//
// The id is assigned at construction and never changes. The producer id is
// stamped by the sequence that sends the item; the link is set on response
// items by LinkResponse.
type Item struct {
	id   string
	name string

	mu         sync.Mutex
	producerID string
	link       *Link

	selected  *Signal
	released  *Signal
	completed *Signal
}

// NewItem creates an item whose id is drawn from src.
func NewItem(src IDSource, name string) *Item {
	return NewItemWithID(src.NextID(), name)
}

// NewItemWithID creates an item with an explicit id.
// Names are NFC normalized so equal-looking names compare equal in traces.
func NewItemWithID(id, name string) *Item {
	return &Item{
		id:        id,
		name:      norm.NFC.String(name),
		selected:  NewSignal("selected"),
		released:  NewSignal("released"),
		completed: NewSignal("completed"),
	}
}

// SeqItem implements Transaction. A nil *Item returns nil, which the
// exchange reports as a type mismatch.
func (it *Item) SeqItem() *Item {
	return it
}

// ID returns the unique item id.
func (it *Item) ID() string { return it.id }

// Name returns the display name.
func (it *Item) Name() string { return it.name }

// ProducerID returns the id of the sequence that sent this item, or "".
func (it *Item) ProducerID() string {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.producerID
}

// SetProducerID stamps the sending sequence's id.
func (it *Item) SetProducerID(id string) {
	it.mu.Lock()
	it.producerID = id
	it.mu.Unlock()
}

// LinkResponse marks this item as the response to req. It reports false
// and leaves any existing link unchanged if req carries no item.
func (it *Item) LinkResponse(req Transaction) bool {
	r, ok := ItemOf(req)
	if !ok {
		return false
	}
	l := Link{ProducerID: r.ProducerID(), ItemID: r.ID()}
	it.mu.Lock()
	it.link = &l
	it.mu.Unlock()
	return true
}

// Link returns the response link and whether one is set.
func (it *Item) Link() (Link, bool) {
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.link == nil {
		return Link{}, false
	}
	return *it.link, true
}

// CorrelationID is the id a response is retrieved by: the linked request
// id when linked, otherwise the item's own id.
func (it *Item) CorrelationID() string {
	if l, ok := it.Link(); ok {
		return l.ItemID
	}
	return it.id
}

// Selected fires when the consumer picks the item.
func (it *Item) Selected() *Signal { return it.selected }

// Released fires when the producer hands the populated item to the consumer.
func (it *Item) Released() *Signal { return it.released }

// Completed fires when the consumer finishes the item.
func (it *Item) Completed() *Signal { return it.completed }

func (it *Item) String() string {
	return fmt.Sprintf("%s(%s)", it.name, it.id)
}

// ItemOf returns the sequence item behind t, or false if t is nil, a
// typed-nil pointer, or a value whose embedded item was never set.
func ItemOf(t Transaction) (*Item, bool) {
	if t == nil {
		return nil, false
	}
	if v := reflect.ValueOf(t); v.Kind() == reflect.Pointer && v.IsNil() {
		return nil, false
	}
	it := t.SeqItem()
	if it == nil || it.selected == nil {
		return nil, false
	}
	return it, true
}
