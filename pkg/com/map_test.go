package com

import (
	"fmt"
	"sync/atomic"
	"testing"
)

type testClient struct {
	id string
	c  int32
}

func (t *testClient) change(n int) { atomic.AddInt32(&t.c, int32(n)) }

func TestPointerValue(t *testing.T) {
	m := NewMap[string, *testClient]()
	c := testClient{id: "1"}
	m.Put(c.id, &c)
	fc, _ := m.FindBy(func(c *testClient) bool { return c.id == "1" })
	c.change(100)
	fc2, _ := m.Find(fc.id)

	expected := c.c == fc.c && c.c == fc2.c
	if !expected {
		t.Errorf("not expected change, o: %v != %v != %v", c.c, fc.c, fc2.c)
	}
}

func TestGetOrPut(t *testing.T) {
	m := NewMap[string, *testClient]()

	v, loaded := m.GetOrPut("a", func() *testClient { return &testClient{id: "a"} })
	if loaded || v == nil {
		t.Fatalf("expected fresh value, loaded=%v", loaded)
	}
	v2, loaded := m.GetOrPut("a", func() *testClient { return &testClient{id: "dup"} })
	if !loaded || v2 != v {
		t.Errorf("expected the stored value back, got %+v loaded=%v", v2, loaded)
	}
	if m.Len() != 1 {
		t.Errorf("unexpected length %v", m.Len())
	}
}

func TestFindEmptyKey(t *testing.T) {
	m := NewMap[string, *testClient]()
	if _, err := m.Find(""); err != ErrNotFound {
		t.Errorf("empty keys shouldn't be found, got %v", err)
	}
}

func TestHasEmpty(t *testing.T) {
	m := NewMap[string, *testClient]()
	if !m.IsEmpty() || m.Has("1") {
		t.Errorf("fresh map not empty, has=%v", m.Has("1"))
	}
	m.Put("1", &testClient{id: "1"})
	if m.IsEmpty() || !m.Has("1") {
		t.Errorf("stored key not visible, has=%v", m.Has("1"))
	}
}

func TestForEach(t *testing.T) {
	m := NewMap[string, *testClient]()
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("%d", i)
		m.Put(id, &testClient{id: id})
	}
	n := 0
	m.ForEach(func(c *testClient) { n++ })
	if n != 5 {
		t.Errorf("expected 5 elements, got %d", n)
	}
}
