// SPDX-License-Identifier: GPL-3.0-or-later

package cmdqueue

import "testing"

func TestPushPopOrder(t *testing.T) {
	q := New(4)
	q.Push(Command{Type: Write, Stream: 0, Data: []byte("a")})
	q.Push(Command{Type: Write, Stream: 0, Data: []byte("b")})
	q.Push(Command{Type: Close, Stream: 0, Fin: true})

	first, ok := q.Pop()
	if !ok || first.Type != Write || string(first.Data) != "a" {
		t.Fatalf("first = %+v, ok=%v", first, ok)
	}
	second, ok := q.Pop()
	if !ok || string(second.Data) != "b" {
		t.Fatalf("second = %+v, ok=%v", second, ok)
	}
	third, ok := q.Pop()
	if !ok || third.Type != Close || !third.Fin {
		t.Fatalf("third = %+v, ok=%v", third, ok)
	}
}

func TestPushCopiesData(t *testing.T) {
	q := New(1)
	buf := []byte("mutable")
	q.Push(Command{Type: Write, Data: buf})
	buf[0] = 'X'

	cmd, _ := q.Pop()
	if string(cmd.Data) != "mutable" {
		t.Fatalf("Data was aliased: %q", cmd.Data)
	}
}

func TestStopDrainsThenClosed(t *testing.T) {
	q := New(2)
	q.Push(Command{Type: Write, Data: []byte("x")})
	q.Stop()

	if _, ok := q.Pop(); !ok {
		t.Fatal("expected queued command to still be delivered after Stop")
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected ok=false once drained")
	}
}
