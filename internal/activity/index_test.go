package activity

import "testing"

func TestSubscriberIndex(t *testing.T) {
	t.Parallel()

	idx := NewSubscriberIndex()
	idx.Add(1)
	idx.Add(2)
	idx.Add(2) // duplicate

	if idx.Len() != 2 {
		t.Fatalf("Len = %d, want 2", idx.Len())
	}

	idx.Remove(1)
	if idx.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after Remove", idx.Len())
	}

	subs := idx.Subscribers()
	if len(subs) != 1 || subs[0] != 2 {
		t.Fatalf("Subscribers = %v, want [2]", subs)
	}
}

func TestSubscriberIndexReplace(t *testing.T) {
	t.Parallel()

	idx := NewSubscriberIndex()
	idx.Add(1)
	idx.Add(2)

	idx.Replace([]int64{3, 4, 5})
	if idx.Len() != 3 {
		t.Fatalf("Len = %d, want 3 after Replace", idx.Len())
	}
	for _, s := range idx.Subscribers() {
		if s < 3 || s > 5 {
			t.Fatalf("stale subscriber %d after Replace", s)
		}
	}
}
