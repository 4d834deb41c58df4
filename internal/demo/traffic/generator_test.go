package traffic

import (
	"reflect"
	"testing"
)

func TestGeneratorDeterministicForSeed(t *testing.T) {
	g1 := NewGenerator(42, "driver-a", 10, true)
	g2 := NewGenerator(42, "driver-a", 10, true)

	for i := 0; i < 20; i++ {
		q1 := g1.NextQuestion()
		q2 := g2.NextQuestion()
		if !reflect.DeepEqual(q1, q2) {
			t.Fatalf("question %d differs: %#v vs %#v", i, q1, q2)
		}
	}
}

func TestGeneratorSkipsAdversarialWhenDisabled(t *testing.T) {
	g := NewGenerator(7, "driver-b", 3, false)

	sessions := map[string]struct{}{}
	for i := 0; i < 500; i++ {
		q := g.NextQuestion()
		if q.Kind == KindAdversarial {
			t.Fatalf("question %d is adversarial: %q", i, q.Text)
		}
		if q.Text == "" {
			t.Fatalf("question %d has no text", i)
		}
		if _, ok := sessions[q.SessionID]; ok {
			t.Fatalf("duplicate session id: %s", q.SessionID)
		}
		sessions[q.SessionID] = struct{}{}
	}
}
