package intern

import (
	"fmt"
	"testing"

	"github.com/sexpvm/sexpvm/internal/value"
)

func TestInternLaw(t *testing.T) {
	c := New()
	a := value.NewString([]byte("shared"))
	b := value.NewString([]byte("shared"))
	ca, installed := c.Add(a)
	if !installed {
		t.Fatal("first insert should install")
	}
	cb, installed := c.Add(b)
	if installed {
		t.Fatal("second insert with equal content should not install")
	}
	if ca != cb {
		t.Fatal("content-equal strings must share identity once interned")
	}
}

func TestRemoveThenReAdd(t *testing.T) {
	c := New()
	s := value.NewString([]byte("ghost"))
	canon, _ := c.Add(s)
	c.Remove(canon)
	if _, found := c.LookupBytes(value.TagString, []byte("ghost")); found {
		t.Fatal("removed entry should not be found")
	}
	s2 := value.NewString([]byte("ghost"))
	canon2, installed := c.Add(s2)
	if !installed {
		t.Fatal("after removal, re-adding equal content should install fresh")
	}
	if canon2 == canon {
		t.Fatal("should be a distinct object from the removed one")
	}
}

func TestSurvivesManyRehashes(t *testing.T) {
	c := New()
	var kept []value.Obj
	for i := 0; i < 5000; i++ {
		s := value.NewString([]byte(fmt.Sprintf("k%d", i)))
		canon, _ := c.Add(s)
		kept = append(kept, canon)
	}
	for i, o := range kept {
		want := fmt.Sprintf("k%d", i)
		got, found := c.LookupBytes(value.TagString, []byte(want))
		if !found || got != o {
			t.Fatalf("entry %d lost across rehashes", i)
		}
	}
}

func TestGensymUnique(t *testing.T) {
	c := New()
	var counter uint64
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		sym := c.Gensym("tmp-", &counter)
		name := string(sym.Bytes)
		if seen[name] {
			t.Fatalf("duplicate gensym name %q", name)
		}
		seen[name] = true
	}
}
