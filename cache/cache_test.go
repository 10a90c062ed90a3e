package cache

import (
	"errors"
	"testing"

	"github.com/use-agent/chatprobe/models"
)

func TestKeyIsStableAndDistinct(t *testing.T) {
	k1 := Key("https://chat.langchain.com", "What is LangGraph?")
	k2 := Key("https://chat.langchain.com", "What is LangGraph?")
	k3 := Key("https://chat.langchain.com", "What is LangSmith?")

	if k1 != k2 {
		t.Error("identical inputs produced different keys")
	}
	if k1 == k3 {
		t.Error("different prompts produced the same key")
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	c := New(4)
	key := Key("https://chat.langchain.com", "q")
	resp := models.NewAnswer("answer", "", 1, nil)

	c.Set(key, resp)

	got, hit := c.Get(key, 60_000)
	if !hit {
		t.Fatal("expected cache hit")
	}
	if got.Text != "answer" {
		t.Errorf("cached text = %q", got.Text)
	}
}

func TestGetDisabledWithZeroMaxAge(t *testing.T) {
	c := New(4)
	key := Key("t", "q")
	c.Set(key, models.NewAnswer("answer", "", 1, nil))

	if _, hit := c.Get(key, 0); hit {
		t.Error("maxAge 0 should bypass the cache")
	}
}

func TestFailureResponsesAreNotCached(t *testing.T) {
	c := New(4)
	key := Key("t", "q")
	c.Set(key, models.NewFailure("chat.langchain.com", errors.New("copy affordance never appeared")))

	if _, hit := c.Get(key, 60_000); hit {
		t.Error("failure-shaped response must not be cached")
	}
}

func TestCapacityEviction(t *testing.T) {
	c := New(2)
	c.Set("a", models.NewAnswer("1", "", 1, nil))
	c.Set("b", models.NewAnswer("2", "", 1, nil))
	c.Set("c", models.NewAnswer("3", "", 1, nil))

	hits := 0
	for _, k := range []string{"a", "b", "c"} {
		if _, hit := c.Get(k, 60_000); hit {
			hits++
		}
	}
	if hits != 2 {
		t.Errorf("expected 2 entries after eviction, got %d", hits)
	}
}
