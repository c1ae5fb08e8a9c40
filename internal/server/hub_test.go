package server

import (
	"strconv"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jonboulle/clockwork"

	"github.com/region23/servicedesk/internal/testutils"
)

func TestHub_RegisterRespectsLimit(t *testing.T) {
	cfg := DefaultHubConfig()
	cfg.MaxClients = 3
	h := NewHub(cfg, clockwork.NewFakeClockAt(testutils.Epoch), testutils.SetupTestLogger())

	var (
		wg       sync.WaitGroup
		accepted atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &client{id: strconv.Itoa(i), send: make(chan []byte, 1), hub: h}
			if h.register(c) {
				accepted.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if got := accepted.Load(); got != 3 {
		t.Errorf("accepted = %d, want 3", got)
	}
	if h.Len() != 3 {
		t.Errorf("Len() = %d, want 3", h.Len())
	}

	h.Close()
	if h.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", h.Len())
	}
	if !h.register(&client{id: "late", send: make(chan []byte, 1), hub: h}) {
		t.Error("register after Close rejected")
	}
}
