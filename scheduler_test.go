package courier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManualScheduler_TickDeliversAdvancingTime(t *testing.T) {
	s := NewManualScheduler()
	ticker := s.NewTicker(time.Minute)
	defer ticker.Stop()

	received := make(chan time.Time, 2)
	go func() {
		for i := 0; i < 2; i++ {
			received <- <-ticker.C()
		}
	}()

	s.Tick()
	s.Tick()
	first, second := <-received, <-received
	assert.Equal(t, time.Minute, second.Sub(first))
}

func TestManualScheduler_StoppedTickerDoesNotBlock(t *testing.T) {
	s := NewManualScheduler()
	ticker := s.NewTicker(time.Second)
	require.Equal(t, 1, s.Tickers())

	ticker.Stop()
	ticker.Stop()
	assert.Equal(t, 0, s.Tickers())

	done := make(chan struct{})
	go func() {
		s.Tick()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Tick blocked on a stopped ticker")
	}
}

func TestSystemScheduler_Ticks(t *testing.T) {
	ticker := SystemScheduler().NewTicker(time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("no tick received")
	}
}
