package synth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"voice-qa-session/internal/service/synth"
	"voice-qa-session/internal/service/synth/sim"
)

func TestSpeak_CompletesNaturally(t *testing.T) {
	sp := sim.New(10 * time.Millisecond)
	d := synth.NewDriver(sp, zerolog.Nop(), nil)

	if err := d.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sp.Spoken(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("unexpected spoken log: %v", got)
	}
}

func TestCancel_SettlesQuietly(t *testing.T) {
	sp := sim.New(time.Second)
	d := synth.NewDriver(sp, zerolog.Nop(), nil)

	done := make(chan error, 1)
	go func() { done <- d.Speak(context.Background(), "a long question being read aloud") }()

	deadline := time.Now().Add(2 * time.Second)
	for !d.IsSpeaking() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for playback to start")
		}
		time.Sleep(time.Millisecond)
	}
	d.Cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("cancellation must not be an error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Speak did not settle after Cancel")
	}
	if sp.Cancels() != 1 {
		t.Errorf("expected 1 cancel, got %d", sp.Cancels())
	}
}

func TestSpeak_FailureSurfaces(t *testing.T) {
	sp := sim.New(10 * time.Millisecond)
	d := synth.NewDriver(sp, zerolog.Nop(), nil)

	boom := errors.New("synthesis backend down")
	sp.FailNext(boom)

	err := d.Speak(context.Background(), "will fail")
	if !errors.Is(err, boom) {
		t.Errorf("expected synthesis failure surfaced, got %v", err)
	}
}

func TestSpeak_NewUtteranceCancelsPrevious(t *testing.T) {
	sp := sim.New(time.Second)
	d := synth.NewDriver(sp, zerolog.Nop(), nil)

	first := make(chan error, 1)
	go func() { first <- d.Speak(context.Background(), "first") }()

	deadline := time.Now().Add(2 * time.Second)
	for !d.IsSpeaking() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for playback to start")
		}
		time.Sleep(time.Millisecond)
	}

	sp2 := make(chan error, 1)
	go func() { sp2 <- d.Speak(context.Background(), "second") }()

	select {
	case err := <-first:
		if err != nil {
			t.Errorf("interrupted utterance must settle quietly, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first Speak did not settle when superseded")
	}

	d.Cancel()
	<-sp2
	if got := sp.Spoken(); len(got) != 2 {
		t.Errorf("expected both utterances attempted, got %v", got)
	}
}

func TestDing_PlaysCue(t *testing.T) {
	sp := sim.New(time.Millisecond)
	d := synth.NewDriver(sp, zerolog.Nop(), nil)

	if err := d.Ding(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sp.Cues() != 1 {
		t.Errorf("expected 1 cue, got %d", sp.Cues())
	}
}
