package timeline

import (
	"math"
	"testing"
)

func newTestTimeline() *Timeline {
	return New(1920, 1080)
}

func imageClip(t *testing.T, dur float64) *Clip {
	t.Helper()
	return NewImageClip(URLRef("http://assets.test/panel.png"), dur, 1920, 1080)
}

// checkNoOverlap asserts the per-layer invariant: for adjacent clips sorted
// by start, end(i) <= start(i+1).
func checkNoOverlap(t *testing.T, l *Layer) {
	t.Helper()
	for i := 0; i+1 < len(l.Clips); i++ {
		a, b := l.Clips[i], l.Clips[i+1]
		if a.End() > b.Start+1e-9 {
			t.Fatalf("clips %d and %d overlap: [%v,%v) vs [%v,%v)",
				i, i+1, a.Start, a.End(), b.Start, b.End())
		}
	}
}

func TestInsertIntoEmptyLayerIsDeterministic(t *testing.T) {
	tl := newTestTimeline()
	l := tl.AddLayer("panels")

	idx, err := tl.InsertAt(l.ID, imageClip(t, 2), 1.234)
	if err != nil {
		t.Fatalf("InsertAt failed: %v", err)
	}
	if idx != 0 {
		t.Errorf("expected index 0, got %d", idx)
	}
	if got := l.Clips[0].Start; math.Abs(got-1.2) > 1e-9 {
		t.Errorf("expected start snapped to 1.2, got %v", got)
	}
}

func TestInsertSnapsImageDuration(t *testing.T) {
	tl := newTestTimeline()
	l := tl.AddLayer("panels")

	if _, err := tl.InsertAt(l.ID, imageClip(t, 1.97), 0); err != nil {
		t.Fatalf("InsertAt failed: %v", err)
	}
	if got := l.Clips[0].Duration; math.Abs(got-2.0) > 1e-9 {
		t.Errorf("expected duration snapped to 2.0, got %v", got)
	}

	// A probed audio clip keeps its natural length when placed.
	a := NewAudioClip(URLRef("http://assets.test/voice.mp3"))
	a.Duration = 3.21
	a.DurationKnown = true
	if _, err := tl.InsertAt(l.ID, a, 10); err != nil {
		t.Fatalf("InsertAt failed: %v", err)
	}
	if got := a.Duration; got != 3.21 {
		t.Errorf("audio duration must stay natural, got %v", got)
	}
}

func TestInsertNeverProducesNegativeStart(t *testing.T) {
	tl := newTestTimeline()
	l := tl.AddLayer("panels")

	if _, err := tl.InsertAt(l.ID, imageClip(t, 2), -5); err != nil {
		t.Fatalf("InsertAt failed: %v", err)
	}
	if got := l.Clips[0].Start; got != 0 {
		t.Errorf("expected start clamped to 0, got %v", got)
	}
}

func TestInsertInsideSpanUsesMidpointRule(t *testing.T) {
	tl := newTestTimeline()
	l := tl.AddLayer("panels")

	first := imageClip(t, 2)
	if _, err := tl.InsertAt(l.ID, first, 0); err != nil {
		t.Fatalf("InsertAt failed: %v", err)
	}

	// Drop at t=1.5: inside the first clip, past its midpoint, so the new
	// clip lands after it and is pushed to its end.
	second := imageClip(t, 2)
	idx, err := tl.InsertAt(l.ID, second, 1.5)
	if err != nil {
		t.Fatalf("InsertAt failed: %v", err)
	}
	if idx != 1 {
		t.Errorf("expected second clip at index 1, got %d", idx)
	}
	if got := second.Start; math.Abs(got-2.0) > 1e-9 {
		t.Errorf("expected second clip pushed to 2.0, got %v", got)
	}
	checkNoOverlap(t, l)

	// Drop at t=0.4: inside the first clip, before its midpoint, so the
	// new clip lands in front and the others shift forward.
	third := imageClip(t, 1)
	idx, err = tl.InsertAt(l.ID, third, 0.4)
	if err != nil {
		t.Fatalf("InsertAt failed: %v", err)
	}
	if idx != 0 {
		t.Errorf("expected third clip at index 0, got %d", idx)
	}
	checkNoOverlap(t, l)
	if first.Duration != 2 || second.Duration != 2 || third.Duration != 1 {
		t.Error("repair must never change durations")
	}
}

func TestDragReorderKeepsTotalSpan(t *testing.T) {
	tl := newTestTimeline()
	l := tl.AddLayer("panels")

	a := imageClip(t, 2)
	b := imageClip(t, 3)
	if _, err := tl.InsertAt(l.ID, a, 0); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if _, err := tl.InsertAt(l.ID, b, 2); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	// Drag A to t=4 (inside B's span).
	if _, err := tl.MoveTo(l.ID, 0, 4); err != nil {
		t.Fatalf("MoveTo failed: %v", err)
	}

	checkNoOverlap(t, l)
	if got := l.End(); got < a.Duration+b.Duration-1e-9 {
		t.Errorf("layer span shrank below the sum of durations: %v", got)
	}
	if a.Duration != 2 || b.Duration != 3 {
		t.Error("drag repair must never change durations")
	}
}

func TestMoveEarlierThanPredecessors(t *testing.T) {
	tl := newTestTimeline()
	l := tl.AddLayer("panels")

	a := imageClip(t, 1)
	b := imageClip(t, 1)
	c := imageClip(t, 1)
	for i, cl := range []*Clip{a, b, c} {
		if _, err := tl.InsertAt(l.ID, cl, float64(i*2)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	// Drag the last clip to the very front.
	idx, err := tl.MoveTo(l.ID, 2, 0)
	if err != nil {
		t.Fatalf("MoveTo failed: %v", err)
	}
	if idx != 0 {
		t.Errorf("expected dragged clip at index 0, got %d", idx)
	}
	checkNoOverlap(t, l)
	if l.Clips[0] != c {
		t.Error("dragged clip should now be first")
	}
}

func TestResizeShiftsLaterClipsForward(t *testing.T) {
	tl := newTestTimeline()
	l := tl.AddLayer("panels")

	a := imageClip(t, 2)
	b := imageClip(t, 2)
	if _, err := tl.InsertAt(l.ID, a, 0); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if _, err := tl.InsertAt(l.ID, b, 2); err != nil {
		t.Fatalf("insert b: %v", err)
	}

	if err := tl.ResizeTo(l.ID, 0, 3.5); err != nil {
		t.Fatalf("ResizeTo failed: %v", err)
	}

	checkNoOverlap(t, l)
	if math.Abs(a.Duration-3.5) > 1e-9 {
		t.Errorf("expected duration 3.5, got %v", a.Duration)
	}
	if math.Abs(b.Start-3.5) > 1e-9 {
		t.Errorf("expected b pushed to 3.5, got %v", b.Start)
	}
}

func TestResizeClampsToOneSnapStep(t *testing.T) {
	tl := newTestTimeline()
	l := tl.AddLayer("panels")

	a := imageClip(t, 2)
	if _, err := tl.InsertAt(l.ID, a, 0); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tl.ResizeTo(l.ID, 0, 0.001); err != nil {
		t.Fatalf("ResizeTo failed: %v", err)
	}
	if math.Abs(a.Duration-DefaultSnap) > 1e-9 {
		t.Errorf("expected duration clamped to %v, got %v", DefaultSnap, a.Duration)
	}
}

func TestInvariantHoldsAfterMutationBurst(t *testing.T) {
	tl := newTestTimeline()
	l := tl.AddLayer("panels")

	durations := []float64{2, 1, 3, 0.5, 2.5}
	drops := []float64{0, 0.7, 1.1, 3.3, 0.2}
	for i := range durations {
		if _, err := tl.InsertAt(l.ID, imageClip(t, durations[i]), drops[i]); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	if _, err := tl.MoveTo(l.ID, 1, 6); err != nil {
		t.Fatalf("move: %v", err)
	}
	if err := tl.ResizeTo(l.ID, 0, 4); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if _, err := tl.MoveTo(l.ID, 3, 0); err != nil {
		t.Fatalf("move: %v", err)
	}

	checkNoOverlap(t, l)

	sum := 0.0
	for _, d := range durations {
		sum += d
	}
	total := 0.0
	for _, c := range l.Clips {
		total += c.Duration
	}
	// Snapped durations differ slightly from the inputs, but repair must
	// never have reduced any of them below what was inserted.
	if total < tl.Snap(sum)-1e-9 {
		t.Errorf("durations shrank: inserted ~%v, remaining %v", sum, total)
	}
}

func TestFixOverlapsFallback(t *testing.T) {
	tl := newTestTimeline()
	l := tl.AddLayer("panels")

	// Assemble a deliberately broken layer, then repair.
	l.Clips = []*Clip{
		{ID: "c", Kind: KindImage, Start: 1, Duration: 2, DurationKnown: true},
		{ID: "a", Kind: KindImage, Start: 0, Duration: 2, DurationKnown: true},
		{ID: "b", Kind: KindImage, Start: 0.5, Duration: 1, DurationKnown: true},
	}
	if err := tl.FixOverlaps(l.ID); err != nil {
		t.Fatalf("FixOverlaps failed: %v", err)
	}

	checkNoOverlap(t, l)
	if l.Clips[0].ID != "a" {
		t.Errorf("expected sort by start time, got %q first", l.Clips[0].ID)
	}
}
