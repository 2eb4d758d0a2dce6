package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"mathengine/internal/models"
)

type fakeScheduler struct {
	scheduled []models.Work
	cancelled []string
	err       error
}

func (f *fakeScheduler) Schedule(ctx context.Context, w models.Work) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled = append(f.scheduled, w)
	return nil
}

func (f *fakeScheduler) CancelAllTagged(ctx context.Context, tag string) error {
	f.cancelled = append(f.cancelled, tag)
	return nil
}

type recordingListener struct {
	name   string
	events *[]string
	cancel int
}

func (r *recordingListener) OnPendingChanged(p []models.Operation) {
	*r.events = append(*r.events, r.name+":pending")
}

func (r *recordingListener) OnResultsChanged(a []models.Answer) {
	*r.events = append(*r.events, r.name+":results")
}

func (r *recordingListener) OnCancelAll() {
	r.cancel++
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func question(id string, delay int64) models.Question {
	return models.Question{ID: id, FirstOperand: 1, SecondOperand: 1, Operator: models.Add, DelaySeconds: delay}
}

func TestTrackerSubmit(t *testing.T) {
	sched := &fakeScheduler{}
	tr := NewTracker(sched, fixedNow)

	if err := tr.Submit(context.Background(), question("q1", 5)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if got := tr.Summary(); got != (models.Summary{Pending: 1, Completed: 0}) {
		t.Fatalf("Summary() = %+v, want 1 pending", got)
	}
	if len(sched.scheduled) != 1 {
		t.Fatalf("ожидалась одна запланированная работа, получено %d", len(sched.scheduled))
	}
	w := sched.scheduled[0]
	if w.ID != "q1" || w.Tag != WorkTag || !w.NotBefore.Equal(fixedNow().Add(5*time.Second)) {
		t.Errorf("неверная работа: %+v", w)
	}
	op := tr.Pending()[0]
	if !op.EndTime.Equal(op.StartTime.Add(5 * time.Second)) {
		t.Errorf("EndTime = %v, want start + 5s", op.EndTime)
	}
}

func TestTrackerOnResult(t *testing.T) {
	tr := NewTracker(&fakeScheduler{}, fixedNow)
	_ = tr.Submit(context.Background(), question("q1", 5))

	if !tr.OnResult("q1", "1.00 + 1.00 = 2.00") {
		t.Fatal("OnResult() = false, want true")
	}
	if got := tr.Summary(); got != (models.Summary{Pending: 0, Completed: 1}) {
		t.Fatalf("Summary() = %+v", got)
	}
	if got := tr.Completed()[0].Result; got != "1.00 + 1.00 = 2.00" {
		t.Errorf("Result = %q", got)
	}

	// повторная доставка ничего не меняет
	if tr.OnResult("q1", "1.00 + 1.00 = 2.00") {
		t.Error("повторный OnResult() = true, want false")
	}
	if got := tr.Summary(); got != (models.Summary{Pending: 0, Completed: 1}) {
		t.Fatalf("Summary() после повтора = %+v", got)
	}
}

func TestTrackerUnknownResultIgnored(t *testing.T) {
	tr := NewTracker(&fakeScheduler{}, fixedNow)
	_ = tr.Submit(context.Background(), question("q1", 5))

	tr.OnResult("missing", "x")

	if got := tr.Summary(); got != (models.Summary{Pending: 1, Completed: 0}) {
		t.Fatalf("Summary() = %+v", got)
	}
}

func TestTrackerCancelAll(t *testing.T) {
	sched := &fakeScheduler{}
	tr := NewTracker(sched, fixedNow)
	_ = tr.Submit(context.Background(), question("q1", 5))
	_ = tr.Submit(context.Background(), question("q2", 5))
	tr.OnResult("q1", "done")

	if err := tr.CancelAll(context.Background()); err != nil {
		t.Fatalf("CancelAll() error = %v", err)
	}
	if got := tr.Summary(); got != (models.Summary{Pending: 0, Completed: 1}) {
		t.Fatalf("Summary() = %+v", got)
	}
	if len(sched.cancelled) != 1 || sched.cancelled[0] != WorkTag {
		t.Errorf("cancelled = %v", sched.cancelled)
	}

	// поздний результат после отмены отбрасывается
	tr.OnResult("q2", "late")
	if got := tr.Summary(); got != (models.Summary{Pending: 0, Completed: 1}) {
		t.Fatalf("Summary() после позднего результата = %+v", got)
	}
}

func TestTrackerDuplicateID(t *testing.T) {
	tr := NewTracker(&fakeScheduler{}, fixedNow)
	_ = tr.Submit(context.Background(), question("q1", 5))

	if err := tr.Submit(context.Background(), question("q1", 5)); !errors.Is(err, ErrDuplicateQuestion) {
		t.Fatalf("Submit(duplicate) error = %v", err)
	}

	tr.OnResult("q1", "done")
	if err := tr.Submit(context.Background(), question("q1", 5)); !errors.Is(err, ErrDuplicateQuestion) {
		t.Fatalf("Submit(completed id) error = %v", err)
	}
}

func TestTrackerScheduleFailureRollsBack(t *testing.T) {
	sched := &fakeScheduler{err: errors.New("store unavailable")}
	tr := NewTracker(sched, fixedNow)

	if err := tr.Submit(context.Background(), question("q1", 5)); err == nil {
		t.Fatal("Submit() error = nil, want error")
	}
	if got := tr.Summary(); got != (models.Summary{}) {
		t.Fatalf("Summary() = %+v, want empty", got)
	}
}

func TestTrackerListenersOrder(t *testing.T) {
	var events []string
	first := &recordingListener{name: "a", events: &events}
	second := &recordingListener{name: "b", events: &events}

	tr := NewTracker(&fakeScheduler{}, fixedNow)
	tr.AddListener(first)
	tr.AddListener(second)

	_ = tr.Submit(context.Background(), question("q1", 0))
	tr.OnResult("q1", "done")

	want := []string{"a:pending", "b:pending", "a:pending", "b:pending", "a:results", "b:results"}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("events = %v, want %v", events, want)
		}
	}

	_ = tr.CancelAll(context.Background())
	if first.cancel != 1 || second.cancel != 1 {
		t.Errorf("OnCancelAll вызван %d/%d раз", first.cancel, second.cancel)
	}

	tr.RemoveListener(first)
	events = events[:0]
	_ = tr.Submit(context.Background(), question("q2", 0))
	if len(events) != 1 || events[0] != "b:pending" {
		t.Errorf("после удаления слушателя events = %v", events)
	}
}

func TestTrackerSnapshotsAreCopies(t *testing.T) {
	tr := NewTracker(&fakeScheduler{}, fixedNow)
	_ = tr.Submit(context.Background(), question("q1", 0))

	p := tr.Pending()
	p[0].Question.ID = "changed"

	if tr.Pending()[0].ID() != "q1" {
		t.Error("изменение снимка повлияло на трекер")
	}
}

func TestTrackerRestore(t *testing.T) {
	tr := NewTracker(&fakeScheduler{}, fixedNow)
	ops := []models.Operation{models.NewOperation(question("q1", 5), fixedNow())}
	answers := []models.Answer{{ID: "q0", Result: "0"}}

	tr.Restore(ops, answers)
	tr.Restore(ops, answers)

	if got := tr.Summary(); got != (models.Summary{Pending: 1, Completed: 1}) {
		t.Fatalf("Summary() = %+v", got)
	}
	if err := tr.Submit(context.Background(), question("q0", 1)); !errors.Is(err, ErrDuplicateQuestion) {
		t.Errorf("Submit(restored completed id) error = %v", err)
	}
}
