package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/johnwards/flyoutsync/internal/domain"
)

func TestJobClaimDue(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	due, err := s.Jobs.Enqueue(ctx, "sync.retry", []byte(`{"n":1}`), base)
	if err != nil {
		t.Fatalf("enqueue due: %v", err)
	}
	later, err := s.Jobs.Enqueue(ctx, "sync.retry", []byte(`{"n":2}`), base.Add(time.Minute))
	if err != nil {
		t.Fatalf("enqueue later: %v", err)
	}

	claimed, err := s.Jobs.ClaimDue(ctx, base.Add(time.Second), 10)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != due.ID {
		t.Fatalf("claimed = %+v, want only %s", claimed, due.ID)
	}
	if claimed[0].Status != domain.JobRunning || claimed[0].Attempts != 1 {
		t.Errorf("claimed job = %+v", claimed[0])
	}
	if string(claimed[0].Payload) != `{"n":1}` {
		t.Errorf("payload = %s", claimed[0].Payload)
	}

	// Already running jobs are not handed out again.
	again, err := s.Jobs.ClaimDue(ctx, base.Add(time.Second), 10)
	if err != nil {
		t.Fatalf("claim again: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("claimed running job again: %+v", again)
	}

	if err := s.Jobs.Complete(ctx, due.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, err := s.Jobs.Get(ctx, due.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.JobDone {
		t.Errorf("status = %s, want done", got.Status)
	}

	pending, err := s.Jobs.List(ctx, domain.JobPending, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != later.ID {
		t.Errorf("pending = %+v", pending)
	}
}

func TestJobRequeueRunning(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

	j, err := s.Jobs.Enqueue(ctx, "sync.retry", []byte(`{}`), at)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := s.Jobs.ClaimDue(ctx, at, 1); err != nil {
		t.Fatalf("claim: %v", err)
	}

	n, err := s.Jobs.RequeueRunning(ctx)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if n != 1 {
		t.Errorf("requeued %d, want 1", n)
	}

	claimed, err := s.Jobs.ClaimDue(ctx, at, 1)
	if err != nil {
		t.Fatalf("claim after requeue: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != j.ID || claimed[0].Attempts != 2 {
		t.Errorf("claimed after requeue = %+v", claimed)
	}

	if err := s.Jobs.Fail(ctx, j.ID, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ := s.Jobs.Get(ctx, j.ID)
	if got.Status != domain.JobFailed || got.LastError != "boom" {
		t.Errorf("failed job = %+v", got)
	}
}
