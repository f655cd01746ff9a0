package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"provcore/pkg/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRunInTransactionRollsBackOnError(t *testing.T) {
	store := NewStore("admin", nil)
	sentinel := errors.New("boom")

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.CreateManagerRequest(domain.ManagerRequest{Requester: "alice"}); err != nil {
			return err
		}
		if err := tx.GrantRole("alice"); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if _, ok := store.GetManagerRequest("alice"); ok {
		t.Fatalf("request survived a rolled back transaction")
	}
	if store.IsManager("alice") {
		t.Fatalf("role survived a rolled back transaction")
	}
}

func TestCreateManagerRequestBlocksResubmission(t *testing.T) {
	store := NewStore("admin", nil)
	ctx := context.Background()

	submit := func() error {
		_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.CreateManagerRequest(domain.ManagerRequest{Requester: "alice", InformationHash: "h1"})
			return err
		})
		return err
	}
	if err := submit(); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	if err := submit(); !errors.Is(err, domain.ErrAlreadyRequested) {
		t.Fatalf("expected ErrAlreadyRequested, got %v", err)
	}
	// A denied request still blocks resubmission.
	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateManagerRequest("alice", func(r *domain.ManagerRequest) error {
			r.Status = domain.RequestDenied
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("deny failed: %v", err)
	}
	if err := submit(); !errors.Is(err, domain.ErrAlreadyRequested) {
		t.Fatalf("expected ErrAlreadyRequested after denial, got %v", err)
	}
}

func TestRequestIdentitiesOrderedBySubmission(t *testing.T) {
	store := NewStore("admin", nil)
	ctx := context.Background()

	for _, id := range []domain.Identity{"carol", "alice", "bob"} {
		if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.CreateManagerRequest(domain.ManagerRequest{Requester: id})
			return err
		}); err != nil {
			t.Fatalf("submit %s: %v", id, err)
		}
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.UpdateManagerRequest("alice", func(r *domain.ManagerRequest) error {
			r.Status = domain.RequestApproved
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("approve alice: %v", err)
	}

	pending := store.PendingRequestIdentities()
	if len(pending) != 2 || pending[0] != "carol" || pending[1] != "bob" {
		t.Fatalf("pending order %v, want [carol bob]", pending)
	}
	approved := store.ApprovedRequestIdentities()
	if len(approved) != 1 || approved[0] != "alice" {
		t.Fatalf("approved %v, want [alice]", approved)
	}
}

func TestNextUIDAdvancesPerCaller(t *testing.T) {
	store := NewStore("admin", nil)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(fixedClock(at))
	ctx := context.Background()

	var first, second, other domain.UID
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		first = tx.NextUID("alice")
		second = tx.NextUID("alice")
		other = tx.NextUID("bob")
		return nil
	}); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	if first == second {
		t.Fatalf("repeated mints by one caller collided")
	}
	if first == other || second == other {
		t.Fatalf("mints by distinct callers collided")
	}
}

func TestProductLifecycleAndManagerIndex(t *testing.T) {
	store := NewStore("admin", nil)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(fixedClock(at))
	ctx := context.Background()

	create := func(uid domain.UID, manager domain.Identity) error {
		_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.CreateProduct(domain.Product{UID: uid, Managers: []domain.Identity{manager}, CreatedBy: manager})
			return err
		})
		return err
	}
	if err := create("p1", "alice"); err != nil {
		t.Fatalf("create p1: %v", err)
	}
	if err := create("p2", "alice"); err != nil {
		t.Fatalf("create p2: %v", err)
	}
	if err := create("p1", "alice"); !errors.Is(err, domain.ErrProductExists) {
		t.Fatalf("expected ErrProductExists, got %v", err)
	}

	managed := store.ListProductsManagedBy("alice")
	if len(managed) != 2 || managed[0] != "p1" || managed[1] != "p2" {
		t.Fatalf("managed %v, want [p1 p2]", managed)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.RemoveProductManager("p1", "alice")
	}); err != nil {
		t.Fatalf("renounce p1: %v", err)
	}
	managed = store.ListProductsManagedBy("alice")
	if len(managed) != 1 || managed[0] != "p2" {
		t.Fatalf("managed after renounce %v, want [p2]", managed)
	}
	p, ok := store.GetProduct("p1")
	if !ok {
		t.Fatalf("product p1 vanished")
	}
	if len(p.Managers) != 0 {
		t.Fatalf("p1 managers %v, want empty", p.Managers)
	}

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.RemoveProductManager("p1", "alice")
	}); !errors.Is(err, domain.ErrNotProductManager) {
		t.Fatalf("expected ErrNotProductManager, got %v", err)
	}
}

func TestAppendOperationKeepsInsertionOrder(t *testing.T) {
	store := NewStore("admin", nil)
	ctx := context.Background()

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateProduct(domain.Product{UID: "p1", Managers: []domain.Identity{"alice"}})
		return err
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	for _, h := range []domain.Hash{"h1", "h2", "h3"} {
		if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.AppendOperation("p1", domain.Operation{InformationHash: h, RecordedBy: "alice"})
			return err
		}); err != nil {
			t.Fatalf("append %s: %v", h, err)
		}
	}
	ops := store.ListOperations("p1")
	if len(ops) != 3 {
		t.Fatalf("expected 3 operations, got %d", len(ops))
	}
	for i, h := range []domain.Hash{"h1", "h2", "h3"} {
		if ops[i].InformationHash != h {
			t.Fatalf("operation %d hash %s, want %s", i, ops[i].InformationHash, h)
		}
	}
}

func TestAppendEventAssignsSequence(t *testing.T) {
	store := NewStore("admin", nil)
	ctx := context.Background()

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		tx.AppendEvent(domain.Event{Type: domain.EventProductCreated, UID: "p1"})
		tx.AppendEvent(domain.Event{Type: domain.EventOperationAdded, UID: "p1"})
		return nil
	}); err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
	events := store.ListEvents()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("sequence %d,%d, want 1,2", events[0].Seq, events[1].Seq)
	}
	if events[0].Timestamp.IsZero() {
		t.Fatalf("event timestamp not defaulted")
	}
}

type blockAllRule struct{}

func (blockAllRule) Name() string { return "block_all" }

func (blockAllRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	if len(changes) == 0 {
		return domain.Result{}, nil
	}
	return domain.Result{Violations: []domain.Violation{{Rule: "block_all", Severity: domain.SeverityBlock, Message: "nope"}}}, nil
}

func TestBlockingRulePreventsCommit(t *testing.T) {
	engine := domain.NewRulesEngine()
	engine.Register(blockAllRule{})
	store := NewStore("admin", engine)

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateManagerRequest(domain.ManagerRequest{Requester: "alice"})
		return err
	})
	var rve domain.RuleViolationError
	if !errors.As(err, &rve) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if _, ok := store.GetManagerRequest("alice"); ok {
		t.Fatalf("blocked transaction left state behind")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := NewStore("admin", nil)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(fixedClock(at))
	ctx := context.Background()

	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateManagerRequest(domain.ManagerRequest{Requester: "alice", InformationHash: "h"}); err != nil {
			return err
		}
		if err := tx.GrantRole("alice"); err != nil {
			return err
		}
		if _, err := tx.CreateProduct(domain.Product{UID: "p1", Managers: []domain.Identity{"alice"}, CreatedBy: "alice"}); err != nil {
			return err
		}
		if _, err := tx.AppendOperation("p1", domain.Operation{InformationHash: "op1", RecordedBy: "alice", Timestamp: at}); err != nil {
			return err
		}
		tx.NextUID("alice")
		tx.AppendEvent(domain.Event{Type: domain.EventProductCreated, UID: "p1"})
		return nil
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	snap := store.ExportState()
	restored := NewStore("admin", nil)
	restored.ImportState(snap)

	if !restored.IsManager("alice") {
		t.Fatalf("role lost in round trip")
	}
	if _, ok := restored.GetManagerRequest("alice"); !ok {
		t.Fatalf("request lost in round trip")
	}
	p, ok := restored.GetProduct("p1")
	if !ok || !p.HasManager("alice") {
		t.Fatalf("product lost in round trip: %+v ok=%v", p, ok)
	}
	if got := restored.ListOperations("p1"); len(got) != 1 || got[0].InformationHash != "op1" {
		t.Fatalf("operations lost in round trip: %v", got)
	}
	if got := restored.ListProductsManagedBy("alice"); len(got) != 1 || got[0] != "p1" {
		t.Fatalf("manager index not rebuilt: %v", got)
	}
	if got := restored.ListEvents(); len(got) != 1 || got[0].Seq != 1 {
		t.Fatalf("events lost in round trip: %v", got)
	}

	// The restored uid counter must continue, not restart.
	restored.SetClock(fixedClock(at))
	if _, err := restored.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if uid := tx.NextUID("alice"); uid != domain.NewUID("alice", 2, at) {
			t.Fatalf("uid counter restarted after restore: %s", uid)
		}
		return nil
	}); err != nil {
		t.Fatalf("mint after restore: %v", err)
	}
}

func TestViewReadsCommittedSnapshot(t *testing.T) {
	store := NewStore("admin", nil)
	ctx := context.Background()

	_, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if _, err := tx.CreateManagerRequest(domain.ManagerRequest{Requester: "alice", InformationHash: "dossier"}); err != nil {
			return err
		}
		if err := tx.GrantRole("alice"); err != nil {
			return err
		}
		if _, err := tx.CreateProduct(domain.Product{UID: "p1", Managers: []domain.Identity{"alice"}}); err != nil {
			return err
		}
		_, err := tx.AppendOperation("p1", domain.Operation{InformationHash: "op1", RecordedBy: "alice"})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = store.View(ctx, func(v domain.TransactionView) error {
		if products := v.ListProducts(); len(products) != 1 || products[0].UID != "p1" {
			t.Fatalf("unexpected products %v", products)
		}
		if _, ok := v.FindProduct("p1"); !ok {
			t.Fatalf("product missing from view")
		}
		if requests := v.ListManagerRequests(); len(requests) != 1 || requests[0].Requester != "alice" {
			t.Fatalf("unexpected requests %v", requests)
		}
		if members := v.RoleMembers(); len(members) != 1 || members[0] != "alice" {
			t.Fatalf("unexpected role members %v", members)
		}
		if ops := v.Operations("p1"); len(ops) != 1 || ops[0].InformationHash != "op1" {
			t.Fatalf("unexpected operations %v", ops)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestViewPropagatesCallbackError(t *testing.T) {
	store := NewStore("admin", nil)
	sentinel := errors.New("lookup failed")

	err := store.View(context.Background(), func(v domain.TransactionView) error {
		if _, ok := v.FindProduct("absent"); ok {
			t.Fatalf("unexpected product")
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
}
